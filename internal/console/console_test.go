package console

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"commuter/internal/channel"
	"commuter/internal/clock"
	"commuter/internal/protocol"
	"commuter/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	sent [][]byte
}

func (c *fakeConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	conn    *fakeConn
	handler channel.Handler
}

func (d *fakeDialer) Dial(_ string, h channel.Handler) channel.Conn {
	d.conn = &fakeConn{}
	d.handler = h
	return d.conn
}

type harness struct {
	t      *testing.T
	dialer *fakeDialer
	model  *Model
}

func newHarness(t *testing.T) *harness {
	h := &harness{t: t, dialer: &fakeDialer{}}
	h.model = New(Options{
		Endpoint: "ws://agent.test/ws",
		Dialer:   h.dialer,
		Clock:    clock.NewFake(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)),
		Logger:   zaptest.NewLogger(t),
	})
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.update(startMsg{})
	require.NotNil(t, h.dialer.conn)
	h.dialer.handler.OnOpen(h.dialer.conn)
	h.deliver(`{"type":"connected","message":"hello"}`)
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.model.Update(msg)
	return cmd
}

func (h *harness) deliver(raw string) {
	h.dialer.handler.OnMessage(h.dialer.conn, []byte(raw))
}

func (h *harness) enter(line string) tea.Cmd {
	h.model.input.SetValue(line)
	return h.update(tea.KeyMsg{Type: tea.KeyEnter})
}

func (h *harness) sent() []protocol.Command {
	h.t.Helper()
	var out []protocol.Command
	for _, raw := range h.dialer.conn.sent {
		cmd, err := protocol.DecodeCommand(raw)
		require.NoError(h.t, err, string(raw))
		out = append(out, cmd)
	}
	return out
}

func pngBytes(t *testing.T, w, hgt int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func screenshot(t *testing.T, w, hgt int) string {
	return `{"type":"screenshot","data":"` + base64.StdEncoding.EncodeToString(pngBytes(t, w, hgt)) + `"}`
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		text    string
		wantErr string
	}{
		{line: "find remote go jobs", text: "find remote go jobs"},
		{line: "/pause", name: cmdPause},
		{line: "/RESUME", name: cmdResume},
		{line: "/type  two  spaces", name: cmdType, text: " two  spaces"},
		{line: "/type", wantErr: "usage: /type"},
		{line: "/type    ", wantErr: "usage: /type"},
		{line: "/upload ~/cv.pdf", name: cmdUpload, text: "~/cv.pdf"},
		{line: "/upload", wantErr: "usage: /upload"},
		{line: "/config search_query senior go engineer", name: cmdConfig, text: "senior go engineer"},
		{line: "/config search_query", wantErr: "usage: /config"},
		{line: "/cmd start", name: cmdCommand, text: "start"},
		{line: "/profile me.yaml", name: cmdProfile, text: "me.yaml"},
		{line: "/dance", wantErr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := parseInput(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, cmd.name)
			assert.Equal(t, tt.text, cmd.text)
		})
	}
}

func TestParseInputConfigKey(t *testing.T) {
	cmd, err := parseInput("/config search_query go")
	require.NoError(t, err)
	assert.Equal(t, "search_query", cmd.args[0])
}

func TestFitCells(t *testing.T) {
	tests := []struct {
		name               string
		w, h, maxC, maxR   int
		wantCols, wantRows int
	}{
		{"wide image limited by columns", 200, 100, 56, 30, 56, 14},
		{"tall image limited by rows", 100, 400, 80, 10, 5, 10},
		{"exact fit", 40, 20, 40, 10, 40, 10},
		{"empty image", 0, 10, 10, 10, 0, 0},
		{"no room", 10, 10, 0, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := fitCells(tt.w, tt.h, tt.maxC, tt.maxR)
			assert.Equal(t, tt.wantCols, cols)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}

func TestRenderThumbnail(t *testing.T) {
	thumb, err := renderThumbnail(pngBytes(t, 20, 10), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, thumb.cols)
	assert.Equal(t, 3, thumb.rows)
	assert.Len(t, strings.Split(thumb.text, "\n"), 3)
	assert.Equal(t, 30, strings.Count(thumb.text, upperHalfBlock))

	_, err = renderThumbnail([]byte("not an image"), 10, 10)
	assert.Error(t, err)
}

func TestClickOnThumbnailIsMappedToFrame(t *testing.T) {
	h := newHarness(t)
	h.deliver(screenshot(t, 200, 100))

	rect, ok := h.model.view.DisplayRect()
	require.True(t, ok)
	assert.Equal(t, 2.0, rect.Left)
	assert.Equal(t, 5.0, rect.Top)
	assert.Equal(t, 56.0, rect.Width)
	assert.Equal(t, 14.0, rect.Height)

	// Outside intervention the click is refused.
	h.update(tea.MouseMsg{X: 29, Y: 12, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.True(t, h.model.statusErr)
	assert.Empty(t, h.sent())

	h.enter("/pause")
	require.Equal(t, session.ModeIntervention, h.model.Session().Mode())

	h.update(tea.MouseMsg{X: 29, Y: 12, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	sent := h.sent()
	require.Len(t, sent, 2)
	click, ok := sent[1].(protocol.Intervention)
	require.True(t, ok)
	assert.Equal(t, protocol.ActionClick, click.Action.Action)
	// Cell 27 centre: 27.5 * 200/56 and 7.5 * 100/14.
	assert.Equal(t, 98, *click.Action.X)
	assert.Equal(t, 54, *click.Action.Y)
}

func TestClickOutsideThumbnailIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.deliver(screenshot(t, 200, 100))
	h.enter("/pause")

	h.update(tea.MouseMsg{X: 90, Y: 30, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Len(t, h.sent(), 1)
	assert.False(t, h.model.statusErr)
}

func TestChatAndTypeFromInput(t *testing.T) {
	h := newHarness(t)

	h.enter("look for go roles")
	require.Len(t, h.model.view.transcript, 1)
	assert.Equal(t, session.RoleUser, h.model.view.transcript[0].Role)

	h.enter("/type secret")
	assert.True(t, h.model.statusErr, "typing needs manual control")

	h.enter("/pause")
	h.enter("/type secret")
	h.enter("/resume")

	sent := h.sent()
	require.Len(t, sent, 4)
	assert.Equal(t, protocol.Chat{Message: "look for go roles"}, sent[0])
	assert.Equal(t, protocol.TypeAction("secret"), sent[2].(protocol.Intervention).Action)
	assert.Equal(t, session.ModeAgentActive, h.model.Session().Mode())
	assert.Contains(t, h.model.transcript.View(), "look for go roles")
}

func TestAgentResponseRendersInTranscript(t *testing.T) {
	h := newHarness(t)
	h.deliver(`{"type":"thinking","message":"Agent is thinking..."}`)
	assert.True(t, h.model.view.showThink)
	assert.Contains(t, h.model.View(), "Agent is thinking...")

	h.deliver(`{"type":"agent_response","message":"Please solve the captcha"}`)
	assert.False(t, h.model.view.showThink)
	assert.Equal(t, session.ModeIntervention, h.model.Session().Mode())
	assert.Contains(t, h.model.View(), "INTERVENTION_ACTIVE")
}

func TestIngestedDocumentNotifiesAgent(t *testing.T) {
	h := newHarness(t)

	h.update(ingestedMsg{name: "cv.pdf", length: 1200})
	sent := h.sent()
	require.Len(t, sent, 1)
	chat, ok := sent[0].(protocol.Chat)
	require.True(t, ok)
	assert.Contains(t, chat.Message, "cv.pdf")

	h.update(ingestedMsg{name: "bad.txt", err: assert.AnError})
	assert.True(t, h.model.statusErr)
	assert.Len(t, h.sent(), 1)
}

func TestRestCommandsWithoutHost(t *testing.T) {
	h := newHarness(t)

	assert.Nil(t, h.enter("/config search_query go"))
	assert.True(t, h.model.statusErr)
	assert.Contains(t, h.model.status, "no agent host configured")

	assert.Nil(t, h.enter("/state"))
}

func TestUnknownCommandReportsError(t *testing.T) {
	h := newHarness(t)
	h.enter("/dance")
	assert.True(t, h.model.statusErr)
	assert.Contains(t, h.model.status, "unknown command")
}

func TestQuitStopsSession(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, session.ModeAgentActive, h.model.Session().Mode())

	cmd := h.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, session.ModeIdle, h.model.Session().Mode())
	assert.Empty(t, h.model.View())
}

func TestExecMsgRunsOnLoop(t *testing.T) {
	h := newHarness(t)
	ran := false
	h.update(execMsg(func() { ran = true }))
	assert.True(t, ran)
}

func TestProgramPosterDropsWithoutProgram(t *testing.T) {
	var p programPoster
	assert.False(t, p.Post(func() {}))
}

func TestComputeGeometry(t *testing.T) {
	g := computeGeometry(100, 40)
	assert.Equal(t, 33, g.bodyHeight)
	assert.Equal(t, 60, g.frameWidth)
	assert.Equal(t, 40, g.sideWidth)
	assert.Equal(t, 56, g.frameCols)
	assert.Equal(t, 30, g.frameRows)
	assert.Equal(t, g.bodyHeight, g.transcriptH+g.activityH)
}
