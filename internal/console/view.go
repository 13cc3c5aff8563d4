package console

import (
	"fmt"
	"strings"

	"commuter/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// geometry is the screen split for a terminal size. All values are cells.
type geometry struct {
	bodyHeight  int
	frameWidth  int
	sideWidth   int
	transcriptH int
	activityH   int
	// Thumbnail area inside the frame panel.
	frameLeft, frameTop int
	frameCols, frameRows int
}

func computeGeometry(width, height int) geometry {
	g := geometry{}
	g.bodyHeight = max(8, height-headerHeight-inputHeight-footerHeight)
	g.frameWidth = max(24, width*3/5)
	g.sideWidth = max(20, width-g.frameWidth)
	g.transcriptH = max(4, g.bodyHeight*3/5)
	g.activityH = max(4, g.bodyHeight-g.transcriptH)

	// Border and padding on the left, border and title row on top.
	g.frameLeft = 2
	g.frameTop = headerHeight + 2
	g.frameCols = max(1, g.frameWidth-4)
	g.frameRows = max(1, g.bodyHeight-3)
	return g
}

func (m *Model) layout() {
	g := computeGeometry(m.width, m.height)
	m.view.resize(g.frameLeft, g.frameTop, g.frameCols, g.frameRows)

	m.transcript.Width = max(1, g.sideWidth-4)
	m.transcript.Height = max(1, g.transcriptH-3)
	m.activity.Width = max(1, g.sideWidth-4)
	m.activity.Height = max(1, g.activityH-3)
	m.input.Width = max(10, m.width-8)
	m.view.dirty = true
	m.sync()
}

// sync copies presenter output into the scrolling panes.
func (m *Model) sync() {
	if !m.view.dirty || m.width == 0 {
		return
	}
	m.view.dirty = false

	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(m.renderTranscript(m.transcript.Width))
	if atBottom {
		m.transcript.GotoBottom()
	}
	m.activity.SetContent(m.renderActivity(m.activity.Width))
}

func (m *Model) renderTranscript(width int) string {
	var sb strings.Builder
	for i, e := range m.view.transcript {
		if i > 0 {
			sb.WriteByte('\n')
		}
		style, ok := m.theme.roles[e.Role]
		if !ok {
			style = m.theme.muted
		}
		head := style.Render(string(e.Role)) + m.theme.muted.Render(" "+e.Timestamp.Format("15:04:05"))
		sb.WriteString(head)
		sb.WriteByte('\n')
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(e.Text))
	}
	return sb.String()
}

// renderActivity draws the log newest first.
func (m *Model) renderActivity(width int) string {
	lines := make([]string, 0, len(m.view.log))
	for _, e := range m.view.log {
		style, ok := m.theme.categories[e.Category]
		if !ok {
			style = m.theme.muted
		}
		line := m.theme.muted.Render(e.Timestamp.Format("15:04:05")+" ") + style.Render(e.Text)
		lines = append(lines, lipgloss.NewStyle().Width(width).Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "starting..."
	}
	g := computeGeometry(m.width, m.height)

	header := m.theme.header.Width(m.width - 2).Render(m.renderHeader())

	framePanel := m.theme.panel
	if m.session.Forwarding() {
		framePanel = m.theme.activePanel
	}
	frame := framePanel.
		Width(g.frameWidth - 2).
		Height(g.bodyHeight - 2).
		Render(m.theme.panelTitle.Render(m.frameTitle()) + "\n" + m.frameBody())

	transcript := m.theme.panel.
		Width(g.sideWidth - 2).
		Height(g.transcriptH - 2).
		Render(m.theme.panelTitle.Render("Transcript") + "\n" + m.transcript.View())
	activity := m.theme.panel.
		Width(g.sideWidth - 2).
		Height(g.activityH - 2).
		Render(m.theme.panelTitle.Render("Activity") + "\n" + m.activity.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, frame, lipgloss.JoinVertical(lipgloss.Left, transcript, activity))
	input := m.theme.inputPanel.Width(m.width - 2).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, m.renderFooter())
}

func (m *Model) renderHeader() string {
	mode := m.session.Mode()
	badge, ok := m.theme.modes[mode]
	if !ok {
		badge = m.theme.modes[session.ModeIdle]
	}
	parts := []string{
		badge.Render(strings.ToUpper(mode.String())),
		m.theme.status.Render(m.session.Connection().String()),
	}
	if m.view.showThink {
		parts = append(parts, m.spinner.View()+" "+m.view.thinking)
	}
	parts = append(parts, m.backendSummary())
	return strings.Join(parts, "  ")
}

func (m *Model) backendSummary() string {
	switch {
	case m.api == nil:
		return ""
	case m.backendErr != nil:
		return m.theme.errorStatus.Render("host: " + m.backendErr.Error())
	case m.backend == nil:
		return m.theme.muted.Render("host: ...")
	}
	st := m.backend
	cv := "no CV"
	if st.CVLoaded {
		cv = "CV loaded"
	}
	text := fmt.Sprintf("host %s · %s · jobs %d/%d applied", st.Status, cv, st.Stats.Applied, st.Stats.Total)
	if st.Query != "" {
		text += fmt.Sprintf(" · %q", st.Query)
	}
	return m.theme.muted.Render(text)
}

func (m *Model) frameTitle() string {
	f, ok := m.session.Frame()
	if !ok {
		return "Remote view"
	}
	title := fmt.Sprintf("Remote view %dx%d", f.NativeWidth, f.NativeHeight)
	if m.session.Forwarding() {
		title += " · click to interact"
	}
	return title
}

func (m *Model) frameBody() string {
	switch {
	case m.view.thumbErr != nil:
		return m.theme.errorStatus.Render(m.view.thumbErr.Error())
	case m.view.thumb.text == "":
		return m.theme.muted.Render("Waiting for the first frame...")
	default:
		return m.view.thumb.text
	}
}

func (m *Model) renderFooter() string {
	if m.status == "" {
		return m.theme.footer.Render(helpText)
	}
	if m.statusErr {
		return m.theme.footer.Render(m.theme.errorStatus.Render(m.status))
	}
	return m.theme.footer.Render(m.theme.status.Render(m.status))
}
