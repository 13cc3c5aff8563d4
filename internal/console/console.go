// Package console is the operator's terminal UI. The bubbletea program loop
// is the session's control loop: channel callbacks and timers reach the
// session as messages handled in Update.
package console

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"commuter/internal/activity"
	"commuter/internal/api"
	"commuter/internal/channel"
	"commuter/internal/clock"
	"commuter/internal/coords"
	"commuter/internal/inbox"
	"commuter/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	headerHeight = 3
	inputHeight  = 3
	footerHeight = 1
	apiTimeout   = 30 * time.Second
)

// execMsg runs a closure on the program loop.
type execMsg func()

type (
	startMsg    struct{}
	pollMsg     time.Time
	documentMsg struct{ doc inbox.Document }
	stateMsg    struct {
		state *api.State
		err   error
	}
	resultMsg struct {
		op   string
		text string
		err  error
	}
	ingestedMsg struct {
		name   string
		length int
		err    error
	}
)

// Options configures a Model.
type Options struct {
	Endpoint    string
	Dialer      channel.Dialer
	Clock       clock.Clock
	API         *api.Client // optional
	LogCapacity int
	StatePoll   time.Duration
	Logger      *zap.Logger
}

// Model is the console's bubbletea model.
type Model struct {
	session   *session.Session
	view      *presenter
	api       *api.Client
	logger    *zap.Logger
	statePoll time.Duration

	input      textinput.Model
	transcript viewport.Model
	activity   viewport.Model
	spinner    spinner.Model
	theme      theme

	width, height int
	backend       *api.State
	backendErr    error
	status        string
	statusErr     bool
	quitting      bool
}

// New builds the model and its session. Nothing is dialed until the program
// starts.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("console")
	view := newPresenter(logger)

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Message the agent, or /help"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true
	transcript.MouseWheelDelta = 3
	act := viewport.New(0, 0)

	poll := opts.StatePoll
	if poll <= 0 {
		poll = 5 * time.Second
	}

	return &Model{
		session: session.New(session.Options{
			Endpoint:    opts.Endpoint,
			Dialer:      opts.Dialer,
			Clock:       opts.Clock,
			Presenter:   view,
			Logger:      logger,
			LogCapacity: opts.LogCapacity,
		}),
		view:       view,
		api:        opts.API,
		logger:     logger,
		statePoll:  poll,
		input:      input,
		transcript: transcript,
		activity:   act,
		spinner:    sp,
		theme:      newTheme(),
		status:     "connecting...",
	}
}

// Session exposes the underlying session.
func (m *Model) Session() *session.Session { return m.session }

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		func() tea.Msg { return startMsg{} },
	}
	if m.api != nil {
		cmds = append(cmds, m.fetchState(), m.pollTick())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case execMsg:
		msg()
	case startMsg:
		m.session.Start()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, m.quit()
		case tea.KeyEnter:
			cmds = append(cmds, m.submit())
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			cmds = append(cmds, cmd)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case pollMsg:
		cmds = append(cmds, m.fetchState(), m.pollTick())
	case stateMsg:
		m.backendErr = msg.err
		if msg.err == nil {
			m.backend = msg.state
		}
	case resultMsg:
		if msg.err != nil {
			m.setError(msg.op, msg.err)
		} else {
			m.setStatus(msg.text)
			m.session.Note(activity.CategorySystem, msg.text)
		}
	case documentMsg:
		m.session.Note(activity.CategorySystem, "New document in inbox: "+msg.doc.Name)
		cmds = append(cmds, m.ingest(msg.doc.Path))
	case ingestedMsg:
		if msg.err != nil {
			m.setError("upload", msg.err)
			break
		}
		m.setStatus(fmt.Sprintf("Ingested %s (%d characters)", msg.name, msg.length))
		if err := m.session.NotifyDocumentIngested(msg.name); err != nil {
			m.setError("notify", err)
		}
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.sync()
	return m, tea.Batch(cmds...)
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.session.Stop()
	return tea.Quit
}

// submit handles the input line.
func (m *Model) submit() tea.Cmd {
	line := m.input.Value()
	m.input.Reset()
	if strings.TrimSpace(line) == "" {
		return nil
	}

	cmd, err := parseInput(line)
	if err != nil {
		m.setError("input", err)
		return nil
	}
	if cmd.isChat() {
		m.report("chat", m.session.SendChat(cmd.text))
		return nil
	}

	switch cmd.name {
	case cmdPause:
		m.report("pause", m.session.Pause())
	case cmdResume:
		m.report("resume", m.session.Resume())
	case cmdShot:
		m.report("screenshot", m.session.RequestScreenshot())
	case cmdType:
		m.report("type", m.session.TypeText(cmd.text))
	case cmdReconnect:
		m.session.Reconnect()
	case cmdQuit:
		return m.quit()
	case cmdHelp:
		m.setStatus(helpText)
	case cmdUpload:
		return m.ingest(cmd.text)
	case cmdState:
		return m.fetchState()
	case cmdConfig:
		key, value := cmd.args[0], cmd.text
		return m.call("config", func(ctx context.Context, c *api.Client) (string, error) {
			resp, err := c.UpdateConfig(ctx, key, value)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Config %s = %s", resp.Key, resp.Value), nil
		})
	case cmdCommand:
		command := cmd.text
		return m.call("command", func(ctx context.Context, c *api.Client) (string, error) {
			resp, err := c.SubmitCommand(ctx, command)
			if err != nil {
				return "", err
			}
			return resp.Message, nil
		})
	case cmdProfile:
		path := cmd.text
		return m.call("profile", func(ctx context.Context, c *api.Client) (string, error) {
			p, err := api.LoadProfile(path)
			if err != nil {
				return "", err
			}
			if _, err := c.SaveProfile(ctx, p); err != nil {
				return "", err
			}
			return "Profile saved for " + p.FullName, nil
		})
	}
	return nil
}

// handleMouse forwards a left press on the frame as a click. Wheel events
// scroll the transcript.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		rect, ok := m.view.DisplayRect()
		x, y := float64(msg.X)+0.5, float64(msg.Y)+0.5
		if !ok || !rect.Contains(x, y) {
			return nil
		}
		m.report("click", m.session.Click(x, y))
		return nil
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return cmd
}

func (m *Model) report(op string, err error) {
	if err != nil {
		m.setError(op, err)
		return
	}
	m.status, m.statusErr = "", false
}

func (m *Model) setStatus(text string) {
	m.status, m.statusErr = text, false
}

func (m *Model) setError(op string, err error) {
	m.status, m.statusErr = describeError(op, err), true
}

// describeError turns an error into a line for the operator.
func describeError(op string, err error) string {
	switch {
	case errors.Is(err, session.ErrModeNotAllowed):
		return fmt.Sprintf("%s: not available in the current mode", op)
	case errors.Is(err, channel.ErrNotConnected):
		return fmt.Sprintf("%s: not connected", op)
	case errors.Is(err, session.ErrNoFrame), errors.Is(err, coords.ErrEmptyRect):
		return fmt.Sprintf("%s: no frame on screen", op)
	default:
		return fmt.Sprintf("%s: %v", op, err)
	}
}

func (m *Model) pollTick() tea.Cmd {
	return tea.Tick(m.statePoll, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m *Model) fetchState() tea.Cmd {
	c := m.api
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		st, err := c.State(ctx)
		return stateMsg{state: st, err: err}
	}
}

// call runs a REST operation off the loop and reports its outcome.
func (m *Model) call(op string, fn func(context.Context, *api.Client) (string, error)) tea.Cmd {
	c := m.api
	if c == nil {
		m.setError(op, errors.New("no agent host configured"))
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		text, err := fn(ctx, c)
		return resultMsg{op: op, text: text, err: err}
	}
}

func (m *Model) ingest(path string) tea.Cmd {
	c := m.api
	if c == nil {
		m.setError("upload", errors.New("no agent host configured"))
		return nil
	}
	m.setStatus("Uploading " + path + "...")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		resp, err := c.IngestDocument(ctx, path)
		msg := ingestedMsg{name: filepath.Base(path), err: err}
		if resp != nil {
			msg.length = resp.Length
		}
		return msg
	}
}
