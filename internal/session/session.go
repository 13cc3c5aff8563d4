// Package session holds the operator's single logical session: the control
// mode, the current frame and the activity log, driven by channel events and
// user gestures on one control loop.
package session

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"commuter/internal/activity"
	"commuter/internal/channel"
	"commuter/internal/clock"
	"commuter/internal/coords"
	"commuter/internal/protocol"
)

var (
	// ErrModeNotAllowed is returned for a gesture the current mode rejects.
	ErrModeNotAllowed = errors.New("action not allowed in current mode")
	// ErrNoFrame is returned for a click before any frame was rendered.
	ErrNoFrame = errors.New("no frame rendered")
	// ErrEmptyInput is returned for blank chat or typed text.
	ErrEmptyInput = errors.New("empty input")
)

// Presenter renders session state. All calls happen on the control loop.
type Presenter interface {
	Render(f Frame)
	RenderTranscript(e TranscriptEntry)
	RenderLog(entries []activity.Entry)
	SetMode(m Mode)
	SetConnection(s channel.State)
	SetThinking(text string, visible bool)
	// DisplayRect returns the on-screen rectangle the current frame is drawn
	// in, in the same coordinate space as pointer events.
	DisplayRect() (coords.Rect, bool)
}

// Options configures a Session.
type Options struct {
	Endpoint    string
	Dialer      channel.Dialer
	Clock       clock.Clock
	Presenter   Presenter
	Logger      *zap.Logger
	LogCapacity int
}

// Session is the explicit session object. It is not safe for concurrent use.
type Session struct {
	channel   *channel.Manager
	clock     clock.Clock
	presenter Presenter
	logger    *zap.Logger
	log       *activity.Log

	mode       Mode
	frame      *Frame
	thinking   bool
	forwarding bool
}

// New creates an idle session. Nothing is dialed until Start.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		clock:     opts.Clock,
		presenter: opts.Presenter,
		logger:    logger.Named("session"),
		log:       activity.New(opts.LogCapacity),
	}
	s.channel = channel.NewManager(channel.Options{
		Endpoint: opts.Endpoint,
		Dialer:   opts.Dialer,
		Clock:    opts.Clock,
		Listener: s,
		Logger:   logger,
	})
	return s
}

// Mode returns the current control mode.
func (s *Session) Mode() Mode { return s.mode }

// Connection returns the channel state.
func (s *Session) Connection() channel.State { return s.channel.State() }

// Frame returns the current frame, if any.
func (s *Session) Frame() (Frame, bool) {
	if s.frame == nil {
		return Frame{}, false
	}
	return *s.frame, true
}

// Forwarding reports whether pointer and keyboard input reach the remote
// browser.
func (s *Session) Forwarding() bool { return s.forwarding }

// Thinking reports whether the thinking indicator is shown.
func (s *Session) Thinking() bool { return s.thinking }

// Activity returns the activity log, newest first.
func (s *Session) Activity() []activity.Entry { return s.log.Entries() }

// Start connects the channel.
func (s *Session) Start() {
	if s.mode == ModeIdle {
		s.setMode(ModeConnecting)
	}
	s.note(activity.CategorySystem, "Connecting to "+s.channel.Endpoint())
	s.channel.Connect()
}

// Reconnect drops the current channel, if any, and dials again.
func (s *Session) Reconnect() {
	s.hideThinking()
	s.setMode(ModeConnecting)
	s.note(activity.CategorySystem, "Reconnecting...")
	s.channel.Connect()
}

// Stop closes the channel for good and returns to idle.
func (s *Session) Stop() {
	s.hideThinking()
	s.channel.Close()
	s.setMode(ModeIdle)
}

// HandleEvent applies an inbound event.
func (s *Session) HandleEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.Connected:
		s.onConnected(e)
	case protocol.Screenshot:
		s.onScreenshot(e)
	case protocol.Thinking:
		s.onThinking(e)
	case protocol.AgentAction:
		s.onAgentAction(e)
	case protocol.AgentResponse:
		s.onAgentResponse(e)
	case protocol.InterventionResult:
		s.onInterventionResult(e)
	case protocol.ErrorEvent:
		s.onError(e)
	case protocol.RawText:
		s.note(activity.CategoryRaw, e.Text)
	default:
		s.logger.Warn("unhandled event", zap.String("type", ev.Type()))
	}
}

// HandleDisconnect is called once per lost channel. A reconnect is already
// scheduled by the channel.
func (s *Session) HandleDisconnect(err error) {
	s.hideThinking()
	s.setMode(ModeConnecting)
	msg := "Uplink lost. Retrying..."
	if err != nil {
		msg = fmt.Sprintf("Uplink lost (%v). Retrying...", err)
	}
	s.note(activity.CategoryError, msg)
}

// HandleStateChange mirrors the channel state to the presenter.
func (s *Session) HandleStateChange(st channel.State) {
	s.presenter.SetConnection(st)
}

func (s *Session) onConnected(e protocol.Connected) {
	if s.mode == ModeIdle || s.mode == ModeConnecting {
		s.setMode(ModeAgentActive)
		s.note(activity.CategorySystem, "Uplink established.")
	}
	if e.Message != "" {
		s.note(activity.CategorySystem, e.Message)
	}
}

func (s *Session) onScreenshot(e protocol.Screenshot) {
	f, err := DecodeFrame(e.Data, s.clock.Now())
	if err != nil {
		s.logger.Warn("dropping screenshot", zap.Error(err))
		s.note(activity.CategoryError, "Unreadable screenshot: "+err.Error())
		return
	}
	s.frame = &f
	s.presenter.Render(f)
}

func (s *Session) onThinking(e protocol.Thinking) {
	if s.mode != ModeAgentActive && s.mode != ModeThinking {
		s.note(activity.CategoryAgent, e.Message)
		return
	}
	s.setMode(ModeThinking)
	if s.thinking {
		return
	}
	s.thinking = true
	s.presenter.SetThinking(e.Message, true)
	s.note(activity.CategoryAgent, e.Message)
}

func (s *Session) onAgentAction(e protocol.AgentAction) {
	if s.mode == ModeThinking && s.thinking {
		s.presenter.SetThinking(e.Description, true)
	}
	s.note(activity.CategoryAgent, "Action: "+e.Description)
}

func (s *Session) onAgentResponse(e protocol.AgentResponse) {
	s.hideThinking()
	s.transcript(RoleAgent, e.Message)

	switch s.mode {
	case ModeAgentActive, ModeThinking, ModeError:
		if NeedsIntervention(e.Message) {
			s.enterIntervention("agent requested assistance")
			return
		}
		s.setMode(ModeAgentActive)
	case ModeIntervention:
		// Already under manual control; a repeated keyword changes nothing.
	}
}

func (s *Session) onInterventionResult(e protocol.InterventionResult) {
	cat := activity.CategorySystem
	if !e.Result.OK() {
		cat = activity.CategoryError
	}
	s.note(cat, "Intervention "+e.Result.Summary())
}

func (s *Session) onError(e protocol.ErrorEvent) {
	s.hideThinking()
	s.transcript(RoleError, e.Message)
	s.note(activity.CategoryError, e.Message)
	s.setMode(ModeError)
}

// SendChat forwards free text to the agent.
func (s *Session) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	s.transcript(RoleUser, text)
	return s.send(protocol.Chat{Message: text})
}

// Pause takes manual control and asks the agent to hold.
func (s *Session) Pause() error {
	switch s.mode {
	case ModeAgentActive, ModeThinking, ModeError:
	default:
		return fmt.Errorf("pause in %s: %w", s.mode, ErrModeNotAllowed)
	}
	s.hideThinking()
	s.enterIntervention("operator paused the agent")
	return s.send(protocol.Intervention{Action: protocol.Action{Action: protocol.ActionPause}})
}

// Resume hands control back to the agent.
func (s *Session) Resume() error {
	if s.mode != ModeIntervention {
		return fmt.Errorf("resume in %s: %w", s.mode, ErrModeNotAllowed)
	}
	s.setMode(ModeAgentActive)
	s.note(activity.CategorySystem, "Manual control released.")
	return s.send(protocol.Intervention{Action: protocol.Action{Action: protocol.ActionResume}})
}

// RequestScreenshot asks the agent host for a fresh frame.
func (s *Session) RequestScreenshot() error {
	return s.send(protocol.Intervention{Action: protocol.Action{Action: protocol.ActionScreenshot}})
}

// Click forwards a pointer press at display position (x, y). It reads the
// live display rectangle and frame size at call time.
func (s *Session) Click(x, y float64) error {
	if s.mode != ModeIntervention || !s.forwarding {
		return fmt.Errorf("click in %s: %w", s.mode, ErrModeNotAllowed)
	}
	if s.frame == nil {
		return ErrNoFrame
	}
	rect, ok := s.presenter.DisplayRect()
	if !ok {
		return coords.ErrEmptyRect
	}
	p, err := coords.Map(rect, s.frame.NativeWidth, s.frame.NativeHeight, x, y)
	if err != nil {
		return err
	}
	s.note(activity.CategoryUser, fmt.Sprintf("Click at (%d, %d)", p.X, p.Y))
	return s.send(protocol.Intervention{Action: protocol.ClickAction(p.X, p.Y)})
}

// TypeText types text into the focused element of the remote browser.
func (s *Session) TypeText(text string) error {
	if s.mode != ModeIntervention || !s.forwarding {
		return fmt.Errorf("type in %s: %w", s.mode, ErrModeNotAllowed)
	}
	if text == "" {
		return ErrEmptyInput
	}
	s.note(activity.CategoryUser, fmt.Sprintf("Typed %d characters", len([]rune(text))))
	return s.send(protocol.Intervention{Action: protocol.TypeAction(text)})
}

// NotifyDocumentIngested tells the agent a new document is available.
func (s *Session) NotifyDocumentIngested(name string) error {
	s.note(activity.CategorySystem, "Document ingested: "+name)
	msg := fmt.Sprintf("I uploaded a new document (%s). Use it for the rest of this session.", name)
	s.transcript(RoleUser, msg)
	return s.send(protocol.Chat{Message: msg})
}

// Note records an activity entry on behalf of a collaborator.
func (s *Session) Note(category activity.Category, text string) {
	s.note(category, text)
}

func (s *Session) send(cmd protocol.Command) error {
	if err := s.channel.Send(cmd); err != nil {
		s.logger.Warn("command dropped", zap.String("command", protocol.Describe(cmd)), zap.Error(err))
		s.note(activity.CategoryError, "Not sent: "+protocol.Describe(cmd)+" ("+reason(err)+")")
		return err
	}
	return nil
}

func reason(err error) string {
	if errors.Is(err, channel.ErrNotConnected) {
		return "offline"
	}
	return err.Error()
}

func (s *Session) enterIntervention(why string) {
	if s.mode == ModeIntervention {
		return
	}
	s.setMode(ModeIntervention)
	s.note(activity.CategorySystem, "Manual control engaged: "+why+".")
}

// setMode performs a transition. Leaving intervention turns input forwarding
// off before the presenter hears about the new mode.
func (s *Session) setMode(m Mode) {
	if m == s.mode {
		return
	}
	if s.mode == ModeIntervention {
		s.forwarding = false
	}
	prev := s.mode
	s.mode = m
	if m == ModeIntervention {
		s.forwarding = true
	}
	s.logger.Debug("mode", zap.Stringer("from", prev), zap.Stringer("to", m))
	s.presenter.SetMode(m)
}

func (s *Session) hideThinking() {
	if !s.thinking {
		return
	}
	s.thinking = false
	s.presenter.SetThinking("", false)
}

func (s *Session) transcript(role Role, text string) {
	s.presenter.RenderTranscript(TranscriptEntry{Timestamp: s.clock.Now(), Role: role, Text: text})
}

func (s *Session) note(category activity.Category, text string) {
	s.log.Add(s.clock.Now(), category, text)
	s.presenter.RenderLog(s.log.Entries())
}
