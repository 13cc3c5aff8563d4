package realtime

import (
	"context"
	"errors"
	"fmt"

	"commuter/internal/metrics"
	"commuter/internal/protocol"

	"go.uber.org/zap"
)

const (
	thinkingMessage = "Agent is thinking..."
	noAgentMessage  = "No agent is attached to this host. Use the controls to act on the page directly."
)

var errNoBrowser = errors.New("browser unavailable")

// handleMessage processes one frame from an operator.
func (s *Server) handleMessage(c *client, raw []byte) {
	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		s.metrics.RecordMessage(metrics.Inbound, "invalid")
		s.sendEvent(c, protocol.NewErrorEvent("Invalid message: %v", err))
		return
	}

	switch cmd := cmd.(type) {
	case protocol.Heartbeat:
		s.metrics.RecordMessage(metrics.Inbound, protocol.PingToken)
		c.sendPong()
	case protocol.Chat:
		s.metrics.RecordMessage(metrics.Inbound, protocol.TypeChat)
		s.handleChat(c, cmd)
	case protocol.Intervention:
		s.metrics.RecordMessage(metrics.Inbound, protocol.TypeIntervention)
		s.handleIntervention(c, cmd.Action)
	}
}

func (s *Server) handleChat(c *client, cmd protocol.Chat) {
	s.sendEvent(c, protocol.Thinking{Message: thinkingMessage})

	if s.agent == nil || !s.agent.Running() {
		s.sendEvent(c, protocol.AgentResponse{Message: noAgentMessage})
		return
	}
	if err := s.agent.Send(cmd); err != nil {
		s.logger.Warn("relay chat", zap.Error(err))
		s.sendEvent(c, protocol.NewErrorEvent("Agent unavailable: %v", err))
	}
}

// handleIntervention executes a manual action and reports the outcome to the
// client that asked for it.
func (s *Server) handleIntervention(c *client, a protocol.Action) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	result, err := s.runAction(ctx, c, a)
	if err != nil {
		s.logger.Warn("intervention failed", zap.String("action", a.Action), zap.Error(err))
		result = protocol.Result{Status: protocol.StatusError, Error: err.Error()}
	}
	s.metrics.InterventionActions.WithLabelValues(a.Action, result.Status).Inc()
	s.sendEvent(c, protocol.InterventionResult{Result: result})
}

func (s *Server) runAction(ctx context.Context, c *client, a protocol.Action) (protocol.Result, error) {
	switch a.Action {
	case protocol.ActionPause:
		s.setIntervention(true)
		s.relayToAgent(protocol.Intervention{Action: a})
		return protocol.Result{Status: protocol.StatusSuccess, Message: "Agent paused"}, nil

	case protocol.ActionResume:
		s.setIntervention(false)
		s.relayToAgent(protocol.Intervention{Action: a})
		return protocol.Result{Status: protocol.StatusSuccess, Message: "Agent resumed"}, nil

	case protocol.ActionScreenshot:
		if s.streamer == nil {
			return protocol.Result{}, errNoBrowser
		}
		frame, err := s.streamer.Request(ctx)
		if err != nil {
			return protocol.Result{}, fmt.Errorf("screenshot: %w", err)
		}
		s.sendEvent(c, protocol.Screenshot{Data: frame})
		return protocol.Result{Status: protocol.StatusSuccess, Message: "Screenshot captured"}, nil

	case protocol.ActionClick:
		if s.browser == nil {
			return protocol.Result{}, errNoBrowser
		}
		if a.Selector != "" {
			if err := s.browser.ClickElement(ctx, a.Selector); err != nil {
				return protocol.Result{}, err
			}
			s.refreshAfterAction(ctx)
			return protocol.Result{Status: protocol.StatusSuccess, Message: fmt.Sprintf("Clicked %s", a.Selector)}, nil
		}
		x, y := *a.X, *a.Y
		if err := s.browser.Click(ctx, x, y); err != nil {
			return protocol.Result{}, err
		}
		s.refreshAfterAction(ctx)
		return protocol.Result{Status: protocol.StatusSuccess, Message: fmt.Sprintf("Clicked at (%d, %d)", x, y)}, nil

	case protocol.ActionType:
		if s.browser == nil {
			return protocol.Result{}, errNoBrowser
		}
		var err error
		if a.Selector != "" {
			err = s.browser.TypeInto(ctx, a.Selector, a.Text)
		} else {
			err = s.browser.Type(ctx, a.Text)
		}
		if err != nil {
			return protocol.Result{}, err
		}
		s.refreshAfterAction(ctx)
		return protocol.Result{Status: protocol.StatusSuccess, Message: fmt.Sprintf("Typed %d characters", len([]rune(a.Text)))}, nil

	default:
		return protocol.Result{}, fmt.Errorf("unknown intervention action: %q", a.Action)
	}
}

// refreshAfterAction broadcasts the page state an action produced.
func (s *Server) refreshAfterAction(ctx context.Context) {
	if s.streamer == nil {
		return
	}
	if _, err := s.streamer.AfterAction(ctx); err != nil {
		s.logger.Debug("capture after action", zap.Error(err))
	}
}

func (s *Server) relayToAgent(cmd protocol.Command) {
	if s.agent == nil || !s.agent.Running() {
		return
	}
	if err := s.agent.Send(cmd); err != nil {
		s.logger.Warn("relay to agent", zap.String("command", protocol.Describe(cmd)), zap.Error(err))
	}
}
