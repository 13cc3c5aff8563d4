package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned for well-formed envelopes of an unsupported type.
var ErrUnknownType = errors.New("unknown message type")

var validActions = map[string]bool{
	ActionPause:      true,
	ActionResume:     true,
	ActionScreenshot: true,
	ActionClick:      true,
	ActionType:       true,
}

// DecodeCommand validates a raw frame received from an operator and returns
// the command it carries. The keep-alive token decodes to Heartbeat.
func DecodeCommand(raw []byte) (Command, error) {
	if string(raw) == PingToken {
		return Heartbeat{}, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if env.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	switch env.Type {
	case TypeChat:
		if env.Message == "" {
			return nil, fmt.Errorf("missing required field 'message' in %s", env.Type)
		}
		return Chat{Message: env.Message}, nil

	case TypeIntervention:
		if env.Action == nil {
			return nil, fmt.Errorf("missing required field 'action' in %s", env.Type)
		}
		if err := validateAction(*env.Action); err != nil {
			return nil, err
		}
		return Intervention{Action: *env.Action}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
}

func validateAction(a Action) error {
	if !validActions[a.Action] {
		return fmt.Errorf("unknown intervention action: %q", a.Action)
	}

	switch a.Action {
	case ActionClick:
		if a.Selector != "" {
			return nil
		}
		if a.X == nil || a.Y == nil {
			return fmt.Errorf("click requires 'x' and 'y' or a 'selector'")
		}
		if *a.X < 0 || *a.Y < 0 {
			return fmt.Errorf("click coordinates must be non-negative, got (%d,%d)", *a.X, *a.Y)
		}
	case ActionType:
		if a.Text == "" {
			return fmt.Errorf("type requires 'text'")
		}
	}
	return nil
}

// NewErrorEvent builds an error event ready to send to a client.
func NewErrorEvent(format string, args ...any) ErrorEvent {
	return ErrorEvent{Message: fmt.Sprintf(format, args...)}
}
