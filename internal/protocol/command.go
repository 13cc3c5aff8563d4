package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is an outbound frame from the operator to the agent host.
type Command interface {
	command()
}

// Chat forwards free text to the agent.
type Chat struct {
	Message string
}

// Intervention carries a manual control action.
type Intervention struct {
	Action Action
}

// Heartbeat is the keep-alive token. It is sent as bare text.
type Heartbeat struct{}

func (Chat) command()         {}
func (Intervention) command() {}
func (Heartbeat) command()    {}

// Encode serializes a command for the wire.
func Encode(c Command) ([]byte, error) {
	switch cmd := c.(type) {
	case Heartbeat:
		return []byte(PingToken), nil
	case Chat:
		return json.Marshal(Envelope{Type: TypeChat, Message: cmd.Message})
	case Intervention:
		action := cmd.Action
		return json.Marshal(Envelope{Type: TypeIntervention, Action: &action})
	default:
		return nil, fmt.Errorf("unknown command %T", c)
	}
}

// Describe returns a short human readable form of a command, used in logs.
func Describe(c Command) string {
	switch cmd := c.(type) {
	case Heartbeat:
		return PingToken
	case Chat:
		return "chat"
	case Intervention:
		if cmd.Action.Selector != "" {
			return fmt.Sprintf("intervention/%s %s", cmd.Action.Action, cmd.Action.Selector)
		}
		if cmd.Action.Action == ActionClick && cmd.Action.X != nil && cmd.Action.Y != nil {
			return fmt.Sprintf("intervention/click (%d,%d)", *cmd.Action.X, *cmd.Action.Y)
		}
		return "intervention/" + cmd.Action.Action
	default:
		return fmt.Sprintf("%T", c)
	}
}
