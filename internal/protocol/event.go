package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is a classified inbound frame. The concrete types below are the only
// implementations.
type Event interface {
	Type() string
	event()
}

// Connected is emitted when the channel opens and again when the server
// greets the client.
type Connected struct {
	Message string
}

// Screenshot carries a base64 encoded image of the remote browser.
type Screenshot struct {
	Data string
}

// Thinking signals that the agent started working on a request.
type Thinking struct {
	Message string
}

// AgentAction describes an intermediate step taken by the agent.
type AgentAction struct {
	Description string
}

// AgentResponse is a piece of the agent's reply.
type AgentResponse struct {
	Message string
}

// InterventionResult reports the outcome of an intervention command.
type InterventionResult struct {
	Result Result
	Raw    json.RawMessage
}

// ErrorEvent is a logical error reported by the agent host.
type ErrorEvent struct {
	Message string
}

// RawText is any frame that is not a recognizable envelope.
type RawText struct {
	Text string
}

func (Connected) Type() string          { return TypeConnected }
func (Screenshot) Type() string         { return TypeScreenshot }
func (Thinking) Type() string           { return TypeThinking }
func (AgentAction) Type() string        { return TypeAgentAction }
func (AgentResponse) Type() string      { return TypeAgentResponse }
func (InterventionResult) Type() string { return TypeInterventionResult }
func (ErrorEvent) Type() string         { return TypeError }
func (RawText) Type() string            { return "raw" }

func (Connected) event()          {}
func (Screenshot) event()         {}
func (Thinking) event()           {}
func (AgentAction) event()        {}
func (AgentResponse) event()      {}
func (InterventionResult) event() {}
func (ErrorEvent) event()         {}
func (RawText) event()            {}

// ParseEvent classifies an inbound frame. It never fails: anything that is not
// a JSON object with a known type degrades to RawText.
func ParseEvent(raw []byte) Event {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return RawText{Text: string(raw)}
	}

	switch env.Type {
	case TypeConnected:
		return Connected{Message: env.Message}
	case TypeScreenshot:
		return Screenshot{Data: env.Data}
	case TypeThinking:
		return Thinking{Message: env.Message}
	case TypeAgentAction:
		return AgentAction{Description: describeAction(env)}
	case TypeAgentResponse:
		return AgentResponse{Message: env.Message}
	case TypeInterventionResult:
		ev := InterventionResult{Raw: env.Result}
		if len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, &ev.Result); err != nil {
				ev.Result = Result{Status: StatusError, Error: string(env.Result)}
			}
		}
		return ev
	case TypeError:
		return ErrorEvent{Message: env.Message}
	default:
		return RawText{Text: string(raw)}
	}
}

// describeAction picks the most descriptive field of an agent_action frame.
func describeAction(env Envelope) string {
	if env.Description != "" {
		return env.Description
	}
	if len(env.Actions) > 0 && !bytes.Equal(env.Actions, []byte("null")) {
		var s string
		if err := json.Unmarshal(env.Actions, &s); err == nil {
			return s
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, env.Actions); err == nil {
			return buf.String()
		}
		return strings.TrimSpace(string(env.Actions))
	}
	return env.Message
}

// EncodeEvent serializes an event as an envelope. RawText is sent verbatim.
func EncodeEvent(e Event) ([]byte, error) {
	env := Envelope{Type: e.Type()}
	switch ev := e.(type) {
	case Connected:
		env.Message = ev.Message
	case Screenshot:
		env.Data = ev.Data
	case Thinking:
		env.Message = ev.Message
	case AgentAction:
		env.Description = ev.Description
	case AgentResponse:
		env.Message = ev.Message
	case InterventionResult:
		raw := ev.Raw
		if len(raw) == 0 {
			data, err := json.Marshal(ev.Result)
			if err != nil {
				return nil, fmt.Errorf("marshal result: %w", err)
			}
			raw = data
		}
		env.Result = raw
	case ErrorEvent:
		env.Message = ev.Message
	case RawText:
		return []byte(ev.Text), nil
	default:
		return nil, fmt.Errorf("unknown event %T", e)
	}
	return json.Marshal(env)
}
