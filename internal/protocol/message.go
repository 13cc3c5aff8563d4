package protocol

import (
	"encoding/json"
	"fmt"
)

// Keep-alive tokens exchanged as bare text frames, outside the JSON envelope.
const (
	PingToken = "ping"
	PongToken = "pong"
)

// Server → Client message types.
const (
	TypeConnected          = "connected"
	TypeScreenshot         = "screenshot"
	TypeThinking           = "thinking"
	TypeAgentAction        = "agent_action"
	TypeAgentResponse      = "agent_response"
	TypeInterventionResult = "intervention_result"
	TypeError              = "error"
)

// Client → Server message types.
const (
	TypeChat         = "chat"
	TypeIntervention = "intervention"
)

// Intervention sub-actions.
const (
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionScreenshot = "screenshot"
	ActionClick      = "click"
	ActionType       = "type"
)

// Result statuses reported in intervention_result payloads.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the flat JSON object carried by every structured frame.
// Only the fields relevant to Type are populated.
type Envelope struct {
	Type        string          `json:"type"`
	Message     string          `json:"message,omitempty"`
	Data        string          `json:"data,omitempty"`
	Description string          `json:"description,omitempty"`
	Actions     json.RawMessage `json:"actions,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Action      *Action         `json:"action,omitempty"`
}

// Action is the payload of an intervention command. X and Y are pointers so
// that a click at the origin still serializes both coordinates. Selector, when
// set, targets an element by CSS selector instead of by coordinates.
type Action struct {
	Action   string `json:"action"`
	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
	Text     string `json:"text,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Result is the body of an intervention_result event.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    string `json:"data,omitempty"`
}

// OK reports whether the remote side accepted the action.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Summary returns a one-line description of the result for display.
func (r Result) Summary() string {
	switch {
	case r.Message != "":
		return fmt.Sprintf("%s: %s", r.Status, r.Message)
	case r.Error != "":
		return fmt.Sprintf("%s: %s", r.Status, r.Error)
	default:
		return r.Status
	}
}

// ClickAction builds a click action at native coordinates.
func ClickAction(x, y int) Action {
	return Action{Action: ActionClick, X: &x, Y: &y}
}

// ClickElementAction builds a click on the element matching selector.
func ClickElementAction(selector string) Action {
	return Action{Action: ActionClick, Selector: selector}
}

// TypeAction builds a type action.
func TypeAction(text string) Action {
	return Action{Action: ActionType, Text: text}
}
