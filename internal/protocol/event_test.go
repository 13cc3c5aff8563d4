package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{"connected", `{"type":"connected","message":"Connected to Project Commuter"}`, Connected{Message: "Connected to Project Commuter"}},
		{"screenshot", `{"type":"screenshot","data":"aGVsbG8="}`, Screenshot{Data: "aGVsbG8="}},
		{"thinking", `{"type":"thinking","message":"Processing your request..."}`, Thinking{Message: "Processing your request..."}},
		{"agent action description", `{"type":"agent_action","description":"clicking apply"}`, AgentAction{Description: "clicking apply"}},
		{"agent action string actions", `{"type":"agent_action","actions":"navigate(url)"}`, AgentAction{Description: "navigate(url)"}},
		{"agent action structured actions", `{"type":"agent_action","actions": {"tool": "click"}}`, AgentAction{Description: `{"tool":"click"}`}},
		{"agent action message fallback", `{"type":"agent_action","message":"scrolling"}`, AgentAction{Description: "scrolling"}},
		{"agent response", `{"type":"agent_response","message":"done"}`, AgentResponse{Message: "done"}},
		{"error", `{"type":"error","message":"boom"}`, ErrorEvent{Message: "boom"}},
		{"plain text", `hello there`, RawText{Text: "hello there"}},
		{"json scalar", `42`, RawText{Text: "42"}},
		{"json null", `null`, RawText{Text: "null"}},
		{"unknown type", `{"type":"files.update"}`, RawText{Text: `{"type":"files.update"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEvent([]byte(tt.raw)))
		})
	}
}

func TestParseEventInterventionResult(t *testing.T) {
	ev := ParseEvent([]byte(`{"type":"intervention_result","result":{"status":"success","message":"Automation paused"}}`))

	res, ok := ev.(InterventionResult)
	require.True(t, ok, "got %T", ev)
	assert.True(t, res.Result.OK())
	assert.Equal(t, "success: Automation paused", res.Result.Summary())
	assert.JSONEq(t, `{"status":"success","message":"Automation paused"}`, string(res.Raw))
}

func TestParseEventInterventionResultNotObject(t *testing.T) {
	ev := ParseEvent([]byte(`{"type":"intervention_result","result":"weird"}`))

	res := ev.(InterventionResult)
	assert.False(t, res.Result.OK())
	assert.Equal(t, `"weird"`, res.Result.Error)
}

func TestEncodeCommands(t *testing.T) {
	data, err := Encode(Chat{Message: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","message":"hello"}`, string(data))

	data, err = Encode(Intervention{Action: ClickAction(0, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"intervention","action":{"action":"click","x":0,"y":0}}`, string(data))

	data, err = Encode(Intervention{Action: TypeAction("abc")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"intervention","action":{"action":"type","text":"abc"}}`, string(data))

	data, err = Encode(Intervention{Action: Action{Action: ActionResume}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"intervention","action":{"action":"resume"}}`, string(data))

	data, err = Encode(Heartbeat{})
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))
}

func TestEncodeEventParsesBack(t *testing.T) {
	events := []Event{
		Connected{Message: "hi"},
		Screenshot{Data: "AAAA"},
		Thinking{Message: "hmm"},
		AgentAction{Description: "step"},
		AgentResponse{Message: "ok"},
		ErrorEvent{Message: "bad"},
	}
	for _, e := range events {
		data, err := EncodeEvent(e)
		require.NoError(t, err)
		assert.Equal(t, e, ParseEvent(data))
	}

	data, err := EncodeEvent(InterventionResult{Result: Result{Status: StatusSuccess, Message: "clicked"}})
	require.NoError(t, err)
	res := ParseEvent(data).(InterventionResult)
	assert.Equal(t, "clicked", res.Result.Message)
}
