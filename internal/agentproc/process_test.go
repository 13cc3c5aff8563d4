package agentproc

import (
	"context"
	"os"
	"testing"
	"time"

	"commuter/internal/protocol"

	"go.uber.org/goleak"
)

// echoAgent answers every input line with an agent_response.
const echoAgent = `while read line; do echo '{"type":"agent_response","message":"ack"}'; echo "working" >&2; done`

func next(t *testing.T, ch <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestParseCommand(t *testing.T) {
	path, args := ParseCommand("  python3 agent.py --headless ")
	if path != "python3" {
		t.Errorf("expected python3, got %q", path)
	}
	if len(args) != 2 || args[0] != "agent.py" || args[1] != "--headless" {
		t.Errorf("unexpected args %q", args)
	}

	path, args = ParseCommand("   ")
	if path != "" || args != nil {
		t.Errorf("expected empty command, got %q %q", path, args)
	}
}

func TestNew_EmptyCommand(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestNew_CommandNotFound(t *testing.T) {
	if _, err := New(Options{Path: "definitely-not-an-agent-binary-xyz"}); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestNew_WorkDirIsFile(t *testing.T) {
	f, err := os.CreateTemp("", "agentproc")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.Close()

	if _, err := New(Options{Path: "sh", WorkDir: f.Name()}); err == nil {
		t.Fatal("expected error for file work dir")
	}
}

func TestSendBeforeStart(t *testing.T) {
	p, err := New(Options{Path: "sh"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Send(protocol.Chat{Message: "hi"}); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if p.Status().State != StateStopped {
		t.Errorf("expected stopped, got %s", p.Status().State)
	}
}

func TestProcess_RoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, err := New(Options{Path: "sh", Args: []string{"-c", echoAgent}, GracefulTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, events := p.Subscribe()
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !p.Running() {
		t.Fatal("expected running process")
	}
	if p.Status().PID == 0 {
		t.Error("expected a pid")
	}

	if err := p.Send(protocol.Chat{Message: "find jobs"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	ev := next(t, events)
	resp, ok := ev.(protocol.AgentResponse)
	if !ok {
		t.Fatalf("expected AgentResponse, got %T", ev)
	}
	if resp.Message != "ack" {
		t.Errorf("expected 'ack', got %q", resp.Message)
	}

	p.Shutdown(context.Background())
	if p.Status().State != StateTerminated {
		t.Errorf("expected terminated, got %s", p.Status().State)
	}
	if _, ok := <-events; ok {
		t.Error("expected subscription closed after shutdown")
	}
}

func TestProcess_RestartsAfterExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	restarted := make(chan struct{}, 4)
	p, err := New(Options{
		Path:         "sh",
		Args:         []string{"-c", "exit 3"},
		RestartDelay: 50 * time.Millisecond,
		OnRestart:    func() { restarted <- struct{}{} },
	})
	if err != nil {
		t.Fatal(err)
	}
	id, events := p.Subscribe()
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	ev := next(t, events)
	errEv, ok := ev.(protocol.ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %T", ev)
	}
	if errEv.Message == "" {
		t.Error("expected exit message")
	}

	select {
	case <-restarted:
	case <-time.After(5 * time.Second):
		t.Fatal("process was not restarted")
	}
	if p.Status().LastExit != 3 {
		t.Errorf("expected last exit 3, got %d", p.Status().LastExit)
	}

	p.Unsubscribe(id)
	p.Unsubscribe(id)
	p.Shutdown(context.Background())
}
