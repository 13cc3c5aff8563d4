package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"commuter/internal/clock"
	"commuter/internal/eventloop"
	"commuter/internal/protocol"
)

type callbackRecorder struct {
	ch chan string
}

func (r *callbackRecorder) OnOpen(c Conn) { r.ch <- "open" }
func (r *callbackRecorder) OnMessage(c Conn, data []byte) {
	r.ch <- "msg:" + string(data)
}
func (r *callbackRecorder) OnClose(c Conn, err error) {
	if err != nil {
		r.ch <- "close:error"
		return
	}
	r.ch <- "close"
}

func (r *callbackRecorder) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func newAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","message":"hello"}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch string(data) {
			case "ping":
				_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
			case "bye":
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			default:
				_ = conn.WriteMessage(websocket.TextMessage, data)
			}
		}
	}))
}

func startLoop(t *testing.T) (*eventloop.Loop, func()) {
	t.Helper()
	loop := eventloop.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()
	return loop, func() {
		cancel()
		wg.Wait()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocketDialerRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newAgentServer(t)
	defer srv.Close()
	loop, stop := startLoop(t)
	defer stop()

	rec := &callbackRecorder{ch: make(chan string, 16)}
	d := &WebSocketDialer{Poster: loop}
	conn := d.Dial(wsURL(srv), rec)

	assert.Equal(t, "open", rec.next(t))
	assert.Equal(t, `msg:{"type":"connected","message":"hello"}`, rec.next(t))

	require.NoError(t, conn.Send([]byte("ping")))
	assert.Equal(t, "msg:pong", rec.next(t))

	require.NoError(t, conn.Send([]byte(`{"type":"chat","message":"hi"}`)))
	assert.Equal(t, `msg:{"type":"chat","message":"hi"}`, rec.next(t))

	require.NoError(t, conn.Send([]byte("bye")))
	assert.Equal(t, "close", rec.next(t))

	assert.ErrorIs(t, conn.Send([]byte("late")), ErrConnClosed)
}

func TestWebSocketDialerLocalClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newAgentServer(t)
	defer srv.Close()
	loop, stop := startLoop(t)
	defer stop()

	rec := &callbackRecorder{ch: make(chan string, 16)}
	d := &WebSocketDialer{Poster: loop}
	conn := d.Dial(wsURL(srv), rec)

	assert.Equal(t, "open", rec.next(t))
	rec.next(t)

	require.NoError(t, conn.Close())
	assert.Equal(t, "close", rec.next(t))
}

func TestWebSocketDialerRefused(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newAgentServer(t)
	url := wsURL(srv)
	srv.Close()

	loop, stop := startLoop(t)
	defer stop()

	rec := &callbackRecorder{ch: make(chan string, 4)}
	d := &WebSocketDialer{Poster: loop}
	d.Dial(url, rec)

	assert.Equal(t, "close:error", rec.next(t))
}

type chanListener struct{ ch chan string }

func (l chanListener) HandleEvent(ev protocol.Event) {
	if c, ok := ev.(protocol.Connected); ok && c.Message != "" {
		l.ch <- "connected:" + c.Message
		return
	}
	l.ch <- ev.Type()
}

func (l chanListener) HandleDisconnect(err error) { l.ch <- "disconnect" }

func (l chanListener) HandleStateChange(s State) {
	if s == Disconnected {
		l.ch <- "state:disconnected"
	}
}

func TestManagerOverWebSocket(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newAgentServer(t)
	defer srv.Close()
	loop, stop := startLoop(t)
	defer stop()

	events := make(chan string, 16)

	var m *Manager
	loop.Post(func() {
		m = NewManager(Options{
			Endpoint: wsURL(srv),
			Dialer:   &WebSocketDialer{Poster: loop},
			Clock:    clock.NewReal(loop),
			Listener: chanListener{ch: events},
		})
		m.Connect()
	})

	wait := func() string {
		select {
		case s := <-events:
			return s
		case <-time.After(3 * time.Second):
			t.Fatal("timed out")
			return ""
		}
	}

	assert.Equal(t, "connected", wait())
	assert.Equal(t, "connected:hello", wait())

	// The pong reply is swallowed by the manager.
	loop.Post(func() { _ = m.Send(protocol.Heartbeat{}) })
	loop.Post(func() { m.Close() })
	assert.Equal(t, "state:disconnected", wait())
}
