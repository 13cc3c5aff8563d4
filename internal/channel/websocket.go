package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"commuter/internal/eventloop"
)

const (
	defaultReadTimeout = 3 * DefaultHeartbeatInterval
	writeDeadline      = 10 * time.Second
	dialTimeout        = 10 * time.Second
	sendBufferSize     = 64
)

var errSendBufferFull = errors.New("send buffer full")

// WebSocketDialer opens gorilla/websocket connections and delivers their
// callbacks through Poster.
type WebSocketDialer struct {
	Poster      eventloop.Poster
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
	Logger      *zap.Logger
}

// Dial starts a connection attempt in the background.
func (d *WebSocketDialer) Dial(endpoint string, h Handler) Conn {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		poster:      d.Poster,
		handler:     h,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		cancel:      cancel,
		readTimeout: readTimeout,
		logger:      logger.Named("ws"),
	}
	go c.run(ctx, dialer, endpoint)
	return c
}

type wsConn struct {
	poster      eventloop.Poster
	handler     Handler
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	cancel      context.CancelFunc
	readTimeout time.Duration
	logger      *zap.Logger
}

// Send queues data for the write pump.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the connection. The close callback still fires.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, endpoint string) {
	defer c.cancel()

	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.poster.Post(func() { c.handler.OnClose(c, err) })
		return
	}

	select {
	case <-c.done:
		ws.Close()
		c.poster.Post(func() { c.handler.OnClose(c, nil) })
		return
	default:
	}

	c.poster.Post(func() { c.handler.OnOpen(c) })

	pumpDone := make(chan struct{})
	go c.writePump(ws, pumpDone)
	err = c.readPump(ws)
	select {
	case <-c.done:
		// Closed locally.
		err = nil
	default:
	}
	c.Close()
	<-pumpDone

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	}
	c.poster.Post(func() { c.handler.OnClose(c, err) })
}

func (c *wsConn) readPump(ws *websocket.Conn) error {
	extend := func() { _ = ws.SetReadDeadline(time.Now().Add(c.readTimeout)) }
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	ws.SetPingHandler(func(data string) error {
		extend()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeDeadline))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		extend()
		c.poster.Post(func() { c.handler.OnMessage(c, message) })
	}
}

func (c *wsConn) writePump(ws *websocket.Conn, pumpDone chan<- struct{}) {
	defer close(pumpDone)
	defer ws.Close()

	for {
		select {
		case <-c.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeDeadline))
			return

		case message := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}
