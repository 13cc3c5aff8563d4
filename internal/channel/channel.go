// Package channel owns the duplex connection to the agent host: connect,
// heartbeat, reconnect, inbound classification and outbound sends.
package channel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"commuter/internal/protocol"
)

// State is the connection state of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned by Send while no channel is open.
	ErrNotConnected = errors.New("channel not connected")
	// ErrConnClosed is returned when writing to a closed connection.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is one physical connection attempt. Its identity is what timers and
// callbacks are tied to.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Handler receives the lifecycle callbacks of a Conn. Callbacks are delivered
// on the control loop, in arrival order, and never synchronously from Dial.
type Handler interface {
	OnOpen(c Conn)
	OnMessage(c Conn, data []byte)
	OnClose(c Conn, err error)
}

// Dialer starts a connection attempt and returns immediately.
type Dialer interface {
	Dial(endpoint string, h Handler) Conn
}

// Listener consumes classified events and lifecycle notices.
type Listener interface {
	HandleEvent(ev protocol.Event)
	HandleDisconnect(err error)
	HandleStateChange(s State)
}

// EndpointFromOrigin derives the channel endpoint from an http(s) origin.
func EndpointFromOrigin(origin string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
