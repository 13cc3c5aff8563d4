package channel

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"commuter/internal/clock"
	"commuter/internal/protocol"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
)

// Options configures a Manager.
type Options struct {
	Endpoint          string
	Dialer            Dialer
	Clock             clock.Clock
	Listener          Listener
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
}

// Manager drives a single logical channel. It holds at most one open
// connection, one heartbeat interval bound to that connection and one pending
// reconnect timer. It must only be used from the control loop.
type Manager struct {
	endpoint          string
	dialer            Dialer
	clock             clock.Clock
	listener          Listener
	logger            *zap.Logger
	heartbeatInterval time.Duration
	reconnectDelay    time.Duration

	state     State
	conn      Conn
	heartbeat clock.Timer
	reconnect clock.Timer
	shutdown  bool
}

// NewManager creates a disconnected manager.
func NewManager(opts Options) *Manager {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		endpoint:          opts.Endpoint,
		dialer:            opts.Dialer,
		clock:             opts.Clock,
		listener:          opts.Listener,
		logger:            opts.Logger.Named("channel"),
		heartbeatInterval: opts.HeartbeatInterval,
		reconnectDelay:    opts.ReconnectDelay,
	}
}

// State returns the current connection state.
func (m *Manager) State() State { return m.state }

// Endpoint returns the address the manager dials.
func (m *Manager) Endpoint() string { return m.endpoint }

// Connect opens a new channel. It is a no-op while an attempt is in flight.
// An open channel is detached and closed first.
func (m *Manager) Connect() {
	if m.state == Connecting {
		return
	}
	m.shutdown = false

	m.releaseTimers()
	m.detach()

	m.setState(Connecting)
	m.logger.Debug("dialing", zap.String("endpoint", m.endpoint))
	m.conn = m.dialer.Dial(m.endpoint, connHandler{m})
}

// Send serializes cmd and writes it to the open channel.
func (m *Manager) Send(cmd protocol.Command) error {
	if m.state != Connected || m.conn == nil {
		return fmt.Errorf("send %s: %w", protocol.Describe(cmd), ErrNotConnected)
	}
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	if err := m.conn.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", protocol.Describe(cmd), err)
	}
	return nil
}

// Close shuts the channel down without scheduling a reconnect.
func (m *Manager) Close() {
	m.shutdown = true
	m.releaseTimers()
	m.detach()
	m.setState(Disconnected)
}

func (m *Manager) onOpen(c Conn) {
	if c != m.conn {
		return
	}
	m.setState(Connected)
	m.startHeartbeat(c)
	m.logger.Info("channel open", zap.String("endpoint", m.endpoint))
	m.listener.HandleEvent(protocol.Connected{})
}

func (m *Manager) onMessage(c Conn, data []byte) {
	if c != m.conn {
		return
	}
	if string(data) == protocol.PongToken {
		return
	}
	m.listener.HandleEvent(protocol.ParseEvent(data))
}

func (m *Manager) onClose(c Conn, err error) {
	if c != m.conn {
		return
	}
	m.conn = nil
	m.stopHeartbeat()
	m.setState(Disconnected)

	if err != nil {
		m.logger.Warn("channel closed", zap.Error(err))
	} else {
		m.logger.Info("channel closed")
	}

	if !m.shutdown {
		m.scheduleReconnect()
	}
	m.listener.HandleDisconnect(err)
}

func (m *Manager) startHeartbeat(c Conn) {
	m.stopHeartbeat()
	m.heartbeat = m.clock.Every(m.heartbeatInterval, func() {
		if c != m.conn || m.state != Connected {
			return
		}
		if err := m.Send(protocol.Heartbeat{}); err != nil {
			m.logger.Warn("heartbeat failed", zap.Error(err))
		}
	})
}

func (m *Manager) stopHeartbeat() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
}

func (m *Manager) scheduleReconnect() {
	m.stopReconnect()
	m.logger.Info("reconnect scheduled", zap.Duration("delay", m.reconnectDelay))
	var t clock.Timer
	t = m.clock.AfterFunc(m.reconnectDelay, func() {
		if m.reconnect != t {
			return
		}
		m.reconnect = nil
		m.Connect()
	})
	m.reconnect = t
}

func (m *Manager) stopReconnect() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) releaseTimers() {
	m.stopReconnect()
	m.stopHeartbeat()
}

// detach forgets the current connection so its late callbacks are ignored,
// then closes it.
func (m *Manager) detach() {
	if m.conn == nil {
		return
	}
	old := m.conn
	m.conn = nil
	if err := old.Close(); err != nil {
		m.logger.Debug("close detached connection", zap.Error(err))
	}
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.listener.HandleStateChange(s)
}

// connHandler keeps the callback methods off the Manager's exported surface.
type connHandler struct{ m *Manager }

func (h connHandler) OnOpen(c Conn)                 { h.m.onOpen(c) }
func (h connHandler) OnMessage(c Conn, data []byte) { h.m.onMessage(c, data) }
func (h connHandler) OnClose(c Conn, err error)     { h.m.onClose(c, err) }
