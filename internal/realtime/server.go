// Package realtime is the agent host's HTTP surface: the operator websocket
// and the REST endpoints.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"commuter/internal/browser"
	"commuter/internal/metrics"
	"commuter/internal/protocol"
	"commuter/internal/session"
	"commuter/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	actionTimeout = 15 * time.Second

	welcomeMessage = "Connected to Project Commuter"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The operator client may run anywhere.
	},
}

// Agent is the autonomous agent the hub relays chat to.
type Agent interface {
	Start() error
	Running() bool
	Send(cmd protocol.Command) error
	Subscribe() (string, <-chan protocol.Event)
	Unsubscribe(id string)
}

// Options configures a Server.
type Options struct {
	Store   *store.Store
	Metrics *metrics.Metrics
	// Browser and Agent are optional.
	Browser            browser.Browser
	Agent              Agent
	ScreenshotInterval time.Duration
	ScreenshotRate     float64
	Development        bool
	Logger             *zap.Logger
}

// Server manages operator connections and routes their commands to the
// agent and the browser.
type Server struct {
	store    *store.Store
	metrics  *metrics.Metrics
	browser  browser.Browser
	streamer *browser.Streamer
	agent    Agent
	logger   *zap.Logger
	dev      bool

	clients   map[*client]bool
	clientsMu sync.RWMutex

	mu           sync.Mutex
	intervention bool
}

// New creates a realtime server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		store:   opts.Store,
		metrics: m,
		browser: opts.Browser,
		agent:   opts.Agent,
		logger:  logger.Named("realtime"),
		dev:     opts.Development,
		clients: make(map[*client]bool),
	}
	if opts.Browser != nil {
		s.streamer = browser.NewStreamer(opts.Browser, opts.ScreenshotInterval, opts.ScreenshotRate, s.onFrame, logger)
	}
	return s
}

// Handler returns the gin engine with all routes configured.
func (s *Server) Handler() http.Handler {
	if !s.dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Content-Length", "Accept", "Origin", "Cache-Control", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}))

	// WebSocket endpoint.
	router.GET("/ws", s.handleWebSocket)

	// REST API endpoints.
	router.GET("/health", s.handleHealth)
	router.GET("/api/state", s.handleState)
	router.POST("/api/config", s.handleConfig)
	router.POST("/api/command", s.handleCommand)
	router.POST("/api/upload_cv", s.handleUpload)
	router.GET("/api/profile", s.handleGetProfile)
	router.POST("/api/profile", s.handleSaveProfile)
	router.POST("/api/jobs", s.handleJob)
	router.GET("/api/intervention/status", s.handleInterventionStatus)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return router
}

// Run streams screenshots and relays agent events until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if s.streamer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.streamer.Run(ctx, s.hasClients)
		}()
	}
	if s.agent != nil {
		id, events := s.agent.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.relayAgent(ctx, events)
		}()
		defer s.agent.Unsubscribe(id)
	}
	<-ctx.Done()
	wg.Wait()
}

// relayAgent forwards agent events to every client.
func (s *Server) relayAgent(ctx context.Context, events <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if resp, ok := ev.(protocol.AgentResponse); ok && session.NeedsIntervention(resp.Message) {
				s.setIntervention(true)
			}
			s.broadcast(ev)
		}
	}
}

// Close disconnects every client.
func (s *Server) Close() {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.metrics.Clients.Set(float64(n))
	s.logger.Info("client connected", zap.String("client", c.id), zap.String("remote", ctx.Request.RemoteAddr))

	s.sendEvent(c, protocol.Connected{Message: welcomeMessage})
	if s.streamer != nil {
		if frame, ok := s.streamer.Latest(); ok {
			s.sendEvent(c, protocol.Screenshot{Data: frame})
		}
	}

	go c.writePump()
	go c.readPump()
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if !s.clients[c] {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c)
	n := len(s.clients)
	close(c.send)
	s.clientsMu.Unlock()

	s.metrics.Clients.Set(float64(n))
	s.logger.Info("client disconnected", zap.String("client", c.id))
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) hasClients() bool { return s.clientCount() > 0 }

func (s *Server) interventionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervention
}

func (s *Server) setIntervention(on bool) {
	s.mu.Lock()
	changed := s.intervention != on
	s.intervention = on
	s.mu.Unlock()
	if changed {
		s.logger.Info("intervention mode changed", zap.Bool("active", on))
	}
}

// onFrame publishes a captured screenshot to every client.
func (s *Server) onFrame(data, trigger string) {
	s.metrics.Screenshots.WithLabelValues(trigger).Inc()
	s.broadcast(protocol.Screenshot{Data: data})
}

// broadcast sends an event to all connected clients.
func (s *Server) broadcast(ev protocol.Event) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		s.logger.Error("encode event", zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
			s.metrics.RecordMessage(metrics.Outbound, ev.Type())
		default:
			// Client buffer full, skip.
		}
	}
}

func (s *Server) sendEvent(c *client, ev protocol.Event) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		s.logger.Error("encode event", zap.Error(err))
		return
	}
	if c.trySend(data) {
		s.metrics.RecordMessage(metrics.Outbound, ev.Type())
	}
}
