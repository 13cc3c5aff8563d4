package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commuter/internal/api"
	"commuter/internal/channel"
	"commuter/internal/clock"
	"commuter/internal/config"
	"commuter/internal/inbox"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// programPoster delivers closures and messages to a running program. It
// drops work until a program is attached and after it has exited.
type programPoster struct {
	mu   sync.RWMutex
	prog *tea.Program
}

func (p *programPoster) attach(prog *tea.Program) {
	p.mu.Lock()
	p.prog = prog
	p.mu.Unlock()
}

func (p *programPoster) detach() { p.attach(nil) }

func (p *programPoster) send(msg tea.Msg) bool {
	p.mu.RLock()
	prog := p.prog
	p.mu.RUnlock()
	if prog == nil {
		return false
	}
	prog.Send(msg)
	return true
}

// Post runs fn inside Update.
func (p *programPoster) Post(fn func()) bool { return p.send(execMsg(fn)) }

// Run starts the console against the configured agent host and blocks until
// the operator quits or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Operator, logger *zap.Logger) error {
	endpoint, err := channel.EndpointFromOrigin(cfg.Origin)
	if err != nil {
		return err
	}

	poster := &programPoster{}
	model := New(Options{
		Endpoint: endpoint,
		Dialer: &channel.WebSocketDialer{
			Poster: poster,
			Logger: logger,
		},
		Clock:       clock.NewReal(poster),
		API:         api.NewClient(cfg.Origin, cfg.HTTPTimeout),
		LogCapacity: cfg.LogCapacity,
		StatePoll:   cfg.StatePoll,
		Logger:      logger,
	})

	prog := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	poster.attach(prog)
	defer poster.detach()

	if cfg.Inbox != "" {
		w, err := inbox.New(cfg.Inbox, func(doc inbox.Document) {
			poster.send(documentMsg{doc: doc})
		}, logger)
		if err != nil {
			return fmt.Errorf("watch inbox: %w", err)
		}
		defer w.Close()
		logger.Info("watching inbox", zap.String("dir", w.Dir()))
	}

	logger.Info("console starting", zap.String("endpoint", endpoint))
	_, err = prog.Run()

	// The loop is gone; release the channel from here.
	poster.detach()
	model.Session().Stop()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
