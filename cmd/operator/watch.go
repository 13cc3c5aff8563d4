package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commuter/internal/activity"
	"commuter/internal/api"
	"commuter/internal/channel"
	"commuter/internal/clock"
	"commuter/internal/config"
	"commuter/internal/eventloop"
	"commuter/internal/inbox"
	"commuter/internal/session"

	"go.uber.org/zap"
)

func runWatch(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	return watch(ctx, cfg, logger.Logger)
}

// watch runs the session on an event loop with a log presenter until ctx is
// cancelled.
func watch(ctx context.Context, cfg *config.Operator, logger *zap.Logger) error {
	endpoint, err := channel.EndpointFromOrigin(cfg.Origin)
	if err != nil {
		return err
	}

	loop := eventloop.New(256)
	sess := session.New(session.Options{
		Endpoint:    endpoint,
		Dialer:      &channel.WebSocketDialer{Poster: loop, Logger: logger},
		Clock:       clock.NewReal(loop),
		Presenter:   session.NewLogPresenter(logger, cfg.FrameDir),
		Logger:      logger,
		LogCapacity: cfg.LogCapacity,
	})
	client := api.NewClient(cfg.Origin, cfg.HTTPTimeout)

	if cfg.Inbox != "" {
		w, err := inbox.New(cfg.Inbox, func(doc inbox.Document) {
			ingest(ctx, client, loop, sess, doc, logger)
		}, logger)
		if err != nil {
			return fmt.Errorf("watch inbox: %w", err)
		}
		defer w.Close()
		logger.Info("watching inbox", zap.String("dir", w.Dir()))
	}

	go pollState(ctx, client, cfg.StatePoll, logger)

	logger.Info("operator watching", zap.String("origin", cfg.Origin), zap.String("endpoint", endpoint))
	loop.Post(sess.Start)
	err = loop.Run(ctx)

	// The loop has stopped, so the session is ours to close here.
	sess.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ingest uploads a document dropped in the inbox and tells the agent about
// it once the host has accepted it.
func ingest(ctx context.Context, client *api.Client, loop eventloop.Poster, sess *session.Session, doc inbox.Document, logger *zap.Logger) {
	resp, err := client.IngestDocument(ctx, doc.Path)
	if err != nil {
		logger.Warn("ingest document", zap.String("path", doc.Path), zap.Error(err))
		loop.Post(func() {
			sess.Note(activity.CategoryError, fmt.Sprintf("Upload of %s failed: %v", doc.Name, err))
		})
		return
	}
	logger.Info("document ingested", zap.String("name", doc.Name), zap.Int("length", resp.Length))
	loop.Post(func() {
		if err := sess.NotifyDocumentIngested(doc.Name); err != nil {
			logger.Warn("notify agent", zap.Error(err))
		}
	})
}

// pollState logs the host's session state whenever it changes.
func pollState(ctx context.Context, client *api.Client, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last api.State
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := client.State(ctx)
		if err != nil {
			if ctx.Err() == nil && err.Error() != lastErr {
				logger.Warn("host state unavailable", zap.Error(err))
			}
			lastErr = err.Error()
			continue
		}
		lastErr = ""
		if *st == last {
			continue
		}
		last = *st
		logger.Info("host state",
			zap.String("status", st.Status),
			zap.String("query", st.Query),
			zap.Bool("cv_loaded", st.CVLoaded),
			zap.Int("jobs", st.Stats.Total),
			zap.Int("applied", st.Stats.Applied),
			zap.Bool("intervention", st.InterventionMode))
	}
}
