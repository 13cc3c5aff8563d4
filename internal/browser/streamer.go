package browser

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Capture triggers, used as a metrics label.
const (
	TriggerStream  = "stream"
	TriggerRequest = "request"
	TriggerAction  = "action"
)

// FrameFunc receives a base64 encoded PNG.
type FrameFunc func(data, trigger string)

// Streamer captures frames periodically while someone is watching and on
// demand, rate limiting the on-demand path.
type Streamer struct {
	browser  Browser
	interval time.Duration
	limiter  *rate.Limiter
	onFrame  FrameFunc
	logger   *zap.Logger

	mu     sync.Mutex
	latest string
}

// NewStreamer creates a streamer. perSecond bounds on-demand captures.
func NewStreamer(b Browser, interval time.Duration, perSecond float64, onFrame FrameFunc, logger *zap.Logger) *Streamer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if perSecond <= 0 {
		perSecond = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streamer{
		browser:  b,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		onFrame:  onFrame,
		logger:   logger.Named("streamer"),
	}
}

// Latest returns the last captured frame.
func (s *Streamer) Latest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != ""
}

// Run captures a frame every interval while active reports true, until ctx
// is done.
func (s *Streamer) Run(ctx context.Context, active func() bool) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if active != nil && !active() {
				continue
			}
			if _, err := s.capture(ctx, TriggerStream); err != nil && ctx.Err() == nil {
				s.logger.Warn("stream capture failed", zap.Error(err))
			}
		}
	}
}

// Request captures a frame now if the rate limit allows; otherwise it
// returns the latest frame without publishing.
func (s *Streamer) Request(ctx context.Context) (string, error) {
	if !s.limiter.Allow() {
		if latest, ok := s.Latest(); ok {
			return latest, nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return s.capture(ctx, TriggerRequest)
}

// AfterAction captures the result of an intervention action.
func (s *Streamer) AfterAction(ctx context.Context) (string, error) {
	return s.capture(ctx, TriggerAction)
}

func (s *Streamer) capture(ctx context.Context, trigger string) (string, error) {
	png, err := s.browser.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	data := base64.StdEncoding.EncodeToString(png)

	s.mu.Lock()
	s.latest = data
	s.mu.Unlock()

	if s.onFrame != nil {
		s.onFrame(data, trigger)
	}
	return data, nil
}
