// Package clock provides timers whose callbacks run on a control loop.
package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"commuter/internal/eventloop"
)

// Timer is a cancellable timeout or interval.
type Timer interface {
	// Stop cancels the timer. A callback that has not started yet will
	// not run. Stop is idempotent.
	Stop()
}

// Clock creates timers and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// Real is a wall clock whose callbacks are posted to a control loop.
type Real struct {
	poster eventloop.Poster
}

// NewReal binds a wall clock to poster.
func NewReal(poster eventloop.Poster) *Real {
	return &Real{poster: poster}
}

func (c *Real) Now() time.Time { return time.Now() }

type realTimer struct {
	stopped atomic.Bool
	once    sync.Once
	timer   *time.Timer
	quit    chan struct{}
}

func (t *realTimer) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		if t.timer != nil {
			t.timer.Stop()
		}
		if t.quit != nil {
			close(t.quit)
		}
	})
}

func (c *Real) post(t *realTimer, fn func()) {
	c.poster.Post(func() {
		if t.stopped.Load() {
			return
		}
		fn()
	})
}

// AfterFunc runs fn on the loop once d has elapsed.
func (c *Real) AfterFunc(d time.Duration, fn func()) Timer {
	t := &realTimer{}
	t.timer = time.AfterFunc(d, func() { c.post(t, fn) })
	return t
}

// Every runs fn on the loop each time d elapses until stopped.
func (c *Real) Every(d time.Duration, fn func()) Timer {
	t := &realTimer{quit: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-ticker.C:
				c.post(t, fn)
			}
		}
	}()
	return t
}
