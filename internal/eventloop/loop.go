// Package eventloop runs posted closures one at a time, in arrival order, on a
// single goroutine.
package eventloop

import (
	"context"
	"sync"
)

// Poster accepts work for a control loop. Post reports false when the loop
// no longer accepts work.
type Poster interface {
	Post(fn func()) bool
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(fn func()) bool

// Post calls f(fn).
func (f PosterFunc) Post(fn func()) bool { return f(fn) }

// Loop is a serial executor.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// New creates a loop whose queue holds up to buffer pending closures.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and must not be called
// from inside the loop when that can happen.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case <-l.done:
		return false
	case l.queue <- fn:
		return true
	}
}

// Run executes closures until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop makes Run return and rejects further posts.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }
