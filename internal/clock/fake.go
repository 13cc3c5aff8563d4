package clock

import (
	"sort"
	"time"
)

// Fake is a manually advanced clock. Callbacks run synchronously inside
// Advance on the caller's goroutine.
type Fake struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	id      int
	at      time.Time
	period  time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.clock.remove(t)
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time { return f.now }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.add(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) Timer {
	return f.add(d, d, fn)
}

func (f *Fake) add(d, period time.Duration, fn func()) *fakeTimer {
	f.seq++
	t := &fakeTimer{clock: f, id: f.seq, at: f.now.Add(d), period: period, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) remove(t *fakeTimer) {
	for i, other := range f.timers {
		if other == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every timer that comes due in
// deadline order.
func (f *Fake) Advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		next := f.next(target)
		if next == nil {
			break
		}
		f.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			next.stopped = true
			f.remove(next)
		}
		next.fn()
	}
	f.now = target
}

func (f *Fake) next(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

// PendingTimeouts returns the number of armed one-shot timers.
func (f *Fake) PendingTimeouts() int {
	n := 0
	for _, t := range f.timers {
		if t.period == 0 {
			n++
		}
	}
	return n
}

// ActiveIntervals returns the number of running intervals.
func (f *Fake) ActiveIntervals() int {
	return len(f.timers) - f.PendingTimeouts()
}
