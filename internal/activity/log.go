package activity

import "time"

// DefaultCapacity is the number of entries kept by a Log created with a
// non-positive capacity.
const DefaultCapacity = 50

// Category classifies an entry for display.
type Category string

const (
	CategorySystem Category = "system"
	CategoryAgent  Category = "agent"
	CategoryUser   Category = "user"
	CategoryError  Category = "error"
	CategoryRaw    Category = "raw"
)

// Entry is a single timestamped line in the activity log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Category  Category  `json:"category"`
}

// Log is a fixed-capacity circular buffer of entries read newest-first.
// It is not safe for concurrent use; callers own it from a single loop.
type Log struct {
	buf      []Entry
	capacity int
	pos      int // next write position
	full     bool
}

// New creates a log with the given capacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:      make([]Entry, capacity),
		capacity: capacity,
	}
}

// Append records an entry, evicting the oldest one when the log is full.
func (l *Log) Append(e Entry) {
	l.buf[l.pos] = e
	l.pos = (l.pos + 1) % l.capacity
	if l.pos == 0 {
		l.full = true
	}
}

// Add is shorthand for appending an entry stamped with at.
func (l *Log) Add(at time.Time, category Category, text string) Entry {
	e := Entry{Timestamp: at, Text: text, Category: category}
	l.Append(e)
	return e
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	if l.full {
		return l.capacity
	}
	return l.pos
}

// Entries returns a copy of all entries, newest first.
func (l *Log) Entries() []Entry {
	n := l.Len()
	result := make([]Entry, n)
	idx := l.pos
	for i := 0; i < n; i++ {
		idx = (idx - 1 + l.capacity) % l.capacity
		result[i] = l.buf[idx]
	}
	return result
}
