package activity

import (
	"fmt"
	"testing"
	"time"
)

func makeEntry(id int) Entry {
	return Entry{
		Timestamp: time.Unix(int64(id), 0).UTC(),
		Text:      fmt.Sprintf("line-%d", id),
		Category:  CategorySystem,
	}
}

func TestLog_EmptyRead(t *testing.T) {
	l := New(10)
	if got := l.Entries(); len(got) != 0 {
		t.Errorf("expected empty log, got %d entries", len(got))
	}
	if l.Len() != 0 {
		t.Errorf("expected zero length, got %d", l.Len())
	}
}

func TestLog_PartialFillNewestFirst(t *testing.T) {
	l := New(10)
	for i := 0; i < 5; i++ {
		l.Append(makeEntry(i))
	}

	entries := l.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i, e := range entries {
		expected := fmt.Sprintf("line-%d", 4-i)
		if e.Text != expected {
			t.Errorf("entry %d: expected %s, got %s", i, expected, e.Text)
		}
	}
}

func TestLog_EvictsOldestAtDefaultCapacity(t *testing.T) {
	l := New(0)
	for i := 1; i <= 51; i++ {
		l.Append(makeEntry(i))
	}

	entries := l.Entries()
	if len(entries) != DefaultCapacity {
		t.Fatalf("expected %d entries, got %d", DefaultCapacity, len(entries))
	}
	if entries[0].Text != "line-51" {
		t.Errorf("expected newest entry at head, got %s", entries[0].Text)
	}
	if entries[len(entries)-1].Text != "line-2" {
		t.Errorf("expected line-2 at tail, got %s", entries[len(entries)-1].Text)
	}
	for _, e := range entries {
		if e.Text == "line-1" {
			t.Fatalf("first entry should have been evicted")
		}
	}
}

func TestLog_ExactCapacity(t *testing.T) {
	l := New(3)
	for i := 0; i < 3; i++ {
		l.Append(makeEntry(i))
	}

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "line-2" || entries[2].Text != "line-0" {
		t.Errorf("unexpected order: %v", entries)
	}
	l.Append(makeEntry(3))
	entries = l.Entries()
	if len(entries) != 3 || entries[0].Text != "line-3" || entries[2].Text != "line-1" {
		t.Errorf("unexpected order after wrap: %v", entries)
	}
}

func TestLog_EntriesIsCopy(t *testing.T) {
	l := New(2)
	l.Add(time.Now(), CategoryUser, "hello")

	entries := l.Entries()
	entries[0].Text = "mutated"

	if got := l.Entries()[0].Text; got != "hello" {
		t.Errorf("log was mutated through returned slice: %s", got)
	}
}
