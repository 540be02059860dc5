package store

import (
	"sync"
	"time"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
)

// HistoryEntry records one set, get, clear or remote adoption.
type HistoryEntry struct {
	Time    time.Time
	Op      string
	User    int32
	Bundle  string
	TokenID uint32
	OK      bool
	Err     string
	Records int
	Scope   clip.Scope
	Remote  bool
	Local   bool
}

// history is a fixed-size ring of entries.
type history struct {
	mu      sync.Mutex
	entries []HistoryEntry
	next    int
	full    bool
}

func newHistory(size int) *history {
	return &history{entries: make([]HistoryEntry, size)}
}

func (h *history) add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// recent returns up to n entries, newest first.
func (h *history) recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	size := h.next
	if h.full {
		size = len(h.entries)
	}
	n = min(n, size)
	out := make([]HistoryEntry, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.entries)) % len(h.entries)
		out = append(out, h.entries[idx])
	}
	return out
}

func (s *Store) entry(op string, c identity.Caller, d *clip.Data, err error) HistoryEntry {
	e := HistoryEntry{
		Time:    s.now(),
		Op:      op,
		User:    c.User,
		Bundle:  c.Bundle,
		TokenID: c.TokenID,
		OK:      err == nil,
	}
	if err != nil {
		e.Err = err.Error()
	}
	if d != nil {
		e.Records = d.RecordCount()
		e.Scope = d.Props.Scope
		e.Remote = d.Props.IsRemote
		e.Local = d.IsLocalPaste()
	}
	return e
}

// History returns up to n of the most recent operations, newest first.
func (s *Store) History(n int) []HistoryEntry {
	return s.hist.recent(n)
}
