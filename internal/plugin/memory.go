package plugin

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

// boardDepth is the number of events every board keeps per user. Older
// events are dropped when a newer one is stored.
const boardDepth = 16

type memoryEntry struct {
	event   Event
	payload []byte
}

// Memory is an in-process event board. The relay server exposes one to
// remote devices; tests share one between stores.
type Memory struct {
	mu    sync.RWMutex
	users map[int32][]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{users: make(map[int32][]memoryEntry)}
}

func (m *Memory) SetPasteData(_ context.Context, e Event, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.users[e.User]
	entries = slices.DeleteFunc(entries, func(x memoryEntry) bool { return x.event.SameOrigin(e) })
	entries = append(entries, memoryEntry{event: e, payload: bytes.Clone(payload)})
	sortEntries(entries)
	if len(entries) > boardDepth {
		entries = entries[:boardDepth]
	}
	m.users[e.User] = entries
	return nil
}

func (m *Memory) GetPasteData(_ context.Context, e Event) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, x := range m.users[e.User] {
		if x.event.SameOrigin(e) {
			return bytes.Clone(x.payload), nil
		}
	}
	return nil, ErrNoPayload
}

func (m *Memory) GetTopEvents(_ context.Context, n int, user int32) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.users[user]
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]Event, 0, max(n, 0))
	for _, x := range entries[:max(n, 0)] {
		out = append(out, x.event)
	}
	return out, nil
}

func (m *Memory) Clear(_ context.Context, user int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, user)
	return nil
}

// Close is a no-op: a board outlives the components that share it.
func (m *Memory) Close() error { return nil }

// sortEntries orders newest first.
func sortEntries(entries []memoryEntry) {
	slices.SortStableFunc(entries, func(a, b memoryEntry) int {
		return compareNewest(a.event, b.event)
	})
}

// compareNewest orders events by descending creation time, then descending
// sequence id.
func compareNewest(a, b Event) int {
	switch {
	case a.Created != b.Created:
		if a.Created > b.Created {
			return -1
		}
		return 1
	case a.SeqID != b.SeqID:
		if a.SeqID > b.SeqID {
			return -1
		}
		return 1
	}
	return 0
}

// topN sorts events newest first and keeps at most n of them.
func topN(events []Event, n int) []Event {
	slices.SortStableFunc(events, compareNewest)
	if n < 0 {
		n = 0
	}
	if len(events) > n {
		events = events[:n]
	}
	return events
}

// staleKeys returns the event keys beyond the newest boardDepth. Keys of one
// user sort by creation time.
func staleKeys(keys []string) []string {
	if len(keys) <= boardDepth {
		return nil
	}
	slices.Sort(keys)
	return keys[:len(keys)-boardDepth]
}
