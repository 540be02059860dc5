package store

import (
	"fmt"
	"time"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
)

// Kind is the reason an observer is notified.
type Kind uint8

const (
	// KindChanged follows a successful SetClip.
	KindChanged Kind = iota + 1
	// KindRead follows a successful GetClip.
	KindRead
	// KindCleared follows Clear.
	KindCleared
	// KindRemote follows adoption of a clip published by another device.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindChanged:
		return "changed"
	case KindRead:
		return "read"
	case KindCleared:
		return "cleared"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Notification describes one store event for a user. Data is a private copy
// of the new clip for KindChanged and KindRemote, and nil otherwise.
type Notification struct {
	Kind   Kind
	User   int32
	Caller identity.Caller
	Time   time.Time
	Data   *clip.Data
}

// Observer receives notifications synchronously on the goroutine of the
// operation that caused them. It must not call back into SetClip or GetClip
// on the same goroutine.
type Observer interface {
	OnClipEvent(n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Notification)

func (f ObserverFunc) OnClipEvent(n Notification) { f(n) }

// Subscribe registers o for user's notifications. The returned function
// unregisters it and may be called more than once.
func (s *Store) Subscribe(user int32, o Observer) (cancel func()) {
	s.obsMu.Lock()
	s.nextObs++
	id := s.nextObs
	if s.observers[user] == nil {
		s.observers[user] = make(map[uint64]Observer)
	}
	s.observers[user][id] = o
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers[user], id)
		if len(s.observers[user]) == 0 {
			delete(s.observers, user)
		}
	}
}

func (s *Store) notify(kind Kind, user int32, c identity.Caller, d *clip.Data) {
	s.obsMu.RLock()
	targets := make([]Observer, 0, len(s.observers[user]))
	for _, o := range s.observers[user] {
		targets = append(targets, o)
	}
	s.obsMu.RUnlock()

	for _, o := range targets {
		n := Notification{Kind: kind, User: user, Caller: c, Time: s.now()}
		if d != nil {
			n.Data = d.Clone()
		}
		o.OnClipEvent(n)
	}
}
