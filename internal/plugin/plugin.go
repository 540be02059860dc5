// Package plugin defines the transport the store uses to share the latest
// clip between devices, plus a registry of named backends.
//
// A Plugin carries Events (small envelopes) and the opaque payload each one
// announces. Backends are free to fail: callers treat every error as "no
// distributed data" and carry on with local state.
package plugin

import (
	"context"
	"errors"
)

// ErrNoPayload is returned by GetPasteData when the payload of an event is
// not (or no longer) held by the backend.
var ErrNoPayload = errors.New("plugin: payload not found")

// Plugin is a distributed clip transport.
type Plugin interface {
	// SetPasteData publishes payload under e.
	SetPasteData(ctx context.Context, e Event, payload []byte) error

	// GetPasteData fetches the payload published under e.
	GetPasteData(ctx context.Context, e Event) ([]byte, error)

	// GetTopEvents returns up to n of user's most recent events, newest first.
	GetTopEvents(ctx context.Context, n int, user int32) ([]Event, error)

	// Clear drops every event of user.
	Clear(ctx context.Context, user int32) error

	Close() error
}

// Noop is the default plugin: writes vanish and reads find nothing.
type Noop struct{}

func (Noop) SetPasteData(context.Context, Event, []byte) error { return nil }

func (Noop) GetPasteData(context.Context, Event) ([]byte, error) { return nil, ErrNoPayload }

func (Noop) GetTopEvents(context.Context, int, int32) ([]Event, error) { return nil, nil }

func (Noop) Clear(context.Context, int32) error { return nil }

func (Noop) Close() error { return nil }

// IsNoop reports whether p is the default plugin.
func IsNoop(p Plugin) bool {
	_, ok := p.(Noop)
	return ok
}
