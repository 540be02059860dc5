package plugin

import (
	"context"

	"go.klb.dev/clipd/internal/crypto"
)

const sealPurpose = "clipd-event-v1"

// sealed encrypts payloads on their way into the inner plugin. Events stay
// readable so backends can list and order them.
type sealed struct {
	Plugin
	key *crypto.Key
}

// Sealed wraps p so every payload is sealed with a key derived from
// passphrase. An empty passphrase returns p unchanged.
func Sealed(p Plugin, passphrase string) (Plugin, error) {
	if passphrase == "" || IsNoop(p) {
		return p, nil
	}
	key, err := crypto.DeriveKey(passphrase, sealPurpose)
	if err != nil {
		return nil, err
	}
	return &sealed{Plugin: p, key: key}, nil
}

func (s *sealed) SetPasteData(ctx context.Context, e Event, payload []byte) error {
	box, err := s.key.Seal(payload)
	if err != nil {
		return err
	}
	return s.Plugin.SetPasteData(ctx, e, box)
}

func (s *sealed) GetPasteData(ctx context.Context, e Event) ([]byte, error) {
	box, err := s.Plugin.GetPasteData(ctx, e)
	if err != nil {
		return nil, err
	}
	return s.key.Open(box)
}
