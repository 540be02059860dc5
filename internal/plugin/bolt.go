package plugin

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"
)

var (
	bucketEvents   = []byte("events")
	bucketPayloads = []byte("payloads")
)

// Bolt keeps events in a bbolt file. Keys are the big-endian user followed by
// Event.Key, so one user's events are contiguous and sorted oldest first.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (creating if needed) the database at path.
func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt plugin: empty path")
	}
	db, err := bbolt.Open(path, filePerm, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt plugin: open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketPayloads} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt plugin: %w", err)
	}
	return &Bolt{db: db}, nil
}

func userPrefix(user int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(user))
}

func boltKey(e Event) []byte {
	return append(userPrefix(e.User), e.Key()...)
}

func (b *Bolt) SetPasteData(_ context.Context, e Event, payload []byte) error {
	eb, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	key := boltKey(e)
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketPayloads).Put(key, payload); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEvents).Put(key, eb); err != nil {
			return err
		}
		return pruneBolt(tx, e.User)
	})
}

// pruneBolt drops the user's events beyond the newest boardDepth.
func pruneBolt(tx *bbolt.Tx, user int32) error {
	prefix := userPrefix(user)
	var keys [][]byte
	c := tx.Bucket(bucketEvents).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= boardDepth {
		return nil
	}
	for _, k := range keys[:len(keys)-boardDepth] {
		if err := tx.Bucket(bucketEvents).Delete(k); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPayloads).Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bolt) GetPasteData(_ context.Context, e Event) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPayloads).Get(boltKey(e))
		if v == nil {
			return ErrNoPayload
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *Bolt) GetTopEvents(_ context.Context, n int, user int32) ([]Event, error) {
	var events []Event
	prefix := userPrefix(user)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		// Seek to the first key past the prefix, then walk backwards.
		var k []byte
		if next := uint32(user) + 1; next != 0 {
			k, _ = c.Seek(binary.BigEndian.AppendUint32(nil, next))
		}
		if k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
		for ; k != nil && len(events) < n; k, _ = c.Prev() {
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			e, err := DecodeEvent(tx.Bucket(bucketEvents).Get(k))
			if err != nil {
				slog.Debug("bolt plugin: skipping corrupt event", "err", err)
				continue
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topN(events, n), nil
}

func (b *Bolt) Clear(_ context.Context, user int32) error {
	prefix := userPrefix(user)
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketPayloads} {
			bk := tx.Bucket(name)
			c := bk.Cursor()
			var keys [][]byte
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				keys = append(keys, append([]byte(nil), k...))
			}
			for _, k := range keys {
				if err := bk.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
