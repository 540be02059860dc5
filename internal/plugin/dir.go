package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600

	eventExt   = ".event"
	payloadExt = ".clip"
)

// Dir keeps events in a directory shared between devices, typically a
// network or synced folder. Layout:
//
//	<root>/<user>/<key>.event   TLV-encoded Event
//	<root>/<user>/<key>.clip    payload
//
// Files are written to a temporary name and renamed into place, so readers
// never observe a partial file.
type Dir struct {
	root string
}

// NewDir opens (creating if needed) the shared directory root.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("dir plugin: empty path")
	}
	clean := filepath.Clean(root)
	if !filepath.IsAbs(clean) {
		return nil, fmt.Errorf("dir plugin: path must be absolute: %s", root)
	}
	if err := os.MkdirAll(clean, dirPerm); err != nil {
		return nil, fmt.Errorf("dir plugin: %w", err)
	}
	return &Dir{root: clean}, nil
}

func (d *Dir) userDir(user int32) string {
	return filepath.Join(d.root, strconv.Itoa(int(user)))
}

func (d *Dir) SetPasteData(_ context.Context, e Event, payload []byte) error {
	dir := d.userDir(e.User)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	eb, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	base := filepath.Join(dir, e.Key())
	// Payload first: an event must never be visible before its payload.
	if err := writeAtomic(base+payloadExt, payload); err != nil {
		return err
	}
	if err := writeAtomic(base+eventExt, eb); err != nil {
		return err
	}
	d.prune(dir)
	return nil
}

// prune drops the user's events beyond the newest boardDepth, event file
// first so that no event outlives its payload.
func (d *Dir) prune(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var keys []string
	for _, ent := range entries {
		if name, ok := strings.CutSuffix(ent.Name(), eventExt); ok && !ent.IsDir() {
			keys = append(keys, name)
		}
	}
	for _, k := range staleKeys(keys) {
		base := filepath.Join(dir, k)
		if err := os.Remove(base + eventExt); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("dir plugin: prune failed", "key", k, "err", err)
			continue
		}
		_ = os.Remove(base + payloadExt)
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (d *Dir) GetPasteData(_ context.Context, e Event) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(d.userDir(e.User), e.Key()+payloadExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoPayload
	}
	return b, err
}

func (d *Dir) GetTopEvents(_ context.Context, n int, user int32) ([]Event, error) {
	entries, err := os.ReadDir(d.userDir(user))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), eventExt) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(d.userDir(user), ent.Name()))
		if err != nil {
			continue
		}
		e, err := DecodeEvent(b)
		if err != nil {
			slog.Debug("dir plugin: skipping corrupt event", "file", ent.Name(), "err", err)
			continue
		}
		events = append(events, e)
	}
	return topN(events, n), nil
}

func (d *Dir) Clear(_ context.Context, user int32) error {
	return os.RemoveAll(d.userDir(user))
}

func (d *Dir) Close() error { return nil }
