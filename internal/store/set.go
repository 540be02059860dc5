package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/plugin"
)

// SetClip makes d the current clip of the caller's user. The store keeps its
// own copy, stamped with the caller's identity and the commit time.
// Cross-device clips are also published through the distributed transport;
// a publishing failure is logged and does not fail the call.
func (s *Store) SetClip(ctx context.Context, c identity.Caller, d *clip.Data) error {
	if !s.policy.CanCopy(c) {
		s.hist.add(s.entry("set", c, nil, errs.ErrPermissionDenied))
		return fmt.Errorf("set clip for %s: %w", c, errs.ErrPermissionDenied)
	}
	if !s.setting.CompareAndSwap(false, true) {
		return fmt.Errorf("set clip: %w", errs.ErrBusy)
	}
	defer s.setting.Store(false)

	if d == nil {
		return fmt.Errorf("set clip: %w: no data", errs.ErrInvalidArgument)
	}

	d = d.Clone()
	d.Props.BundleName = c.Bundle
	d.Props.TokenID = c.TokenID
	d.Props.Timestamp = s.now().UnixMilli()
	d.Props.DeviceID = s.policy.DeviceID()
	d.Props.IsRemote = false
	d.SetLocalPaste(false)

	s.mu.Lock()
	s.clips[c.User] = d
	s.mu.Unlock()

	logClip("clip set", c.User, c.Bundle, d)

	if d.Props.Scope == clip.ScopeCrossDevice {
		if err := s.publish(ctx, c.User, d); err != nil {
			slog.Warn("publish failed, clip stays local", "user", c.User, "err", err)
		}
	}

	s.hist.add(s.entry("set", c, d, nil))
	s.notify(KindChanged, c.User, c, d)
	return nil
}

// publish announces d to the other devices of the user's account.
func (s *Store) publish(ctx context.Context, user int32, d *clip.Data) error {
	s.plugMu.RLock()
	defer s.plugMu.RUnlock()
	if plugin.IsNoop(s.plug) {
		return nil
	}

	payload, err := clip.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	now := s.now()
	e := plugin.Event{
		Version:    plugin.EventVersion,
		FrameNum:   plugin.Frames(len(payload)),
		User:       user,
		SeqID:      s.seq.Add(1),
		Created:    now.UnixMilli(),
		Expiration: now.Add(s.cfg.EventTTL).UnixMilli(),
		Status:     plugin.StatusNormal,
		DeviceID:   s.policy.DeviceID(),
		AccountID:  s.policy.Account(user),
	}
	if err := s.plug.SetPasteData(ctx, e, payload); err != nil {
		return err
	}
	slog.Debug("clip published", "event", e, "bytes", len(payload))
	return nil
}

// Clear drops the user's current clip and asks the transport to forget the
// user's published events.
func (s *Store) Clear(ctx context.Context, c identity.Caller) error {
	if !s.policy.CanCopy(c) {
		return fmt.Errorf("clear clip for %s: %w", c, errs.ErrPermissionDenied)
	}

	s.mu.Lock()
	delete(s.clips, c.User)
	s.mu.Unlock()

	s.plugMu.RLock()
	if err := s.plug.Clear(ctx, c.User); err != nil {
		slog.Debug("remote clear failed", "user", c.User, "err", err)
	}
	s.plugMu.RUnlock()

	slog.Info("clip cleared", "user", c.User, "bundle", c.Bundle)
	s.hist.add(s.entry("clear", c, nil, nil))
	s.notify(KindCleared, c.User, c, nil)
	return nil
}
