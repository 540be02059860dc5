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

// refresh adopts the user's newest remote event if it passes accept. Every
// failure degrades to "no remote data". It reports whether a clip was
// adopted.
func (s *Store) refresh(ctx context.Context, user int32) bool {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.plugMu.RLock()
	defer s.plugMu.RUnlock()
	if plugin.IsNoop(s.plug) {
		return false
	}

	events, err := s.plug.GetTopEvents(ctx, 1, user)
	if err != nil {
		slog.Debug("fetch top event failed", "user", user, "err", err)
		return false
	}
	if len(events) == 0 {
		return false
	}
	e := events[0]
	if reason := s.reject(user, e); reason != "" {
		slog.Debug("remote event ignored", "event", e, "reason", reason)
		return false
	}

	payload, err := s.plug.GetPasteData(ctx, e)
	if err != nil {
		slog.Debug("fetch remote payload failed", "event", e, "err", err)
		return false
	}
	d, err := clip.Unmarshal(payload)

	s.mu.Lock()
	s.lastApplied[user] = e
	if err == nil {
		d.Props.IsRemote = true
		d.SetLocalPaste(false)
		s.clips[user] = d
	}
	s.mu.Unlock()

	if err != nil {
		slog.Warn("discarding undecodable remote clip", "event", e, "err", err)
		return false
	}

	logClip("remote clip adopted", user, d.Props.BundleName, d)
	remote := identity.Caller{User: user, TokenID: d.Props.TokenID, Bundle: d.Props.BundleName}
	s.hist.add(s.entry("remote", remote, d, nil))
	s.notify(KindRemote, user, remote, d)
	return true
}

// reject returns why e may not be adopted for user, or "" if it may.
func (s *Store) reject(user int32, e plugin.Event) string {
	switch {
	case e.User != user:
		return "other user"
	case e.AccountID != s.policy.Account(user):
		return "other account"
	case e.DeviceID == s.policy.DeviceID():
		return "local device"
	case e.Status != plugin.StatusNormal:
		return "status " + e.Status.String()
	case !e.Usable(s.now()):
		return "expired"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastApplied[user]; ok && last.SameOrigin(e) {
		return "already applied"
	}
	if cur, ok := s.clips[user]; ok && cur.Props.Timestamp > e.Created {
		return "local clip is newer"
	}
	return ""
}

// Sync forces a reconciliation for c's user. It fails with ErrUnavailable
// when no distributed transport is active and otherwise reports whether a
// remote clip was adopted.
func (s *Store) Sync(ctx context.Context, c identity.Caller) (bool, error) {
	if !s.Distributed() {
		return false, fmt.Errorf("sync: %w", errs.ErrUnavailable)
	}
	return s.refresh(ctx, c.User), nil
}
