package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/dialog"
	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/identity"
)

type getResult struct {
	data *clip.Data
	err  error
}

// GetClip returns a copy of the clip visible to c. The lookup runs on its own
// goroutine: if it has not finished after ShortWait a dialog is shown and the
// wait extends to LongWait. Dismissing the dialog yields ErrNotFound and
// running out of time yields ErrTimeout. The returned Data is never nil; on
// error it is marked invalid.
func (s *Store) GetClip(ctx context.Context, c identity.Caller) (*clip.Data, error) {
	if !s.pasting.CompareAndSwap(false, true) {
		return invalidData(), fmt.Errorf("get clip: %w", errs.ErrBusy)
	}
	defer s.pasting.Store(false)

	start := s.now()
	slot := make(chan getResult, 1)
	offer := func(r getResult) {
		select {
		case slot <- r:
		default:
		}
	}

	go func() {
		// The worker is not cancelled with the caller: it may outlive the
		// wait, in which case its result is dropped.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShortWait+s.cfg.LongWait)
		defer cancel()
		d, err := s.lookup(wctx, c)
		offer(getResult{data: d, err: err})
	}()

	res, err := s.await(ctx, c, slot, offer)
	if err != nil {
		s.hist.add(s.entry("get", c, nil, err))
		return invalidData(), err
	}
	if res.err != nil {
		s.hist.add(s.entry("get", c, nil, res.err))
		return invalidData(), res.err
	}

	d := res.data
	d.SetLocalPaste(!d.Props.IsRemote && d.Props.TokenID == c.TokenID)

	s.hist.add(s.entry("get", c, d, nil))
	s.notify(KindRead, c.User, c, nil)
	s.logPasteStats(c, d, s.now().Sub(start))
	return d, nil
}

// await blocks for the worker's result, escalating to the dialog after the
// short wait.
func (s *Store) await(ctx context.Context, c identity.Caller, slot <-chan getResult, offer func(getResult)) (getResult, error) {
	short := time.NewTimer(s.cfg.ShortWait)
	defer short.Stop()
	select {
	case r := <-slot:
		return r, nil
	case <-ctx.Done():
		return getResult{}, fmt.Errorf("get clip: %w: %v", errs.ErrTimeout, ctx.Err())
	case <-short.C:
	}

	prompt := dialog.Prompt{User: c.User, Bundle: c.Bundle}
	cancel := func() {
		offer(getResult{err: fmt.Errorf("get clip: %w: dismissed", errs.ErrNotFound)})
	}
	if err := s.dlg.Show(prompt, cancel); err != nil {
		slog.Warn("paste dialog failed", "user", c.User, "err", err)
	}
	defer s.dlg.Close(prompt)

	long := time.NewTimer(s.cfg.LongWait)
	defer long.Stop()
	select {
	case r := <-slot:
		return r, nil
	case <-ctx.Done():
		return getResult{}, fmt.Errorf("get clip: %w: %v", errs.ErrTimeout, ctx.Err())
	case <-long.C:
		slog.Warn("paste timed out", "user", c.User, "bundle", c.Bundle, "waited", s.cfg.ShortWait+s.cfg.LongWait)
		return getResult{}, fmt.Errorf("get clip: %w", errs.ErrTimeout)
	}
}

// lookup refreshes from the distributed layer and returns a copy of the
// user's clip if c may see it.
func (s *Store) lookup(ctx context.Context, c identity.Caller) (*clip.Data, error) {
	s.refresh(ctx, c.User)

	s.mu.Lock()
	d, ok := s.clips[c.User]
	if ok {
		d = d.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get clip: %w", errs.ErrNotFound)
	}
	if err := s.visible(c, d, true); err != nil {
		return nil, err
	}
	return d, nil
}

// visible applies the read permission rules. checkFocus is false for the
// existence probe, which never reveals content.
func (s *Store) visible(c identity.Caller, d *clip.Data, checkFocus bool) error {
	if checkFocus && !d.IsDragged() && !s.policy.IsFocused(c) && !s.policy.IsDefaultIME(c) {
		return fmt.Errorf("get clip for %s: not focused: %w", c, errs.ErrPermissionDenied)
	}
	if d.Props.Scope == clip.ScopeInApp && !d.Props.IsRemote && d.Props.TokenID != c.TokenID {
		return fmt.Errorf("get clip for %s: in-app clip of another caller: %w", c, errs.ErrPermissionDenied)
	}
	return nil
}

// HasClip reports whether c would find a clip, refreshing from the
// distributed layer first.
func (s *Store) HasClip(ctx context.Context, c identity.Caller) bool {
	s.refresh(ctx, c.User)
	d := s.current(c.User)
	return d != nil && d.Valid() && s.visible(c, d, false) == nil
}

func (s *Store) logPasteStats(c identity.Caller, d *clip.Data, took time.Duration) {
	slog.Debug("paste statistics",
		"user", c.User,
		"bundle", c.Bundle,
		"duration", took,
		"bytes", d.Count(),
		"records", d.RecordCount(),
		"remote", d.Props.IsRemote,
		"local_paste", d.IsLocalPaste(),
	)
}
