package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/identity"
)

// DumpOptions selects the sections of Dump.
type DumpOptions struct {
	// CopyHistory is the number of recent operations to list; 0 omits them.
	CopyHistory int
	// Data lists every user's current clip.
	Data bool
}

const dumpTime = "2006-01-02T15:04:05.000Z07:00"

// Dump renders the requested diagnostics as plain text. Only privileged
// callers may use it.
func (s *Store) Dump(c identity.Caller, opts DumpOptions) (string, error) {
	if !s.policy.Privileged(c) {
		return "", fmt.Errorf("dump for %s: %w", c, errs.ErrPermissionDenied)
	}

	var b strings.Builder
	if opts.CopyHistory > 0 {
		entries := s.History(opts.CopyHistory)
		fmt.Fprintf(&b, "copy history (%d most recent):\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s %-6s user=%d bundle=%s token=%d ok=%t",
				e.Time.Format(dumpTime), e.Op, e.User, e.Bundle, e.TokenID, e.OK)
			if e.OK && e.Op != "clear" {
				fmt.Fprintf(&b, " records=%d scope=%s remote=%t local_paste=%t",
					e.Records, e.Scope, e.Remote, e.Local)
			}
			if e.Err != "" {
				fmt.Fprintf(&b, " err=%q", e.Err)
			}
			b.WriteByte('\n')
		}
	}

	if opts.Data {
		s.mu.Lock()
		users := make([]int32, 0, len(s.clips))
		for u := range s.clips {
			users = append(users, u)
		}
		slices.Sort(users)
		fmt.Fprintf(&b, "current data (%d users):\n", len(users))
		for _, u := range users {
			d := s.clips[u]
			origin := "local"
			if d.Props.IsRemote {
				origin = "remote:" + d.Props.DeviceID
			}
			fmt.Fprintf(&b, "  user=%d owner=%s token=%d time=%s scope=%s records=%d mime=[%s] origin=%s\n",
				u, d.Props.BundleName, d.Props.TokenID,
				time.UnixMilli(d.Props.Timestamp).UTC().Format(dumpTime),
				d.Props.Scope, d.RecordCount(), strings.Join(d.MimeTypes(), ","), origin)
		}
		s.mu.Unlock()
	}

	if b.Len() == 0 {
		b.WriteString("nothing to dump: pass --copy-history N and/or --data\n")
	}
	return b.String(), nil
}
