package store

import (
	"time"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
)

// Status summarizes the service as seen by one caller.
type Status struct {
	Device      string
	Distributed bool
	Plugin      string
	// HasClip is false when the caller's user has no valid clip or the
	// caller may not see it; the clip fields are then zero.
	HasClip bool
	Owner   string
	Scope   clip.Scope
	Remote  bool
	Origin  string
	Types   []string
	Updated time.Time
}

// Status reports transport state and the metadata of c's current clip. It
// never reveals content and does not consult the distributed layer.
func (s *Store) Status(c identity.Caller) Status {
	st := Status{
		Device:      s.policy.DeviceID(),
		Distributed: s.Distributed(),
		Plugin:      s.cfg.PluginName,
	}
	s.mu.Lock()
	d, ok := s.clips[c.User]
	if ok {
		d = d.Clone()
	}
	s.mu.Unlock()
	if !ok || !d.Valid() || s.visible(c, d, false) != nil {
		return st
	}
	st.HasClip = true
	st.Owner = d.Props.BundleName
	st.Scope = d.Props.Scope
	st.Remote = d.Props.IsRemote
	st.Origin = d.Props.DeviceID
	st.Types = d.MimeTypes()
	st.Updated = d.Time()
	return st
}
