package clip

import (
	"fmt"
	"slices"
	"time"

	"go.klb.dev/clipd/internal/errs"
)

// MaxRecords is the largest number of records one Data holds.
const MaxRecords = 512

// Scope controls which callers and devices may retrieve a clip.
type Scope uint32

const (
	ScopeInApp Scope = iota
	ScopeLocalDevice
	ScopeCrossDevice
)

func (s Scope) String() string {
	switch s {
	case ScopeInApp:
		return "in-app"
	case ScopeLocalDevice:
		return "local-device"
	case ScopeCrossDevice:
		return "cross-device"
	default:
		return fmt.Sprintf("scope(%d)", uint32(s))
	}
}

// ParseScope accepts the names produced by Scope.String.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "in-app", "inapp":
		return ScopeInApp, nil
	case "local-device", "local", "":
		return ScopeLocalDevice, nil
	case "cross-device", "cross":
		return ScopeCrossDevice, nil
	}
	return 0, fmt.Errorf("%w: unknown scope %q", errs.ErrInvalidArgument, s)
}

// Properties is the metadata block of a Data.
type Properties struct {
	BundleName string
	// TokenID is the opaque identity of the producing caller.
	TokenID uint32
	// Timestamp is the commit time in epoch milliseconds.
	Timestamp int64
	Tag       string
	Scope     Scope
	IsRemote  bool
	// DeviceID names the device that produced the clip.
	DeviceID  string
	Additions map[string][]byte

	mimeTypes []string
}

// Data is an ordered set of records plus metadata. Index 0 is the primary,
// most recently added record.
type Data struct {
	Props        Properties
	records      []*Record
	isDragged    bool
	isLocalPaste bool
	valid        bool
}

// NewData returns a Data holding records in the given order.
func NewData(records ...*Record) *Data {
	d := &Data{valid: true}
	for _, r := range records {
		if r == nil {
			continue
		}
		if len(d.records) == MaxRecords {
			break
		}
		d.records = append(d.records, r)
	}
	d.refreshMimeTypes()
	return d
}

// AddRecord inserts r at the front, evicting the oldest record past the cap.
func (d *Data) AddRecord(r *Record) {
	if r == nil {
		return
	}
	d.records = slices.Insert(d.records, 0, r)
	if len(d.records) > MaxRecords {
		d.records[MaxRecords] = nil
		d.records = d.records[:MaxRecords]
	}
	d.refreshMimeTypes()
}

func (d *Data) RemoveRecordAt(i int) bool {
	if i < 0 || i >= len(d.records) {
		return false
	}
	d.records = slices.Delete(d.records, i, i+1)
	if len(d.records) == 0 {
		d.records = nil
	}
	d.refreshMimeTypes()
	return true
}

func (d *Data) ReplaceRecordAt(i int, r *Record) bool {
	if r == nil || i < 0 || i >= len(d.records) {
		return false
	}
	d.records[i] = r
	d.refreshMimeTypes()
	return true
}

func (d *Data) refreshMimeTypes() {
	var out []string
	for _, r := range d.records {
		out = append(out, r.mimeType)
	}
	d.Props.mimeTypes = out
}

func (d *Data) RecordCount() int { return len(d.records) }

// RecordAt returns the record at i, or nil when out of range.
func (d *Data) RecordAt(i int) *Record {
	if i < 0 || i >= len(d.records) {
		return nil
	}
	return d.records[i]
}

// Records returns the records in order; the slice must not be modified.
func (d *Data) Records() []*Record { return d.records }

// MimeTypes returns the record MIME types in record order.
func (d *Data) MimeTypes() []string { return slices.Clone(d.Props.mimeTypes) }

func (d *Data) HasMimeType(t string) bool {
	return slices.Contains(d.Props.mimeTypes, t)
}

// PrimaryMimeType returns the MIME type of record 0.
func (d *Data) PrimaryMimeType() (string, bool) {
	if len(d.records) == 0 {
		return "", false
	}
	return d.records[0].mimeType, true
}

// PrimaryHTML returns the first html payload in record order.
func (d *Data) PrimaryHTML() (string, bool) {
	for _, r := range d.records {
		if r.html != nil {
			return *r.html, true
		}
	}
	return "", false
}

func (d *Data) PrimaryText() (string, bool) {
	for _, r := range d.records {
		if r.plain != nil {
			return *r.plain, true
		}
	}
	return "", false
}

func (d *Data) PrimaryURI() (string, bool) {
	for _, r := range d.records {
		if r.uri != nil {
			return *r.uri, true
		}
	}
	return "", false
}

func (d *Data) PrimaryPixelMap() (*PixelMap, bool) {
	for _, r := range d.records {
		if r.pixelMap != nil {
			return r.pixelMap, true
		}
	}
	return nil, false
}

func (d *Data) Time() time.Time { return time.UnixMilli(d.Props.Timestamp) }

func (d *Data) IsDragged() bool      { return d.isDragged }
func (d *Data) SetDragged(v bool)    { d.isDragged = v }
func (d *Data) IsLocalPaste() bool   { return d.isLocalPaste }
func (d *Data) SetLocalPaste(v bool) { d.isLocalPaste = v }
func (d *Data) Valid() bool          { return d.valid }
func (d *Data) Invalidate()          { d.valid = false }

// Clone returns a copy whose records and metadata can be changed without
// affecting d.
func (d *Data) Clone() *Data {
	c := *d
	c.Props.Additions = cloneBytesMap(d.Props.Additions)
	c.Props.mimeTypes = slices.Clone(d.Props.mimeTypes)
	if d.records != nil {
		c.records = make([]*Record, len(d.records))
		for i, r := range d.records {
			c.records[i] = r.clone()
		}
	}
	return &c
}

func cloneBytesMap(m map[string][]byte) map[string][]byte {
	if m == nil {
		return nil
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
