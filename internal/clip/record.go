// Package clip defines clipboard contents: typed records, the ordered
// collection that forms one commit, and their TLV encoding.
package clip

import (
	"bytes"
	"fmt"

	"go.klb.dev/clipd/internal/errs"
)

// Standard MIME types.
const (
	MimePlain      = "text/plain"
	MimeHTML       = "text/html"
	MimeURI        = "text/uri"
	MimePixelMap   = "pixelMap"
	MimeStructured = "text/want"
)

// MaxTextSize is the exclusive upper bound on html and plain text payloads.
const MaxTextSize = 20 * 1024 * 1024

// Record is one typed clipboard entry. At most one slot is the primary content
// matching MimeType; custom data may ride alongside any slot.
type Record struct {
	mimeType     string
	html         *string
	plain        *string
	uri          *string
	convertedURI string
	pixelMap     *PixelMap
	structured   *Structured
	custom       map[string][]byte

	// handle is set only while a file-backed uri is being handed across the
	// transport; it is never encoded.
	handle *Handle
}

func checkText(text string) error {
	if len(text) >= MaxTextSize {
		return fmt.Errorf("%w: text of %d bytes exceeds limit", errs.ErrInvalidArgument, len(text))
	}
	return nil
}

func NewHTML(text string) (*Record, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	return &Record{mimeType: MimeHTML, html: &text}, nil
}

func NewPlainText(text string) (*Record, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	return &Record{mimeType: MimePlain, plain: &text}, nil
}

func NewURI(uri string) *Record {
	return &Record{mimeType: MimeURI, uri: &uri}
}

// NewPixelMap copies pm; the record owns its copy.
func NewPixelMap(pm *PixelMap) *Record {
	return &Record{mimeType: MimePixelMap, pixelMap: pm.Clone()}
}

func NewStructured(s *Structured) *Record {
	return &Record{mimeType: MimeStructured, structured: s.Clone()}
}

// NewKV creates a record carrying raw bytes under a custom MIME type.
func NewKV(mimeType string, value []byte) *Record {
	return &Record{
		mimeType: mimeType,
		custom:   map[string][]byte{mimeType: bytes.Clone(value)},
	}
}

// NewRecord creates a record from a MIME type and a raw value, picking the
// slot the MIME type names. Unknown types become custom data.
func NewRecord(mimeType string, value []byte) (*Record, error) {
	switch mimeType {
	case MimePlain:
		return NewPlainText(string(value))
	case MimeHTML:
		return NewHTML(string(value))
	case MimeURI:
		return NewURI(string(value)), nil
	case MimePixelMap, MimeStructured:
		return nil, fmt.Errorf("%w: %s needs a typed value", errs.ErrInvalidArgument, mimeType)
	default:
		return NewKV(mimeType, value), nil
	}
}

func (r *Record) MimeType() string { return r.mimeType }

func (r *Record) HTML() (string, bool) {
	if r.html == nil {
		return "", false
	}
	return *r.html, true
}

func (r *Record) PlainText() (string, bool) {
	if r.plain == nil {
		return "", false
	}
	return *r.plain, true
}

func (r *Record) URI() (string, bool) {
	if r.uri == nil {
		return "", false
	}
	return *r.uri, true
}

// ConvertedURI returns the server-assigned URI set during handle exchange.
func (r *Record) ConvertedURI() string { return r.convertedURI }

func (r *Record) PixelMap() *PixelMap     { return r.pixelMap }
func (r *Record) Structured() *Structured { return r.structured }

// CustomData returns the side-channel bytes; the map must not be modified.
func (r *Record) CustomData() map[string][]byte { return r.custom }

// ConvertToText returns html, else plain text, else the uri, else "".
func (r *Record) ConvertToText() string {
	switch {
	case r.html != nil:
		return *r.html
	case r.plain != nil:
		return *r.plain
	case r.uri != nil:
		return *r.uri
	}
	return ""
}

// Payload returns the primary content selected by the MIME type, or nil.
func (r *Record) Payload() Payload {
	switch r.mimeType {
	case MimeHTML:
		if r.html != nil {
			return HTML(*r.html)
		}
	case MimePlain:
		if r.plain != nil {
			return PlainText(*r.plain)
		}
	case MimeURI:
		if r.uri != nil {
			return URI(*r.uri)
		}
	case MimePixelMap:
		if r.pixelMap != nil {
			return r.pixelMap
		}
	case MimeStructured:
		if r.structured != nil {
			return r.structured
		}
	default:
		if v, ok := r.custom[r.mimeType]; ok {
			return CustomData{MimeType: r.mimeType, Value: v}
		}
	}
	return nil
}

func (r *Record) clone() *Record {
	c := *r
	c.pixelMap = r.pixelMap.Clone()
	c.structured = r.structured.Clone()
	c.custom = cloneBytesMap(r.custom)
	c.handle = nil
	return &c
}

// Builder assembles an untyped record field by field.
type Builder struct {
	r   Record
	err error
}

func NewBuilder(mimeType string) *Builder {
	return &Builder{r: Record{mimeType: mimeType}}
}

func (b *Builder) SetMimeType(mimeType string) *Builder {
	b.r.mimeType = mimeType
	return b
}

func (b *Builder) SetHTML(text string) *Builder {
	if err := checkText(text); err != nil {
		b.err = err
		return b
	}
	b.r.html = &text
	return b
}

func (b *Builder) SetPlainText(text string) *Builder {
	if err := checkText(text); err != nil {
		b.err = err
		return b
	}
	b.r.plain = &text
	return b
}

func (b *Builder) SetURI(uri string) *Builder {
	b.r.uri = &uri
	return b
}

func (b *Builder) SetPixelMap(pm *PixelMap) *Builder {
	b.r.pixelMap = pm.Clone()
	return b
}

func (b *Builder) SetStructured(s *Structured) *Builder {
	b.r.structured = s.Clone()
	return b
}

// SetCustomData replaces the side-channel map. An empty map clears it.
func (b *Builder) SetCustomData(m map[string][]byte) *Builder {
	if len(m) == 0 {
		b.r.custom = nil
		return b
	}
	b.r.custom = make(map[string][]byte, len(m))
	for k, v := range m {
		b.r.custom[k] = bytes.Clone(v)
	}
	return b
}

// Build returns the record, or the first validation error a setter hit.
func (b *Builder) Build() (*Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := b.r
	return &r, nil
}
