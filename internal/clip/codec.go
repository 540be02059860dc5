package clip

import (
	"log/slog"

	"go.klb.dev/clipd/internal/tlv"
)

// Data tags.
const (
	tagProps tlv.Tag = iota + 0x0100
	tagRecords
	tagDragged
	tagLocalPaste
	tagHandles
)

// Properties tags.
const (
	tagAdditions tlv.Tag = iota + 0x0200
	tagMimeTypes
	tagTag
	tagTimestamp
	tagScope
	tagTokenID
	tagIsRemote
	tagBundleName
	tagDeviceID
)

// Record tags.
const (
	tagMimeType tlv.Tag = iota + 0x0300
	tagHTML
	tagStructured
	tagPlain
	tagURI
	tagConvertedURI
	tagPixelMap
	tagCustom
)

// PixelMap and Structured tags.
const (
	tagWidth tlv.Tag = iota + 0x0400
	tagHeight
	tagStride
	tagFormat
	tagPixels
	tagType
	tagParams
)

// Marshal returns the TLV encoding of d.
func Marshal(d *Data) ([]byte, error) { return tlv.Marshal(d) }

// Unmarshal decodes a Data. Fields and records that fail to decode are
// dropped; only a buffer overrun is an error.
func Unmarshal(b []byte) (*Data, error) {
	d := &Data{}
	if err := tlv.Unmarshal(b, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Data) Count() int {
	n := tlv.CountObject(&d.Props)
	if len(d.records) > 0 {
		n += tlv.CountObjects(d.records)
	}
	return n + tlv.CountBool() + tlv.CountBool()
}

func (d *Data) MarshalTLV(w *tlv.Writer) bool {
	if !w.WriteObject(tagProps, &d.Props) {
		return false
	}
	if len(d.records) > 0 && !tlv.WriteObjects(w, tagRecords, d.records) {
		return false
	}
	return w.WriteBool(tagDragged, d.isDragged) && w.WriteBool(tagLocalPaste, d.isLocalPaste)
}

func (d *Data) UnmarshalTLV(r *tlv.Reader) bool {
	d.valid = true
	defer d.refreshMimeTypes()
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagProps:
			var p Properties
			if r.ReadObject(h, &p) {
				d.Props = p
			} else {
				slog.Debug("clip: dropping corrupt properties")
			}
		case tagRecords:
			recs, _ := tlv.ReadObjects(r, h, func() *Record { return &Record{} })
			if len(recs) > MaxRecords {
				recs = recs[:MaxRecords]
			}
			d.records = recs
		case tagDragged:
			if v, ok := r.ReadBool(h); ok {
				d.isDragged = v
			}
		case tagLocalPaste:
			if v, ok := r.ReadBool(h); ok {
				d.isLocalPaste = v
			}
		default:
			r.Skip(h)
		}
	}
	return true
}

func (p *Properties) Count() int {
	n := tlv.CountString(p.Tag) + tlv.CountInt64() + tlv.CountUint32() +
		tlv.CountUint32() + tlv.CountBool() + tlv.CountString(p.BundleName) +
		tlv.CountString(p.DeviceID)
	if len(p.Additions) > 0 {
		n += tlv.CountBytesMap(p.Additions)
	}
	if len(p.mimeTypes) > 0 {
		n += tlv.CountStrings(p.mimeTypes)
	}
	return n
}

func (p *Properties) MarshalTLV(w *tlv.Writer) bool {
	if len(p.Additions) > 0 && !w.WriteBytesMap(tagAdditions, p.Additions) {
		return false
	}
	if len(p.mimeTypes) > 0 && !w.WriteStrings(tagMimeTypes, p.mimeTypes) {
		return false
	}
	return w.WriteString(tagTag, p.Tag) &&
		w.WriteInt64(tagTimestamp, p.Timestamp) &&
		w.WriteUint32(tagScope, uint32(p.Scope)) &&
		w.WriteUint32(tagTokenID, p.TokenID) &&
		w.WriteBool(tagIsRemote, p.IsRemote) &&
		w.WriteString(tagBundleName, p.BundleName) &&
		w.WriteString(tagDeviceID, p.DeviceID)
}

func (p *Properties) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagAdditions:
			if m, ok := r.ReadBytesMap(h); ok && len(m) > 0 {
				p.Additions = m
			}
		case tagMimeTypes:
			// derived from the records after decoding
			r.Skip(h)
		case tagTag:
			p.Tag, _ = r.ReadString(h)
		case tagTimestamp:
			p.Timestamp, _ = r.ReadInt64(h)
		case tagScope:
			if v, ok := r.ReadUint32(h); ok {
				p.Scope = Scope(v)
			}
		case tagTokenID:
			p.TokenID, _ = r.ReadUint32(h)
		case tagIsRemote:
			p.IsRemote, _ = r.ReadBool(h)
		case tagBundleName:
			p.BundleName, _ = r.ReadString(h)
		case tagDeviceID:
			p.DeviceID, _ = r.ReadString(h)
		default:
			r.Skip(h)
		}
	}
	return true
}

func countOptString(s *string) int {
	if s == nil {
		return 0
	}
	return tlv.CountString(*s)
}

func writeOptString(w *tlv.Writer, tag tlv.Tag, s *string) bool {
	if s == nil {
		return true
	}
	return w.WriteString(tag, *s)
}

func readOptString(r *tlv.Reader, h tlv.Head) *string {
	s, _ := r.ReadString(h)
	return &s
}

func (rec *Record) Count() int {
	n := tlv.CountString(rec.mimeType) +
		countOptString(rec.html) +
		countOptString(rec.plain) +
		countOptString(rec.uri) +
		tlv.CountObject(rec.structured) +
		tlv.CountObject(rec.pixelMap)
	if rec.convertedURI != "" {
		n += tlv.CountString(rec.convertedURI)
	}
	if len(rec.custom) > 0 {
		n += tlv.CountBytesMap(rec.custom)
	}
	return n
}

func (rec *Record) MarshalTLV(w *tlv.Writer) bool {
	ok := w.WriteString(tagMimeType, rec.mimeType) &&
		writeOptString(w, tagHTML, rec.html) &&
		w.WriteObject(tagStructured, rec.structured) &&
		writeOptString(w, tagPlain, rec.plain) &&
		writeOptString(w, tagURI, rec.uri)
	if ok && rec.convertedURI != "" {
		ok = w.WriteString(tagConvertedURI, rec.convertedURI)
	}
	ok = ok && w.WriteObject(tagPixelMap, rec.pixelMap)
	if ok && len(rec.custom) > 0 {
		ok = w.WriteBytesMap(tagCustom, rec.custom)
	}
	return ok
}

func (rec *Record) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagMimeType:
			rec.mimeType, _ = r.ReadString(h)
		case tagHTML:
			rec.html = readOptString(r, h)
		case tagPlain:
			rec.plain = readOptString(r, h)
		case tagURI:
			rec.uri = readOptString(r, h)
		case tagConvertedURI:
			rec.convertedURI, _ = r.ReadString(h)
		case tagStructured:
			s := &Structured{}
			if r.ReadObject(h, s) {
				rec.structured = s
			}
		case tagPixelMap:
			pm := &PixelMap{}
			if r.ReadObject(h, pm) {
				rec.pixelMap = pm
			}
		case tagCustom:
			if m, ok := r.ReadBytesMap(h); ok && len(m) > 0 {
				rec.custom = m
			}
		default:
			r.Skip(h)
		}
	}
	return true
}

func (pm *PixelMap) Count() int {
	return 3*tlv.CountInt32() + tlv.CountString(pm.Format) + tlv.CountBytes(pm.Pixels)
}

func (pm *PixelMap) MarshalTLV(w *tlv.Writer) bool {
	return w.WriteInt32(tagWidth, pm.Width) &&
		w.WriteInt32(tagHeight, pm.Height) &&
		w.WriteInt32(tagStride, pm.Stride) &&
		w.WriteString(tagFormat, pm.Format) &&
		w.WriteBytes(tagPixels, pm.Pixels)
}

func (pm *PixelMap) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagWidth:
			pm.Width, _ = r.ReadInt32(h)
		case tagHeight:
			pm.Height, _ = r.ReadInt32(h)
		case tagStride:
			pm.Stride, _ = r.ReadInt32(h)
		case tagFormat:
			pm.Format, _ = r.ReadString(h)
		case tagPixels:
			pm.Pixels, _ = r.ReadBytes(h)
		default:
			r.Skip(h)
		}
	}
	return true
}

func (s *Structured) Count() int {
	n := tlv.CountString(s.Type)
	if len(s.Params) > 0 {
		n += tlv.CountBytesMap(s.Params)
	}
	return n
}

func (s *Structured) MarshalTLV(w *tlv.Writer) bool {
	if !w.WriteString(tagType, s.Type) {
		return false
	}
	return len(s.Params) == 0 || w.WriteBytesMap(tagParams, s.Params)
}

func (s *Structured) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagType:
			s.Type, _ = r.ReadString(h)
		case tagParams:
			if m, ok := r.ReadBytesMap(h); ok && len(m) > 0 {
				s.Params = m
			}
		default:
			r.Skip(h)
		}
	}
	return true
}
