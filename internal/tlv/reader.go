package tlv

import "encoding/binary"

// Reader walks the records of one object. Heads are validated against the
// remaining buffer, so once ReadHead succeeds the value can always be
// consumed; typed reads fail only when the value has the wrong shape.
type Reader struct {
	buf    []byte
	cursor int
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// More reports whether unread bytes remain.
func (r *Reader) More() bool { return r.cursor < len(r.buf) }

// Cursor returns the number of bytes consumed.
func (r *Reader) Cursor() int { return r.cursor }

// ReadHead reads the next header. It fails if the header is truncated or its
// length runs past the end of the buffer.
func (r *Reader) ReadHead() (Head, bool) {
	rest := len(r.buf) - r.cursor
	if rest < HeadSize {
		return Head{}, false
	}
	h := Head{
		Tag: Tag(binary.BigEndian.Uint16(r.buf[r.cursor:])),
		Len: binary.BigEndian.Uint32(r.buf[r.cursor+2:]),
	}
	if uint64(h.Len) > uint64(rest-HeadSize) {
		return Head{}, false
	}
	r.cursor += HeadSize
	return h, true
}

func (r *Reader) value(h Head) []byte {
	v := r.buf[r.cursor : r.cursor+int(h.Len)]
	r.cursor += int(h.Len)
	return v
}

// Skip consumes the value of an unrecognized record.
func (r *Reader) Skip(h Head) bool {
	r.value(h)
	return true
}

func (r *Reader) ReadBool(h Head) (bool, bool) {
	v := r.value(h)
	if len(v) != 1 {
		return false, false
	}
	return v[0] != 0, true
}

func (r *Reader) ReadUint8(h Head) (uint8, bool) {
	v := r.value(h)
	if len(v) != 1 {
		return 0, false
	}
	return v[0], true
}

func (r *Reader) ReadUint16(h Head) (uint16, bool) {
	v := r.value(h)
	if len(v) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(v), true
}

func (r *Reader) ReadUint32(h Head) (uint32, bool) {
	v := r.value(h)
	if len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

func (r *Reader) ReadUint64(h Head) (uint64, bool) {
	v := r.value(h)
	if len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

func (r *Reader) ReadInt32(h Head) (int32, bool) {
	v, ok := r.ReadUint32(h)
	return int32(v), ok
}

func (r *Reader) ReadInt64(h Head) (int64, bool) {
	v, ok := r.ReadUint64(h)
	return int64(v), ok
}

func (r *Reader) ReadString(h Head) (string, bool) {
	return string(r.value(h)), true
}

// ReadBytes returns a copy of the value; an empty value reads as nil.
func (r *Reader) ReadBytes(h Head) ([]byte, bool) {
	v := r.value(h)
	if len(v) == 0 {
		return nil, true
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// ReadObject decodes a nested record into u. The outer cursor always advances
// past the record, whatever u does with its contents.
func (r *Reader) ReadObject(h Head, u Unmarshaler) bool {
	return u.UnmarshalTLV(NewReader(r.value(h)))
}

// Sub returns a Reader limited to the value of h.
func (r *Reader) Sub(h Head) *Reader {
	return NewReader(r.value(h))
}

func (r *Reader) ReadStrings(h Head) ([]string, bool) {
	sub := r.Sub(h)
	var out []string
	for sub.More() {
		ih, ok := sub.ReadHead()
		if !ok {
			return out, false
		}
		if ih.Tag != TagVectorItem {
			sub.Skip(ih)
			continue
		}
		s, _ := sub.ReadString(ih)
		out = append(out, s)
	}
	return out, true
}

// ReadBytesMap decodes MapKey/MapValue pairs. A key without a following value
// is dropped.
func (r *Reader) ReadBytesMap(h Head) (map[string][]byte, bool) {
	sub := r.Sub(h)
	out := make(map[string][]byte)
	var (
		key    string
		hasKey bool
	)
	for sub.More() {
		ih, ok := sub.ReadHead()
		if !ok {
			return out, false
		}
		switch ih.Tag {
		case TagMapKey:
			key, _ = sub.ReadString(ih)
			hasKey = true
		case TagMapValue:
			v, _ := sub.ReadBytes(ih)
			if hasKey {
				out[key] = v
				hasKey = false
			}
		default:
			sub.Skip(ih)
		}
	}
	return out, true
}

// ReadObjects decodes a vector of objects. alloc returns a fresh value for
// each item; an item whose decoding fails is dropped and its siblings are
// still decoded.
func ReadObjects[T Unmarshaler](r *Reader, h Head, alloc func() T) ([]T, bool) {
	sub := r.Sub(h)
	var out []T
	for sub.More() {
		ih, ok := sub.ReadHead()
		if !ok {
			return out, false
		}
		if ih.Tag != TagVectorItem {
			sub.Skip(ih)
			continue
		}
		it := alloc()
		if sub.ReadObject(ih, it) {
			out = append(out, it)
		}
	}
	return out, true
}
