package tlv

import (
	"encoding/binary"
	"math"
)

// Writer appends records to a fixed-size buffer. Every write is bounds
// checked and reports false instead of growing the buffer.
type Writer struct {
	buf    []byte
	cursor int
}

// NewWriter returns a Writer over a zeroed buffer of size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// Bytes returns the underlying buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Cursor returns the number of bytes written so far.
func (w *Writer) Cursor() int { return w.cursor }

func (w *Writer) head(tag Tag, n int) bool {
	if n < 0 || uint64(n) > math.MaxUint32 || len(w.buf)-w.cursor < HeadSize+n {
		return false
	}
	binary.BigEndian.PutUint16(w.buf[w.cursor:], uint16(tag))
	binary.BigEndian.PutUint32(w.buf[w.cursor+2:], uint32(n))
	w.cursor += HeadSize
	return true
}

func (w *Writer) raw(tag Tag, v []byte) bool {
	if !w.head(tag, len(v)) {
		return false
	}
	w.cursor += copy(w.buf[w.cursor:], v)
	return true
}

func (w *Writer) WriteBool(tag Tag, v bool) bool {
	var b byte
	if v {
		b = 1
	}
	return w.raw(tag, []byte{b})
}

func (w *Writer) WriteUint8(tag Tag, v uint8) bool {
	return w.raw(tag, []byte{v})
}

func (w *Writer) WriteUint16(tag Tag, v uint16) bool {
	return w.raw(tag, binary.BigEndian.AppendUint16(nil, v))
}

func (w *Writer) WriteUint32(tag Tag, v uint32) bool {
	return w.raw(tag, binary.BigEndian.AppendUint32(nil, v))
}

func (w *Writer) WriteUint64(tag Tag, v uint64) bool {
	return w.raw(tag, binary.BigEndian.AppendUint64(nil, v))
}

func (w *Writer) WriteInt32(tag Tag, v int32) bool { return w.WriteUint32(tag, uint32(v)) }
func (w *Writer) WriteInt64(tag Tag, v int64) bool { return w.WriteUint64(tag, uint64(v)) }

func (w *Writer) WriteString(tag Tag, s string) bool {
	if !w.head(tag, len(s)) {
		return false
	}
	w.cursor += copy(w.buf[w.cursor:], s)
	return true
}

func (w *Writer) WriteBytes(tag Tag, b []byte) bool { return w.raw(tag, b) }

// WriteObject writes m as a nested record. A nil object writes nothing and
// succeeds; readers treat the missing tag as absent.
func (w *Writer) WriteObject(tag Tag, m Marshaler) bool {
	if isNil(m) {
		return true
	}
	return w.nested(tag, m.MarshalTLV)
}

// nested reserves a header, runs fill, then patches the length.
func (w *Writer) nested(tag Tag, fill func(*Writer) bool) bool {
	start := w.cursor
	if !w.head(tag, 0) {
		return false
	}
	if !fill(w) {
		return false
	}
	n := w.cursor - start - HeadSize
	if uint64(n) > math.MaxUint32 {
		return false
	}
	binary.BigEndian.PutUint32(w.buf[start+2:], uint32(n))
	return true
}

func (w *Writer) WriteStrings(tag Tag, ss []string) bool {
	return w.nested(tag, func(w *Writer) bool {
		for _, s := range ss {
			if !w.WriteString(TagVectorItem, s) {
				return false
			}
		}
		return true
	})
}

// WriteBytesMap writes key/value pairs in map iteration order.
func (w *Writer) WriteBytesMap(tag Tag, m map[string][]byte) bool {
	return w.nested(tag, func(w *Writer) bool {
		for k, v := range m {
			if !w.WriteString(TagMapKey, k) || !w.WriteBytes(TagMapValue, v) {
				return false
			}
		}
		return true
	})
}

// WriteObjects writes a vector of objects, skipping nil entries.
func WriteObjects[T Marshaler](w *Writer, tag Tag, items []T) bool {
	return w.nested(tag, func(w *Writer) bool {
		for _, it := range items {
			if isNil(it) {
				continue
			}
			if !w.nested(TagVectorItem, it.MarshalTLV) {
				return false
			}
		}
		return true
	})
}
