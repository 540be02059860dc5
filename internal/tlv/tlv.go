// Package tlv implements the tag/length/value encoding used for every piece of
// clipboard data that crosses a process or device boundary.
//
// Wire format of one record:
//
//	[ tag: u16 big-endian ][ length: u32 big-endian ][ value: length bytes ]
//
// An object is the concatenation of its fields' records. Nested objects,
// vectors and maps are a single outer record whose value is the concatenation
// of inner records: vector items are tagged TagVectorItem, map entries are
// TagMapKey / TagMapValue pairs.
//
// Encoding is two-pass: Count computes the exact size, the buffer is allocated
// once, and the encoder must fill exactly that many bytes. Decoding is
// best-effort: unknown tags are skipped, a malformed value drops only that
// field, and only a length that overruns the buffer is fatal.
package tlv

import (
	"errors"
	"fmt"
	"reflect"
)

// HeadSize is the encoded size of a record header.
const HeadSize = 6

// Tag identifies a field within its enclosing object.
type Tag uint16

// Tags shared by all containers.
const (
	TagVectorItem Tag = 0x0000
	TagMapKey     Tag = 0x0001
	TagMapValue   Tag = 0x0002
)

var (
	// ErrEncode is returned when an encoder runs out of buffer.
	ErrEncode = errors.New("tlv: encode failed")
	// ErrSizeMismatch is returned when the encoder did not fill exactly Count bytes.
	ErrSizeMismatch = errors.New("tlv: encoded size does not match count")
	// ErrDecode is returned when a buffer overrun makes decoding impossible.
	ErrDecode = errors.New("tlv: decode failed")
)

// Head is a decoded record header.
type Head struct {
	Tag Tag
	Len uint32
}

// Marshaler is implemented by objects that can encode themselves as a
// sequence of records.
type Marshaler interface {
	// Count returns the exact number of bytes MarshalTLV will write.
	Count() int
	// MarshalTLV appends the object's fields to w.
	MarshalTLV(w *Writer) bool
}

// Unmarshaler is implemented by objects that can populate themselves from a
// sequence of records. It returns false only on a fatal overrun.
type Unmarshaler interface {
	UnmarshalTLV(r *Reader) bool
}

// Marshal encodes m into a buffer sized exactly to m.Count().
func Marshal(m Marshaler) ([]byte, error) {
	size := m.Count()
	w := NewWriter(size)
	if !m.MarshalTLV(w) {
		return nil, ErrEncode
	}
	if w.Cursor() != size {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", ErrSizeMismatch, w.Cursor(), size)
	}
	return w.Bytes(), nil
}

// Unmarshal decodes b into u.
func Unmarshal(b []byte, u Unmarshaler) error {
	if !u.UnmarshalTLV(NewReader(b)) {
		return ErrDecode
	}
	return nil
}

// Counting helpers. Each returns the full encoded size of one record,
// header included.

func CountBool() int   { return HeadSize + 1 }
func CountUint8() int  { return HeadSize + 1 }
func CountUint16() int { return HeadSize + 2 }
func CountUint32() int { return HeadSize + 4 }
func CountUint64() int { return HeadSize + 8 }
func CountInt32() int  { return HeadSize + 4 }
func CountInt64() int  { return HeadSize + 8 }

func CountString(s string) int { return HeadSize + len(s) }
func CountBytes(b []byte) int  { return HeadSize + len(b) }

// CountObject returns 0 for a nil object, matching WriteObject which skips it.
func CountObject(m Marshaler) int {
	if isNil(m) {
		return 0
	}
	return HeadSize + m.Count()
}

func CountStrings(ss []string) int {
	n := HeadSize
	for _, s := range ss {
		n += CountString(s)
	}
	return n
}

func CountBytesMap(m map[string][]byte) int {
	n := HeadSize
	for k, v := range m {
		n += CountString(k) + CountBytes(v)
	}
	return n
}

func CountObjects[T Marshaler](items []T) int {
	n := HeadSize
	for _, it := range items {
		if isNil(it) {
			continue
		}
		n += HeadSize + it.Count()
	}
	return n
}

// isNil reports whether m is nil or a typed nil pointer.
func isNil(m Marshaler) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
