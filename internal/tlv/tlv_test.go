package tlv

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tagName Tag = iota + 0x10
	tagAge
	tagFlag
	tagTags
	tagAttrs
	tagChild
	tagKids
	tagBig
)

type sample struct {
	name  string
	age   int32
	flag  bool
	big   uint64
	tags  []string
	attrs map[string][]byte
	child *sample
	kids  []*sample
}

func (s *sample) Count() int {
	n := CountString(s.name) + CountInt32() + CountBool() + CountUint64()
	if len(s.tags) > 0 {
		n += CountStrings(s.tags)
	}
	if len(s.attrs) > 0 {
		n += CountBytesMap(s.attrs)
	}
	n += CountObject(s.child)
	if len(s.kids) > 0 {
		n += CountObjects(s.kids)
	}
	return n
}

func (s *sample) MarshalTLV(w *Writer) bool {
	ok := w.WriteString(tagName, s.name) &&
		w.WriteInt32(tagAge, s.age) &&
		w.WriteBool(tagFlag, s.flag) &&
		w.WriteUint64(tagBig, s.big)
	if ok && len(s.tags) > 0 {
		ok = w.WriteStrings(tagTags, s.tags)
	}
	if ok && len(s.attrs) > 0 {
		ok = w.WriteBytesMap(tagAttrs, s.attrs)
	}
	ok = ok && w.WriteObject(tagChild, s.child)
	if ok && len(s.kids) > 0 {
		ok = WriteObjects(w, tagKids, s.kids)
	}
	return ok
}

func (s *sample) UnmarshalTLV(r *Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagName:
			s.name, ok = r.ReadString(h)
		case tagAge:
			s.age, ok = r.ReadInt32(h)
		case tagFlag:
			s.flag, ok = r.ReadBool(h)
		case tagBig:
			s.big, ok = r.ReadUint64(h)
		case tagTags:
			s.tags, ok = r.ReadStrings(h)
		case tagAttrs:
			s.attrs, ok = r.ReadBytesMap(h)
		case tagChild:
			s.child = &sample{}
			if !r.ReadObject(h, s.child) {
				s.child = nil
			}
		case tagKids:
			s.kids, ok = ReadObjects(r, h, func() *sample { return &sample{} })
		default:
			r.Skip(h)
		}
		_ = ok
	}
	return true
}

func TestMarshal_RoundTrip(t *testing.T) {
	in := &sample{
		name:  "root",
		age:   -42,
		flag:  true,
		big:   1 << 60,
		tags:  []string{"a", "", "ccc"},
		attrs: map[string][]byte{"k1": {1, 2, 3}, "k2": {0}},
		child: &sample{name: "child", age: 7},
		kids:  []*sample{{name: "k0"}, {name: "k1", flag: true}},
	}

	b, err := Marshal(in)
	require.NoError(t, err)
	assert.Len(t, b, in.Count())

	out := &sample{}
	require.NoError(t, Unmarshal(b, out))
	assert.Equal(t, in, out)
}

func TestMarshal_NilObjectSkipped(t *testing.T) {
	in := &sample{name: "x"}
	b, err := Marshal(in)
	require.NoError(t, err)

	out := &sample{}
	require.NoError(t, Unmarshal(b, out))
	assert.Nil(t, out.child)
}

type lying struct{}

func (lying) Count() int                { return 10 }
func (lying) MarshalTLV(w *Writer) bool { return w.WriteBool(1, true) }

func TestMarshal_SizeMismatch(t *testing.T) {
	_, err := Marshal(lying{})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

type greedy struct{}

func (greedy) Count() int                { return 3 }
func (greedy) MarshalTLV(w *Writer) bool { return w.WriteString(1, "too long") }

func TestMarshal_Overrun(t *testing.T) {
	_, err := Marshal(greedy{})
	assert.ErrorIs(t, err, ErrEncode)
}

func TestReader_UnknownTagSkipped(t *testing.T) {
	w := NewWriter(CountString("zzz") + CountString("name") + CountInt32())
	require.True(t, w.WriteString(0x7777, "zzz"))
	require.True(t, w.WriteString(tagName, "name"))
	require.True(t, w.WriteInt32(tagAge, 3))

	out := &sample{}
	require.NoError(t, Unmarshal(w.Bytes(), out))
	assert.Equal(t, "name", out.name)
	assert.Equal(t, int32(3), out.age)
}

func TestReader_MalformedValueDropsOnlyThatField(t *testing.T) {
	// age encoded with 2 bytes instead of 4
	w := NewWriter(HeadSize + 2 + CountString("n"))
	require.True(t, w.WriteUint16(tagAge, 9))
	require.True(t, w.WriteString(tagName, "n"))

	out := &sample{}
	require.NoError(t, Unmarshal(w.Bytes(), out))
	assert.Equal(t, int32(0), out.age)
	assert.Equal(t, "n", out.name)
}

func TestReader_OverrunIsFatal(t *testing.T) {
	b := make([]byte, HeadSize+2)
	binary.BigEndian.PutUint16(b, uint16(tagName))
	binary.BigEndian.PutUint32(b[2:], 100)

	err := Unmarshal(b, &sample{})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReader_TruncatedHead(t *testing.T) {
	r := NewReader([]byte{0, 1, 0})
	_, ok := r.ReadHead()
	assert.False(t, ok)
}

func TestReadObjects_BadItemDropped(t *testing.T) {
	good, err := Marshal(&sample{name: "good"})
	require.NoError(t, err)

	// second item holds a head that claims more bytes than the item has
	bad := make([]byte, HeadSize)
	binary.BigEndian.PutUint16(bad, uint16(tagName))
	binary.BigEndian.PutUint32(bad[2:], 50)

	inner := NewWriter(CountBytes(good) + CountBytes(bad))
	require.True(t, inner.WriteBytes(TagVectorItem, good))
	require.True(t, inner.WriteBytes(TagVectorItem, bad))

	outer := NewWriter(CountBytes(inner.Bytes()))
	require.True(t, outer.WriteBytes(tagKids, inner.Bytes()))

	out := &sample{}
	require.NoError(t, Unmarshal(outer.Bytes(), out))
	require.Len(t, out.kids, 1)
	assert.Equal(t, "good", out.kids[0].name)
}

func TestCount_MatchesWriters(t *testing.T) {
	tests := []struct {
		name  string
		count int
		write func(w *Writer) bool
	}{
		{"bool", CountBool(), func(w *Writer) bool { return w.WriteBool(1, true) }},
		{"uint8", CountUint8(), func(w *Writer) bool { return w.WriteUint8(1, 7) }},
		{"uint16", CountUint16(), func(w *Writer) bool { return w.WriteUint16(1, 7) }},
		{"uint32", CountUint32(), func(w *Writer) bool { return w.WriteUint32(1, 7) }},
		{"int64", CountInt64(), func(w *Writer) bool { return w.WriteInt64(1, -7) }},
		{"string", CountString("hello"), func(w *Writer) bool { return w.WriteString(1, "hello") }},
		{"bytes", CountBytes([]byte{1, 2}), func(w *Writer) bool { return w.WriteBytes(1, []byte{1, 2}) }},
		{"strings", CountStrings([]string{"a", "bc"}), func(w *Writer) bool { return w.WriteStrings(1, []string{"a", "bc"}) }},
		{"map", CountBytesMap(map[string][]byte{"a": {1}}), func(w *Writer) bool {
			return w.WriteBytesMap(1, map[string][]byte{"a": {1}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(tt.count)
			require.True(t, tt.write(w))
			assert.Equal(t, tt.count, w.Cursor())
		})
	}
}
