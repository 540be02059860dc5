package clip

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/tlv"
)

func mustText(t *testing.T, s string) *Record {
	t.Helper()
	r, err := NewPlainText(s)
	require.NoError(t, err)
	return r
}

func mixedData(t *testing.T) *Data {
	t.Helper()
	html, err := NewHTML("<b>hi</b>")
	require.NoError(t, err)
	structured, err := NewBuilder(MimeStructured).
		SetStructured(&Structured{Type: "open", Params: map[string][]byte{"target": []byte("app")}}).
		SetCustomData(map[string][]byte{"x-note": []byte("side")}).
		Build()
	require.NoError(t, err)

	d := NewData(
		html,
		mustText(t, "hello"),
		NewURI("file:///tmp/a.txt"),
		NewPixelMap(&PixelMap{Width: 2, Height: 1, Stride: 8, Format: "rgba8888", Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8}}),
		structured,
		NewKV("application/x-thing", []byte{0xde, 0xad}),
	)
	d.Props = Properties{
		BundleName: "com.example.editor",
		TokenID:    42,
		Timestamp:  1_700_000_000_000,
		Tag:        "note",
		Scope:      ScopeCrossDevice,
		DeviceID:   "dev-a",
		Additions:  map[string][]byte{"k": []byte("v")},
		mimeTypes:  d.Props.mimeTypes,
	}
	d.SetDragged(true)
	return d
}

func TestData_RoundTrip(t *testing.T) {
	d := mixedData(t)

	b, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, d.Count(), len(b))

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.True(t, got.Valid())
	assert.Equal(t, d.Props, got.Props)
	assert.Equal(t, d.MimeTypes(), got.MimeTypes())
	assert.True(t, got.IsDragged())
	assert.False(t, got.IsLocalPaste())
	require.Equal(t, d.RecordCount(), got.RecordCount())
	for i := range d.Records() {
		assert.Equal(t, d.RecordAt(i), got.RecordAt(i), "record %d", i)
	}
}

func TestData_EmptyRoundTrip(t *testing.T) {
	d := NewData()
	b, err := Marshal(d)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Zero(t, got.RecordCount())
	assert.Nil(t, got.MimeTypes())
	_, ok := got.PrimaryMimeType()
	assert.False(t, ok)
}

func TestRecord_ConvertedURIRoundTrip(t *testing.T) {
	r := NewURI("file:///tmp/x")
	r.convertedURI = "file:///mnt/share/100/tmp/x"
	d := NewData(r)

	b, err := Marshal(d)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, "file:///mnt/share/100/tmp/x", got.RecordAt(0).ConvertedURI())
}

func TestData_AddRecordCap(t *testing.T) {
	d := NewData()
	for i := 0; i < MaxRecords+1; i++ {
		d.AddRecord(mustText(t, strings.Repeat("x", i%7)))
	}
	assert.Equal(t, MaxRecords, d.RecordCount())

	d.AddRecord(nil)
	assert.Equal(t, MaxRecords, d.RecordCount())
}

func TestData_AddRecordFront(t *testing.T) {
	d := NewData(mustText(t, "old"))
	d.AddRecord(NewURI("file:///new"))

	mt, ok := d.PrimaryMimeType()
	require.True(t, ok)
	assert.Equal(t, MimeURI, mt)
	assert.Equal(t, []string{MimeURI, MimePlain}, d.MimeTypes())
	assert.True(t, d.HasMimeType(MimePlain))
	assert.False(t, d.HasMimeType(MimeHTML))
}

func TestData_RemoveReplaceBounds(t *testing.T) {
	d := NewData(mustText(t, "a"), mustText(t, "b"))

	assert.False(t, d.RemoveRecordAt(-1))
	assert.False(t, d.RemoveRecordAt(2))
	assert.False(t, d.ReplaceRecordAt(2, mustText(t, "c")))
	assert.False(t, d.ReplaceRecordAt(0, nil))
	assert.Equal(t, 2, d.RecordCount())

	require.True(t, d.ReplaceRecordAt(1, NewURI("u")))
	assert.Equal(t, []string{MimePlain, MimeURI}, d.MimeTypes())

	require.True(t, d.RemoveRecordAt(0))
	require.True(t, d.RemoveRecordAt(0))
	assert.Zero(t, d.RecordCount())
	assert.Nil(t, d.RecordAt(0))
}

func TestData_PrimaryAccessors(t *testing.T) {
	d := NewData(NewURI("u1"), mustText(t, "t1"), mustText(t, "t2"))

	text, ok := d.PrimaryText()
	require.True(t, ok)
	assert.Equal(t, "t1", text)

	uri, ok := d.PrimaryURI()
	require.True(t, ok)
	assert.Equal(t, "u1", uri)

	_, ok = d.PrimaryHTML()
	assert.False(t, ok)
	_, ok = d.PrimaryPixelMap()
	assert.False(t, ok)
}

func TestRecord_ConvertToText(t *testing.T) {
	both, err := NewBuilder(MimeHTML).SetHTML("<i>h</i>").SetPlainText("p").SetURI("u").Build()
	require.NoError(t, err)
	plainURI, err := NewBuilder(MimePlain).SetPlainText("p").SetURI("u").Build()
	require.NoError(t, err)

	tests := []struct {
		name string
		rec  *Record
		want string
	}{
		{"html wins", both, "<i>h</i>"},
		{"plain before uri", plainURI, "p"},
		{"uri only", NewURI("u"), "u"},
		{"nothing", NewKV("x/y", []byte("z")), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.ConvertToText())
		})
	}
}

func TestRecord_Payload(t *testing.T) {
	pm := &PixelMap{Width: 1, Height: 1, Pixels: []byte{9}}
	tests := []struct {
		rec  *Record
		want Payload
	}{
		{mustText(t, "p"), PlainText("p")},
		{NewURI("u"), URI("u")},
		{NewPixelMap(pm), pm},
		{NewKV("x/y", []byte("z")), CustomData{MimeType: "x/y", Value: []byte("z")}},
		{&Record{mimeType: MimeHTML}, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rec.Payload(), tt.rec.MimeType())
	}
}

func TestRecord_PixelMapIsCopied(t *testing.T) {
	pm := &PixelMap{Pixels: []byte{1, 2, 3}}
	r := NewPixelMap(pm)
	pm.Pixels[0] = 99
	assert.Equal(t, byte(1), r.PixelMap().Pixels[0])
}

func TestRecord_OversizedText(t *testing.T) {
	big := strings.Repeat("a", MaxTextSize)

	_, err := NewPlainText(big)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = NewHTML(big)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = NewBuilder(MimePlain).SetPlainText(big).Build()
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = NewPlainText(big[:MaxTextSize-1])
	assert.NoError(t, err)
}

func TestNewRecord(t *testing.T) {
	r, err := NewRecord(MimePlain, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, PlainText("hi"), r.Payload())

	r, err = NewRecord("application/json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), r.CustomData()["application/json"])

	_, err = NewRecord(MimePixelMap, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestUnmarshal_CorruptRecordDropped(t *testing.T) {
	d := NewData(mustText(t, "keep"))
	b, err := Marshal(d)
	require.NoError(t, err)

	// Unknown top-level tag is skipped.
	w := tlv.NewWriter(tlv.CountString("zzz"))
	require.True(t, w.WriteString(0x7fff, "zzz"))
	got, err := Unmarshal(append(b, w.Bytes()...))
	require.NoError(t, err)
	text, ok := got.PrimaryText()
	require.True(t, ok)
	assert.Equal(t, "keep", text)

	// A length that overruns the buffer is fatal.
	_, err = Unmarshal(b[:len(b)-1])
	assert.ErrorIs(t, err, tlv.ErrDecode)
}

func TestData_Clone(t *testing.T) {
	d := mixedData(t)
	c := d.Clone()
	c.Props.Additions["k"][0] = 'X'
	c.RemoveRecordAt(0)

	assert.Equal(t, []byte("v"), d.Props.Additions["k"])
	assert.Equal(t, 6, d.RecordCount())
	assert.Equal(t, 5, c.RecordCount())
}

func TestData_CloneIsDeep(t *testing.T) {
	d := mixedData(t)
	c := d.Clone()

	cpm, ok := c.PrimaryPixelMap()
	require.True(t, ok)
	cpm.Pixels[0] = 0xff
	cpm.Width = 999
	c.RecordAt(4).Structured().Params["target"][0] = 'X'
	c.RecordAt(4).CustomData()["x-note"][0] = 'X'
	c.RecordAt(5).CustomData()["application/x-thing"][0] = 0xee

	pm, ok := d.PrimaryPixelMap()
	require.True(t, ok)
	assert.Equal(t, byte(1), pm.Pixels[0])
	assert.Equal(t, int32(2), pm.Width)
	assert.Equal(t, []byte("app"), d.RecordAt(4).Structured().Params["target"])
	assert.Equal(t, []byte("side"), d.RecordAt(4).CustomData()["x-note"])
	assert.Equal(t, []byte{0xde, 0xad}, d.RecordAt(5).CustomData()["application/x-thing"])
}

// Every record kind survives a round trip at the record cap.
func TestData_RoundTripAtCap(t *testing.T) {
	kinds := mixedData(t).Records()
	d := NewData()
	for i := 0; i < MaxRecords; i++ {
		d.AddRecord(kinds[i%len(kinds)])
	}
	require.Equal(t, MaxRecords, d.RecordCount())

	b, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, d.Count(), len(b))

	got, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, MaxRecords, got.RecordCount())
	assert.Equal(t, d.MimeTypes(), got.MimeTypes())
	for i := range d.Records() {
		assert.Equal(t, d.RecordAt(i), got.RecordAt(i), "record %d", i)
	}
}

func TestScope_Parse(t *testing.T) {
	for _, s := range []Scope{ScopeInApp, ScopeLocalDevice, ScopeCrossDevice} {
		got, err := ParseScope(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeLocalDevice, got)
	_, err = ParseScope("planet")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestURIHandles_Exchange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	d := NewData(mustText(t, "x"), NewURI("file://"+path), NewURI("https://example.com"))
	hs, err := d.WriteURIHandles(FileHandler{})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, uint32(1), hs[0].Index)

	b, err := MarshalTransfer(d, hs)
	require.NoError(t, err)

	got, gotHandles, err := UnmarshalTransfer(b)
	require.NoError(t, err)
	assert.Equal(t, hs, gotHandles)
	assert.Equal(t, 3, got.RecordCount())

	require.NoError(t, got.ReadURIHandles(gotHandles, FileHandler{User: 100}))
	assert.Equal(t, SharePrefix+"100"+filepath.ToSlash(path), got.RecordAt(1).ConvertedURI())
	assert.Empty(t, got.RecordAt(2).ConvertedURI())

	got.ReplaceShareURI(7)
	assert.Equal(t, SharePrefix+"7"+filepath.ToSlash(path), got.RecordAt(1).ConvertedURI())
}

func TestURIHandles_LocalPasteSkipped(t *testing.T) {
	d := NewData(NewURI("file:///does/not/exist"))
	d.SetLocalPaste(true)

	hs, err := d.WriteURIHandles(FileHandler{})
	require.NoError(t, err)
	assert.Empty(t, hs)
	assert.NoError(t, d.ReadURIHandles([]Handle{{Index: 9, Path: "/x"}}, FileHandler{}))
}

func TestURIHandles_Errors(t *testing.T) {
	d := NewData(NewURI("file:///does/not/exist"))
	_, err := d.WriteURIHandles(FileHandler{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = FileHandler{}.Export("file://" + t.TempDir())
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "directories are not exported")

	err = NewData(mustText(t, "x")).ReadURIHandles([]Handle{{Index: 0, Path: "/x"}}, FileHandler{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestReplaceShareUser(t *testing.T) {
	tests := []struct{ in, want string }{
		{"file:///mnt/share/100/docs/a", "file:///mnt/share/5/docs/a"},
		{"file:///mnt/share/abc/docs/a", "file:///mnt/share/abc/docs/a"},
		{"file:///tmp/a", "file:///tmp/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, replaceShareUser(tt.in, 5), tt.in)
	}
}

func TestMarshalTransfer_NoHandles(t *testing.T) {
	d := NewData(mustText(t, "x"))
	b, err := MarshalTransfer(d, nil)
	require.NoError(t, err)
	plain, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, plain, b)

	_, hs, err := UnmarshalTransfer(b)
	require.NoError(t, err)
	assert.Nil(t, hs)
}
