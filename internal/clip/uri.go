package clip

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/tlv"
)

// SharePrefix is the root under which imported files are exposed. The path
// segment that follows it is the numeric id of the owning user.
const SharePrefix = "file:///mnt/share/"

// Handle is a transferable reference to the file behind a uri record. Index
// is the record the handle belongs to so the receiver can match it back.
type Handle struct {
	Index uint32
	Path  string
}

// URIHandler exchanges file-backed uris across the transport boundary.
type URIHandler interface {
	// Export resolves a local uri into a transferable handle.
	Export(uri string) (Handle, error)
	// Import resolves a transferred handle into the uri the receiver uses.
	Import(h Handle) (string, error)
}

// isFileURI reports whether uri names a local file.
func isFileURI(uri string) bool {
	return strings.HasPrefix(uri, "file://")
}

// WriteURIHandles exports a handle for every file-backed uri record, in index
// order. Local pastes skip the exchange: the uri string is trusted as is.
func (d *Data) WriteURIHandles(h URIHandler) ([]Handle, error) {
	if d.isLocalPaste {
		return nil, nil
	}
	var out []Handle
	for i, r := range d.records {
		if r.uri == nil || !isFileURI(*r.uri) {
			continue
		}
		hd, err := h.Export(*r.uri)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		hd.Index = uint32(i)
		r.handle = &hd
		out = append(out, hd)
	}
	return out, nil
}

// ReadURIHandles imports handles received with d and stores the resulting
// uri on the record each one names.
func (d *Data) ReadURIHandles(hs []Handle, h URIHandler) error {
	if d.isLocalPaste {
		return nil
	}
	for _, hd := range hs {
		r := d.RecordAt(int(hd.Index))
		if r == nil || r.uri == nil {
			return fmt.Errorf("%w: handle for record %d has no uri record", errs.ErrInvalidArgument, hd.Index)
		}
		uri, err := h.Import(hd)
		if err != nil {
			return fmt.Errorf("record %d: %w", hd.Index, err)
		}
		r.convertedURI = uri
		r.handle = nil
	}
	return nil
}

// ReplaceShareURI rewrites the user segment of every converted share uri so
// the file resolves inside user's sandbox.
func (d *Data) ReplaceShareURI(user int32) {
	for _, r := range d.records {
		if r.convertedURI == "" {
			continue
		}
		r.convertedURI = replaceShareUser(r.convertedURI, user)
	}
}

func replaceShareUser(uri string, user int32) string {
	rest, ok := strings.CutPrefix(uri, SharePrefix)
	if !ok {
		return uri
	}
	seg, tail, _ := strings.Cut(rest, "/")
	if _, err := strconv.ParseUint(seg, 10, 32); err != nil {
		return uri
	}
	return SharePrefix + strconv.Itoa(int(user)) + "/" + tail
}

// FileHandler exports existing regular files and imports them under the
// share root of User.
type FileHandler struct {
	User int32
}

func (f FileHandler) Export(uri string) (Handle, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return Handle{}, fmt.Errorf("%w: not a file uri: %q", errs.ErrInvalidArgument, uri)
	}
	path, err := filepath.Abs(u.Path)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	fh, err := os.Open(path)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	defer fh.Close()
	st, err := fh.Stat()
	if err != nil {
		return Handle{}, err
	}
	if !st.Mode().IsRegular() {
		return Handle{}, fmt.Errorf("%w: %s is not a regular file", errs.ErrInvalidArgument, path)
	}
	return Handle{Path: path}, nil
}

func (f FileHandler) Import(h Handle) (string, error) {
	if h.Path == "" || !filepath.IsAbs(h.Path) {
		return "", fmt.Errorf("%w: handle path %q", errs.ErrInvalidArgument, h.Path)
	}
	return SharePrefix + strconv.Itoa(int(f.User)) + filepath.ToSlash(h.Path), nil
}

// handleList is the trailing record of a transfer payload.
type handleList []Handle

const (
	tagHandleIndex tlv.Tag = iota + 0x0500
	tagHandlePath
)

func (h *Handle) Count() int {
	return tlv.CountUint32() + tlv.CountString(h.Path)
}

func (h *Handle) MarshalTLV(w *tlv.Writer) bool {
	return w.WriteUint32(tagHandleIndex, h.Index) && w.WriteString(tagHandlePath, h.Path)
}

func (h *Handle) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		hd, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch hd.Tag {
		case tagHandleIndex:
			h.Index, _ = r.ReadUint32(hd)
		case tagHandlePath:
			h.Path, _ = r.ReadString(hd)
		default:
			r.Skip(hd)
		}
	}
	return true
}

func (l handleList) ptrs() []*Handle {
	out := make([]*Handle, len(l))
	for i := range l {
		out[i] = &l[i]
	}
	return out
}

// MarshalTransfer encodes d followed, when handles is not empty, by one
// handle-list record. Decoders that only know Data skip that record.
func MarshalTransfer(d *Data, handles []Handle) ([]byte, error) {
	b, err := Marshal(d)
	if err != nil || len(handles) == 0 {
		return b, err
	}
	ptrs := handleList(handles).ptrs()
	w := tlv.NewWriter(tlv.CountObjects(ptrs))
	if !tlv.WriteObjects(w, tagHandles, ptrs) {
		return nil, tlv.ErrEncode
	}
	return append(b, w.Bytes()...), nil
}

// UnmarshalTransfer is the inverse of MarshalTransfer.
func UnmarshalTransfer(b []byte) (*Data, []Handle, error) {
	d, err := Unmarshal(b)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	var handles []Handle
	r := tlv.NewReader(b)
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			break
		}
		if h.Tag != tagHandles {
			r.Skip(h)
			continue
		}
		items, _ := tlv.ReadObjects(r, h, func() *Handle { return &Handle{} })
		for _, it := range items {
			handles = append(handles, *it)
		}
	}
	return d, handles, nil
}
