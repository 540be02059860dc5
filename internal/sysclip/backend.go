// Package sysclip mirrors a user's current clip to and from the operating
// system clipboard. Build constraints select the backend:
//
//	backend_darwin.go   macOS via golang.design/x/clipboard + cgo changeCount
//	backend_windows.go  Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	backend_linux.go    Linux via golang.design/x/clipboard, polling only
//	backend_other.go    headless stub
package sysclip

// MIME types the OS clipboard understands.
const (
	MimeText = "text/plain"
	MimePNG  = "image/png"
)

// Item is one typed entry of the OS clipboard.
type Item struct {
	Mime string
	Data []byte
}

// Backend is implemented by every platform clipboard.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents. It returns nil, nil when
	// the clipboard is empty or holds only unsupported types.
	Read() ([]Item, error)

	// Write replaces the clipboard contents.
	Write(items []Item) error

	// Watch returns a channel that is signalled whenever the clipboard
	// changes. The channel is never closed; call Read after each signal.
	Watch() <-chan struct{}

	Close()
}
