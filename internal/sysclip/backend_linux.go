//go:build linux

package sysclip

import (
	"bytes"
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

const linuxPollInterval = 250 * time.Millisecond

type linuxBackend struct {
	watchCh  chan struct{}
	done     chan struct{}
	lastText []byte
	lastImg  []byte
}

// New returns the polling X11/Wayland backend, or the headless backend when
// no display is available.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("system clipboard unavailable, running headless", "err", err)
		return Headless()
	}
	b := &linuxBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *linuxBackend) Name() string { return "Linux clipboard (poll)" }

func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if bytes.Equal(text, b.lastText) && bytes.Equal(img, b.lastImg) {
				continue
			}
			b.lastText, b.lastImg = text, img
			notify(b.watchCh)
		}
	}
}

func (b *linuxBackend) Read() ([]Item, error)    { return readItems(), nil }
func (b *linuxBackend) Write(items []Item) error { return writeItems(items) }
func (b *linuxBackend) Watch() <-chan struct{}   { return b.watchCh }
func (b *linuxBackend) Close()                   { close(b.done) }
