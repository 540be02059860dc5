//go:build darwin

package sysclip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger clipd_change_count() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

const darwinPollInterval = 100 * time.Millisecond

type darwinBackend struct {
	lastChange C.NSInteger
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the NSPasteboard backend. The pasteboard change counter is
// polled; reading it is cheap and avoids diffing contents.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("system clipboard unavailable, running headless", "err", err)
		return Headless()
	}
	b := &darwinBackend{
		lastChange: C.clipd_change_count(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			if cc := C.clipd_change_count(); cc != b.lastChange {
				b.lastChange = cc
				notify(b.watchCh)
			}
		}
	}
}

func (b *darwinBackend) Read() ([]Item, error)    { return readItems(), nil }
func (b *darwinBackend) Write(items []Item) error { return writeItems(items) }
func (b *darwinBackend) Watch() <-chan struct{}   { return b.watchCh }
func (b *darwinBackend) Close()                   { close(b.done) }
