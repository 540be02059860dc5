//go:build windows

package sysclip

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
//
// static LRESULT CALLBACK clipd_wnd_proc(HWND hwnd, UINT msg, WPARAM wp, LPARAM lp) {
//     if (msg == WM_CLIPBOARDUPDATE) {
//         PostMessage(hwnd, WM_USER + 1, 0, 0);
//         return 0;
//     }
//     return DefWindowProc(hwnd, msg, wp, lp);
// }
//
// static HWND clipd_listener() {
//     WNDCLASS wc = {0};
//     wc.lpfnWndProc   = clipd_wnd_proc;
//     wc.hInstance     = GetModuleHandle(NULL);
//     wc.lpszClassName = "ClipdListener";
//     RegisterClass(&wc);
//     HWND hwnd = CreateWindowEx(0, "ClipdListener", NULL, 0,
//         0, 0, 0, 0, HWND_MESSAGE, NULL, GetModuleHandle(NULL), NULL);
//     AddClipboardFormatListener(hwnd);
//     return hwnd;
// }
//
// static int clipd_pump(HWND hwnd) {
//     MSG msg;
//     int changed = 0;
//     while (PeekMessage(&msg, hwnd, 0, 0, PM_REMOVE)) {
//         if (msg.message == WM_USER + 1) { changed = 1; }
//         TranslateMessage(&msg);
//         DispatchMessage(&msg);
//     }
//     return changed;
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

type windowsBackend struct {
	hwnd    C.HWND
	watchCh chan struct{}
	done    chan struct{}
}

// New returns the Windows backend, driven by WM_CLIPBOARDUPDATE.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("system clipboard unavailable, running headless", "err", err)
		return Headless()
	}
	b := &windowsBackend{
		hwnd:    C.clipd_listener(),
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *windowsBackend) Name() string { return "Windows clipboard" }

func (b *windowsBackend) pump() {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			if C.clipd_pump(b.hwnd) != 0 {
				notify(b.watchCh)
			}
		}
	}
}

func (b *windowsBackend) Read() ([]Item, error)    { return readItems(), nil }
func (b *windowsBackend) Write(items []Item) error { return writeItems(items) }
func (b *windowsBackend) Watch() <-chan struct{}   { return b.watchCh }
func (b *windowsBackend) Close()                   { close(b.done) }
