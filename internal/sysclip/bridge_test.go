package sysclip

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/store"
)

type fakeBackend struct {
	mu      sync.Mutex
	current []Item
	written [][]Item
	watch   chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{watch: make(chan struct{})}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Read() ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeBackend) Write(items []Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = items
	f.written = append(f.written, items)
	return nil
}

func (f *fakeBackend) Watch() <-chan struct{} { return f.watch }
func (f *fakeBackend) Close()                 {}

// userCopy simulates a copy made by another application on the desktop.
func (f *fakeBackend) userCopy(items ...Item) {
	f.mu.Lock()
	f.current = items
	f.mu.Unlock()
	f.watch <- struct{}{}
}

func (f *fakeBackend) writes() [][]Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Item(nil), f.written...)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(store.Config{}, &identity.StaticPolicy{Device: "dev", DefaultAccount: "acct"}, nil, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func text(t *testing.T, s string, scope clip.Scope) *clip.Data {
	t.Helper()
	r, err := clip.NewPlainText(s)
	require.NoError(t, err)
	d := clip.NewData(r)
	d.Props.Scope = scope
	return d
}

func TestBridge_StoreToOS(t *testing.T) {
	st := newStore(t)
	fb := newFakeBackend()
	b := NewBridge(st, fb, 100, clip.ScopeLocalDevice)
	defer st.Subscribe(100, b)()

	editor := identity.Caller{User: 100, TokenID: 1, Bundle: "editor"}
	ctx := context.Background()

	require.NoError(t, st.SetClip(ctx, editor, text(t, "hello", clip.ScopeLocalDevice)))
	require.NoError(t, st.SetClip(ctx, editor, text(t, "hello", clip.ScopeCrossDevice)))
	require.NoError(t, st.SetClip(ctx, editor, text(t, "secret", clip.ScopeInApp)))
	require.NoError(t, st.SetClip(ctx, identity.Caller{User: 200, Bundle: "editor"}, text(t, "other", clip.ScopeLocalDevice)))

	assert.Equal(t, [][]Item{{{Mime: MimeText, Data: []byte("hello")}}}, fb.writes())
}

func TestBridge_OSToStore(t *testing.T) {
	st := newStore(t)
	fb := newFakeBackend()
	b := NewBridge(st, fb, 100, clip.ScopeCrossDevice)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	fb.userCopy(Item{Mime: MimeText, Data: []byte("from desktop")}, Item{Mime: MimePNG, Data: []byte{0x89, 'P', 'N', 'G'}})

	require.Eventually(t, func() bool {
		_, ok := st.Snapshot(100)
		return ok
	}, time.Second, 5*time.Millisecond)

	d, _ := st.Snapshot(100)
	got, ok := d.PrimaryText()
	require.True(t, ok)
	assert.Equal(t, "from desktop", got)
	assert.Equal(t, BridgeBundle, d.Props.BundleName)
	assert.Equal(t, clip.ScopeCrossDevice, d.Props.Scope)
	assert.Equal(t, []string{MimeText, MimePNG}, d.MimeTypes())

	// The bridge's own copy is not echoed back.
	assert.Empty(t, fb.writes())
}

func TestItemsFromData(t *testing.T) {
	html, err := clip.NewHTML("<b>x</b>")
	require.NoError(t, err)
	d := clip.NewData(clip.NewKV(MimePNG, []byte("img")), html)

	assert.Equal(t, []Item{
		{Mime: MimeText, Data: []byte("<b>x</b>")},
		{Mime: MimePNG, Data: []byte("img")},
	}, ItemsFromData(d))

	assert.Empty(t, ItemsFromData(clip.NewData()))
}
