package sysclip

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/store"
)

// BridgeBundle is the bundle name the bridge copies under.
const BridgeBundle = "sysclip"

// Clipboard is the part of the store the bridge needs.
type Clipboard interface {
	SetClip(ctx context.Context, c identity.Caller, d *clip.Data) error
	Subscribe(user int32, o store.Observer) (cancel func())
}

// Bridge mirrors one user's clip between the store and the OS clipboard.
// In-app clips never reach the OS clipboard.
type Bridge struct {
	cb      Clipboard
	backend Backend
	caller  identity.Caller
	scope   clip.Scope

	mu        sync.Mutex
	lastItems []Item
}

// NewBridge returns a bridge for user. OS copies are stored with scope.
func NewBridge(cb Clipboard, backend Backend, user int32, scope clip.Scope) *Bridge {
	return &Bridge{
		cb:      cb,
		backend: backend,
		caller:  identity.Caller{User: user, Bundle: BridgeBundle},
		scope:   scope,
	}
}

// Run subscribes to the store and forwards OS clipboard changes until ctx is
// done.
func (b *Bridge) Run(ctx context.Context) {
	cancel := b.cb.Subscribe(b.caller.User, store.ObserverFunc(b.OnClipEvent))
	defer cancel()

	slog.Info("system clipboard bridge started", "backend", b.backend.Name(), "user", b.caller.User)

	watch := b.backend.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-watch:
			b.pull(ctx)
		}
	}
}

// OnClipEvent writes changed and adopted clips to the OS clipboard.
func (b *Bridge) OnClipEvent(n store.Notification) {
	if n.Kind != store.KindChanged && n.Kind != store.KindRemote {
		return
	}
	if n.Kind == store.KindChanged && n.Caller.Bundle == BridgeBundle {
		return
	}
	if n.Data == nil || n.Data.Props.Scope == clip.ScopeInApp {
		return
	}
	items := ItemsFromData(n.Data)
	if len(items) == 0 {
		return
	}

	b.mu.Lock()
	if reflect.DeepEqual(items, b.lastItems) {
		b.mu.Unlock()
		return
	}
	b.lastItems = items
	b.mu.Unlock()

	if err := b.backend.Write(items); err != nil {
		slog.Error("system clipboard write failed", "err", err)
		return
	}
	slog.Debug("system clipboard updated", "user", n.User, "kind", n.Kind, "items", len(items))
}

func (b *Bridge) pull(ctx context.Context) {
	items, err := b.backend.Read()
	if err != nil {
		slog.Error("system clipboard read failed", "err", err)
		return
	}
	if len(items) == 0 {
		return
	}

	b.mu.Lock()
	if reflect.DeepEqual(items, b.lastItems) {
		b.mu.Unlock()
		return
	}
	b.lastItems = items
	b.mu.Unlock()

	d, err := DataFromItems(items)
	if err != nil {
		slog.Warn("system clipboard content rejected", "err", err)
		return
	}
	d.Props.Scope = b.scope
	if err := b.cb.SetClip(ctx, b.caller, d); err != nil {
		slog.Warn("system clipboard copy failed", "user", b.caller.User, "err", err)
		return
	}
	slog.Debug("system clipboard changed, stored", "items", len(items))
}

// ItemsFromData picks what the OS clipboard can hold: the primary text
// (converted from html or uri when needed) and any PNG record.
func ItemsFromData(d *clip.Data) []Item {
	var items []Item
	for _, r := range d.Records() {
		if text := r.ConvertToText(); text != "" {
			items = append(items, Item{Mime: MimeText, Data: []byte(text)})
			break
		}
	}
	for _, r := range d.Records() {
		if r.MimeType() != MimePNG {
			continue
		}
		if v, ok := r.CustomData()[MimePNG]; ok {
			items = append(items, Item{Mime: MimePNG, Data: v})
			break
		}
	}
	return items
}

// DataFromItems builds a Data holding one record per item, in order.
func DataFromItems(items []Item) (*clip.Data, error) {
	records := make([]*clip.Record, 0, len(items))
	for _, it := range items {
		r, err := clip.NewRecord(it.Mime, it.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return clip.NewData(records...), nil
}
