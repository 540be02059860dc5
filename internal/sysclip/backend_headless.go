package sysclip

// headlessBackend stands in when no display server is reachable. It never
// signals a change and discards writes.
type headlessBackend struct {
	watchCh chan struct{}
}

// Headless returns the no-op backend. Tests use it directly.
func Headless() Backend {
	return &headlessBackend{watchCh: make(chan struct{})}
}

func (b *headlessBackend) Name() string           { return "headless (no-op)" }
func (b *headlessBackend) Read() ([]Item, error)  { return nil, nil }
func (b *headlessBackend) Write(_ []Item) error   { return nil }
func (b *headlessBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *headlessBackend) Close()                 {}
