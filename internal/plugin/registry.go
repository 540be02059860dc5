package plugin

import (
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a plugin from the opaque parameter of its load-list entry.
type Factory func(param string) (Plugin, error)

// Component is one entry of the plugin load list.
type Component struct {
	Name    string `mapstructure:"name"`
	Factory string `mapstructure:"factory"`
	Param   string `mapstructure:"param"`
}

// Registry maps component names to factories. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	components map[string]Component
}

// NewRegistry returns a registry holding the built-in factories: memory,
// dir, bolt and s3.
func NewRegistry() *Registry {
	r := &Registry{
		factories:  make(map[string]Factory),
		components: make(map[string]Component),
	}
	boards := &boardSet{m: make(map[string]*Memory)}
	r.Register("memory", boards.factory)
	r.Register("dir", func(param string) (Plugin, error) { return NewDir(param) })
	r.Register("bolt", func(param string) (Plugin, error) { return NewBolt(param) })
	r.Register("s3", func(param string) (Plugin, error) { return NewS3FromLocation(param) })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Factories returns the registered factory names, sorted.
func (r *Registry) Factories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load records the components of a load list. Entries naming an unknown
// factory are skipped with a warning.
func (r *Registry) Load(components []Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range components {
		if c.Name == "" {
			slog.Warn("plugin: load list entry without a name, skipping", "factory", c.Factory)
			continue
		}
		if _, ok := r.factories[c.Factory]; !ok {
			slog.Warn("plugin: unknown factory, skipping", "component", c.Name, "factory", c.Factory)
			continue
		}
		r.components[c.Name] = c
		slog.Debug("plugin: component loaded", "component", c.Name, "factory", c.Factory)
	}
}

// Create builds the plugin registered as name. A load-list component wins
// over a bare factory of the same name, which is called with an empty
// parameter. Create never returns nil: anything unresolvable yields Noop.
func (r *Registry) Create(name string) Plugin {
	r.mu.RLock()
	param := ""
	factory := name
	if c, ok := r.components[name]; ok {
		factory, param = c.Factory, c.Param
	}
	f, ok := r.factories[factory]
	r.mu.RUnlock()

	if !ok {
		if name != "" {
			slog.Warn("plugin: no factory registered, using no-op", "name", name)
		}
		return Noop{}
	}
	p, err := f(param)
	if err != nil || p == nil {
		slog.Warn("plugin: factory failed, using no-op", "name", name, "factory", factory, "err", err)
		return Noop{}
	}
	slog.Info("plugin: created", "name", name, "factory", factory)
	return p
}

// Destroy releases a plugin returned by Create.
func (r *Registry) Destroy(name string, p Plugin) {
	if p == nil || IsNoop(p) {
		return
	}
	if err := p.Close(); err != nil {
		slog.Warn("plugin: close failed", "name", name, "err", err)
	}
}

// boardSet shares one Memory board per parameter so that every component
// naming the same board sees the same events.
type boardSet struct {
	mu sync.Mutex
	m  map[string]*Memory
}

func (s *boardSet) factory(param string) (Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[param]
	if !ok {
		b = NewMemory()
		s.m[param] = b
	}
	return b, nil
}
