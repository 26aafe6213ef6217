package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// descriptorEntry records a discovered plugin's path/factory without
// executing any plugin code.
type descriptorEntry struct {
	name    string
	factory Factory
}

// Registry discovers plugin modules, lazy-loads them, and caches loaded
// instances for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*descriptorEntry
	order    []string
	instances map[string]Plugin
	loading  map[string]*sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]*descriptorEntry),
		instances: make(map[string]Plugin),
		loading:   make(map[string]*sync.Once),
	}
}

// Discover registers a plugin's name and construction factory without
// running the factory. Registering any factory under a name already
// taken fails with ErrDuplicateName.
func (r *Registry) Discover(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.entries[name] = &descriptorEntry{name: name, factory: factory}
	r.order = append(r.order, name)
	r.loading[name] = &sync.Once{}
	return nil
}

// ListNames returns the declared names of all discovered plugins, in
// discovery order. Performs no network I/O.
func (r *Registry) ListNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns a cached plugin instance, constructing it on first access.
// Concurrent first-access for the same name is serialized via a per-name
// sync.Once so the plugin is never constructed twice.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	once := r.loading[name]
	r.mu.Unlock()

	var constructErr error
	once.Do(func() {
		instance, err := entry.factory()
		if err != nil {
			constructErr = fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
			return
		}
		r.mu.Lock()
		r.instances[name] = instance
		r.mu.Unlock()
	})

	r.mu.Lock()
	instance, ok := r.instances[name]
	r.mu.Unlock()
	if !ok {
		if constructErr != nil {
			return nil, constructErr
		}
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, name)
	}
	return instance, nil
}

// Names returns discovered plugin names sorted alphabetically, convenient
// for listing endpoints.
func (r *Registry) Names() []string {
	names := r.ListNames()
	sort.Strings(names)
	return names
}
