package plugin

import "sync"

// Registration maps a plugin id to a factory for new instances.
type Registration struct {
	ID  string
	New func() Plugin
}

var registry = struct {
	sync.Mutex
	order       []Registration
	byID        map[string]int
	descriptors map[string]*Descriptor
}{
	byID:        make(map[string]int),
	descriptors: make(map[string]*Descriptor),
}

// Register adds a plugin to the process-wide registry. Registration happens
// before the first graph build; on a duplicate id the last registration
// wins.
func Register(reg Registration) {
	registry.Lock()
	defer registry.Unlock()
	if i, ok := registry.byID[reg.ID]; ok {
		registry.order[i] = reg
		delete(registry.descriptors, reg.ID)
		return
	}
	registry.byID[reg.ID] = len(registry.order)
	registry.order = append(registry.order, reg)
}

// All returns the registered plugins in insertion order.
func All() []Registration {
	registry.Lock()
	defer registry.Unlock()
	out := make([]Registration, len(registry.order))
	copy(out, registry.order)
	return out
}

// Create returns a new instance of the plugin with the given id.
func Create(id string) (Plugin, bool) {
	registry.Lock()
	i, ok := registry.byID[id]
	if !ok {
		registry.Unlock()
		return nil, false
	}
	reg := registry.order[i]
	registry.Unlock()
	return reg.New(), true
}

// FindDescriptor returns the descriptor for the given plugin id, built
// lazily on first call and cached for the lifetime of the program.
func FindDescriptor(id string) *Descriptor {
	registry.Lock()
	defer registry.Unlock()
	if d, ok := registry.descriptors[id]; ok {
		return d
	}
	i, ok := registry.byID[id]
	if !ok {
		return nil
	}
	d := registry.order[i].New().Descriptor()
	registry.descriptors[id] = &d
	return &d
}
