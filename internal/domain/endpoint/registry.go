package endpoint

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/GriffinCanCode/webdriverify/internal/shared/id"
)

// Factory produces a fresh, zero-identity endpoint
type Factory func() Endpoint

// Descriptor is the registry entry for one command. It is immutable once
// registered.
type Descriptor struct {
	name      string
	factory   Factory
	prototype Endpoint
	events    *Notifier
}

// Name returns the canonical command name
func (d *Descriptor) Name() string {
	return d.name
}

// Instantiate creates a request-scoped instance with a fresh command ID and
// emits a created event for it
func (d *Descriptor) Instantiate() Endpoint {
	e := d.factory()
	b := e.base()
	b.id = id.NewCommandID().String()
	b.name = d.name

	if d.events != nil {
		d.events.Emit(e)
	}
	return e
}

// Binder returns the route binder when the endpoint owns HTTP routes
func (d *Descriptor) Binder() (RouteBinder, bool) {
	rb, ok := d.prototype.(RouteBinder)
	return rb, ok
}

// Capabilities lists what the endpoint implements
func (d *Descriptor) Capabilities() []string {
	caps := []string{"dto"}
	if _, ok := d.prototype.(RouteBinder); ok {
		caps = append(caps, "routes")
	}
	if _, ok := d.prototype.(Transformer); ok {
		caps = append(caps, "transform")
	}
	return caps
}

// Registry maps command names to descriptors
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor
	sealed  bool
	events  *Notifier
}

// NewRegistry creates an empty registry publishing created events on events
func NewRegistry(events *Notifier) *Registry {
	if events == nil {
		events = NewNotifier(nil)
	}
	return &Registry{
		entries: make(map[string]*Descriptor),
		events:  events,
	}
}

// Events returns the created-event topic
func (r *Registry) Events() *Notifier {
	return r.events
}

// CommandName derives the canonical command name from an endpoint's type
func CommandName(e Endpoint) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Register adds an endpoint type. The factory is called once to derive the
// name and bind routes; that prototype never counts as an instance.
func (r *Registry) Register(factory Factory) (*Descriptor, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrInvalidEndpoint)
	}
	proto := factory()
	if proto == nil {
		return nil, fmt.Errorf("%w: factory returned nil", ErrInvalidEndpoint)
	}
	if v := reflect.ValueOf(proto); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, fmt.Errorf("%w: factory returned nil %T", ErrInvalidEndpoint, proto)
	}
	if proto.base() == nil {
		return nil, fmt.Errorf("%w: %T embeds a nil Base", ErrInvalidEndpoint, proto)
	}

	name := CommandName(proto)
	if name == "" {
		return nil, fmt.Errorf("%w: anonymous type %T", ErrInvalidEndpoint, proto)
	}
	proto.base().name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, name)
	}
	if _, exists := r.entries[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRegistration, name)
	}

	d := &Descriptor{
		name:      name,
		factory:   factory,
		prototype: proto,
		events:    r.events,
	}
	r.entries[name] = d
	return d, nil
}

// MustRegister is Register for startup code, where a conflict is fatal
func (r *Registry) MustRegister(factory Factory) *Descriptor {
	d, err := r.Register(factory)
	if err != nil {
		panic(err)
	}
	return d
}

// Seal ends the registration phase; the registry is read-only afterwards
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve looks up a command by name
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return d, nil
}

// Descriptors returns every entry sorted by name
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	commands := make(map[string][]string)
	for _, d := range r.Descriptors() {
		commands[d.name] = d.Capabilities()
	}

	r.mu.RLock()
	sealed := r.sealed
	r.mu.RUnlock()

	return map[string]interface{}{
		"total_commands": len(commands),
		"commands":       commands,
		"sealed":         sealed,
	}
}
