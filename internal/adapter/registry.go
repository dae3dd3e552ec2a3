package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("adapter not found")
	ErrDuplicateAdapter = errors.New("adapter already registered")
	ErrInvalidAdapter   = errors.New("invalid adapter registration")
	ErrSealed           = errors.New("registry is sealed")
)

// ConstructionError reports that a factory could not produce a live adapter.
// It points at a defect in the adapter implementation, not at the caller.
type ConstructionError struct {
	ID  string
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct adapter %q: %v", e.ID, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Registry stores adapter factories by application identifier.
// It is populated during start-up and read-only afterwards.
type Registry struct {
	items  map[string]Descriptor
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Descriptor)}
}

// Register binds id to f. Identifiers are case-sensitive and must be unique.
func (r *Registry) Register(id string, f Factory) error {
	if r.sealed {
		return ErrSealed
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidAdapter)
	}
	if f == nil {
		return fmt.Errorf("%w: factory for %q is nil", ErrInvalidAdapter, id)
	}
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAdapter, id)
	}
	r.items[id] = Descriptor{ID: id, Factory: f}
	return nil
}

// Seal prevents further registrations.
func (r *Registry) Seal() {
	r.sealed = true
}

// Resolve returns the factory registered under exactly id.
func (r *Registry) Resolve(id string) (Factory, error) {
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d.Factory, nil
}

// Instantiate builds a fresh adapter bound to host. Factory errors, nil
// instances and panics are all reported as *ConstructionError.
func (r *Registry) Instantiate(id string, f Factory, host Host) (a Adapter, err error) {
	if f == nil {
		return nil, &ConstructionError{ID: id, Err: errors.New("factory is nil")}
	}
	defer func() {
		if p := recover(); p != nil {
			a = nil
			err = &ConstructionError{ID: id, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	a, err = f(host)
	if err != nil {
		return nil, &ConstructionError{ID: id, Err: err}
	}
	if a == nil {
		return nil, &ConstructionError{ID: id, Err: errors.New("factory returned nil adapter")}
	}
	return a, nil
}

// IDs returns registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.items)
}
