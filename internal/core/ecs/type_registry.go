package ecs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MaxTypeDepth bounds parent chains; anything deeper is treated as a cycle.
const MaxTypeDepth = 64

var (
	ErrUnknownParent = errors.New("parent type not registered")
	ErrTypeCycle     = errors.New("type parent chain does not terminate")
	ErrInvalidType   = errors.New("invalid type")
)

// NameAlreadyRegisteredError is returned when a type name is taken.
type NameAlreadyRegisteredError struct {
	Name string
}

func (e *NameAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("type name %q already registered", e.Name)
}

// TypeRegistry maps names to Types. Safe for concurrent use.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]*Type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byName: make(map[string]*Type, 16)}
}

// Register adds t. The first registration of a name stays authoritative.
// The parent, if any, must already be registered here.
func (r *TypeRegistry) Register(t *Type) error {
	if t == nil || t.name == "" || t.category == CategoryUnknown {
		return ErrInvalidType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[t.name]; ok {
		return &NameAlreadyRegisteredError{Name: t.name}
	}
	depth := 0
	for p := t.parent; p != nil; p = p.parent {
		if p == t || depth >= MaxTypeDepth {
			return fmt.Errorf("%w: %s", ErrTypeCycle, t.name)
		}
		if r.byName[p.name] != p {
			return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, p.name, t.name)
		}
		depth++
	}
	r.byName[t.name] = t
	return nil
}

func (r *TypeRegistry) TypeByName(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Types returns all registered types sorted by name.
func (r *TypeRegistry) Types() []*Type {
	r.mu.RLock()
	out := make([]*Type, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
