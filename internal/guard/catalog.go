package guard

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rendis/opguard/pkg/schema"
)

// Provider builds guards of one kind from a Definition.
type Provider interface {
	Kind() string
	New(def Definition) (Guard, error)
}

// Catalog maps provider kinds to providers. A guard can only be loaded when
// the provider for its kind has been registered, much like a database/sql
// driver has to be linked in before sql.Open can use it.
type Catalog struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{providers: make(map[string]Provider)}
}

// Register adds a provider. Returns error on a nil provider, an empty kind or a duplicate kind.
func (c *Catalog) Register(p Provider) error {
	if p == nil {
		return schema.NewError(schema.ErrCodeValidation, "guard provider is nil")
	}
	kind := p.Kind()
	if kind == "" {
		return schema.NewError(schema.ErrCodeValidation, "guard provider kind is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "guard provider %q already registered", kind)
	}
	c.providers[kind] = p
	return nil
}

// Kinds returns the registered provider kinds, sorted.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kinds := make([]string, 0, len(c.providers))
	for k := range c.providers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Load builds the guard described by def.
//
// A definition whose kind has no registered provider fails with
// GUARD_UNAVAILABLE and an installation hint. Provider construction errors
// are returned as VALIDATION_ERROR with the provider error as cause.
func (c *Catalog) Load(def Definition) (Guard, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	p, ok := c.providers[def.Kind]
	c.mu.RUnlock()

	if !ok {
		return nil, unavailable(def)
	}

	g, err := p.New(def)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "guard %q (%s): %s", def.Name, def.Kind, err).
			WithCause(err)
	}
	return g, nil
}

// Loaded pairs a definition with the guard built from it.
type Loaded struct {
	Definition Definition
	Guard      Guard
}

// LoadAll builds every definition or none: the first failure is returned and
// no guard is handed back, so callers can load before registering anything.
func (c *Catalog) LoadAll(defs []Definition) ([]Loaded, error) {
	seen := make(map[string]struct{}, len(defs))
	out := make([]Loaded, 0, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.Name]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "guard %q defined more than once", def.Name)
		}
		seen[def.Name] = struct{}{}

		g, err := c.Load(def)
		if err != nil {
			return nil, err
		}
		out = append(out, Loaded{Definition: def, Guard: g})
	}
	return out, nil
}

func unavailable(def Definition) *schema.OpcodeError {
	hint := fmt.Sprintf("guard provider %q is not installed; register it with guards.RegisterBuiltins(catalog) "+
		"or catalog.Register(provider) before loading guard %q", def.Kind, def.Name)
	return schema.NewError(schema.ErrCodeGuardUnavailable, hint).
		WithDetails(map[string]any{"kind": def.Kind, "guard": def.Name})
}
