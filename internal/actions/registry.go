package actions

import (
	"sort"
	"sync"

	"github.com/rendis/opguard/pkg/schema"
)

// Registry is the host-side action table that guard adapters register into.
// Names are unique: a second action under a taken name is refused, never
// replaced. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds action under action.Name(). A taken name yields CONFLICT and
// leaves the existing action in place.
func (r *Registry) Register(action Action) error {
	if action == nil {
		return schema.NewError(schema.ErrCodeValidation, "cannot register a nil action")
	}
	name := action.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "cannot register an action without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, taken := r.actions[name]; taken {
		return schema.NewErrorf(schema.ErrCodeConflict, "action name %q is taken", name).
			WithAction(name).
			WithDetails(map[string]any{"existing": existing.Schema().Description})
	}
	r.actions[name] = action
	return nil
}

// Get returns the action bound to name, or ACTION_UNAVAILABLE when no guard
// registered it.
func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		err := schema.NewErrorf(schema.ErrCodeActionUnavailable, "no action named %q is registered", name).WithAction(name)
		if g, isGuard := GuardNameOf(name); isGuard {
			err = err.WithDetails(map[string]any{"guard": g})
		}
		return nil, err
	}
	return a, nil
}

// List describes every bound action in name order.
func (r *Registry) List() []ActionInfo {
	r.mu.RLock()
	infos := make([]ActionInfo, 0, len(r.actions))
	for name, a := range r.actions {
		infos = append(infos, ActionInfo{Name: name, Description: a.Schema().Description})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has reports whether name is bound.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Count returns the number of bound actions; two per registered guard.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

var _ ActionRegistry = (*Registry)(nil)
