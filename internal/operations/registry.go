package operations

import (
	"fmt"
	"sync"
)

// Registry holds the pipeline stages in execution order with their enabled
// flags
type Registry struct {
	mu       sync.RWMutex
	stages   map[string]Stage
	order    []string
	disabled map[string]bool
}

// NewRegistry creates an empty stage registry
func NewRegistry() *Registry {
	return &Registry{
		stages:   make(map[string]Stage),
		order:    make([]string, 0),
		disabled: make(map[string]bool),
	}
}

// Register appends a stage to the registry
func (r *Registry) Register(stage Stage) error {
	if stage == nil {
		return fmt.Errorf("cannot register nil stage")
	}

	id := stage.ID()
	if id == "" {
		return fmt.Errorf("stage ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stages[id]; exists {
		return fmt.Errorf("stage with ID %s already registered", id)
	}

	r.stages[id] = stage
	r.order = append(r.order, id)
	return nil
}

// SetEnabled switches a stage on or off. Required stages cannot be disabled.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stage, exists := r.stages[id]
	if !exists {
		return NewNotFoundError(id)
	}
	if !enabled && stage.Required() {
		return NewValidationError(id, "required stage cannot be disabled")
	}
	if enabled {
		delete(r.disabled, id)
	} else {
		r.disabled[id] = true
	}
	return nil
}

// IsEnabled reports whether a registered stage will run
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.stages[id]
	return exists && !r.disabled[id]
}

// Get retrieves a stage by ID
func (r *Registry) Get(id string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, exists := r.stages[id]
	if !exists {
		return nil, NewNotFoundError(id)
	}
	return stage, nil
}

// Has checks if a stage is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.stages[id]
	return exists
}

// List returns all registered stages in registration order
func (r *Registry) List() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]Stage, 0, len(r.order))
	for _, id := range r.order {
		stages = append(stages, r.stages[id])
	}
	return stages
}

// ListScope returns the stages of one scope in registration order
func (r *Registry) ListScope(scope Scope) []Stage {
	var stages []Stage
	for _, s := range r.List() {
		if s.Scope() == scope {
			stages = append(stages, s)
		}
	}
	return stages
}

// ListIDs returns all registered stage IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered stages
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}
