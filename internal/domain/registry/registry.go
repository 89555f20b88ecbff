// Package registry holds the light namespace and the cached Hue state of every light.
package registry

import (
	"domoticz-hue-emulator/internal/domain/model"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	mu    sync.Mutex
	light model.Light
	state model.LightState
	// rev counts every write. A refresh started at revision r only lands while
	// the entry is still at r.
	rev uint64
}

// Registry maps light ids to lights and their cached state. The set of ids is
// fixed at construction; each entry is guarded by its own lock so lights never
// contend with each other.
type Registry struct {
	order     []string
	entries   map[string]*entry
	byBackend map[model.Target]string
	now       func() time.Time
}

// New builds the registry. Every light starts off and unreachable until the
// first successful backend interaction.
func New(lights []model.Light) *Registry {
	r := &Registry{
		order:     make([]string, 0, len(lights)),
		entries:   make(map[string]*entry, len(lights)),
		byBackend: make(map[model.Target]string, len(lights)),
		now:       time.Now,
	}
	for _, l := range lights {
		state := model.LightState{}
		if l.Capability.Colored() {
			state.ColorMode = model.ColorModeHS
		}
		r.order = append(r.order, l.ID)
		r.entries[l.ID] = &entry{light: l, state: state}
		r.byBackend[l.Target()] = l.ID
	}
	return r
}

// Len returns the number of lights.
func (r *Registry) Len() int {
	return len(r.order)
}

// List returns a snapshot of every light in id order.
func (r *Registry) List() []model.LightView {
	views := make([]model.LightView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, r.entries[id].view())
	}
	return views
}

// Get returns one light, or ErrLightNotFound.
func (r *Registry) Get(id string) (model.LightView, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.LightView{}, err
	}
	return e.view(), nil
}

// Lookup resolves a backend entity to its light id.
func (r *Registry) Lookup(target model.Target) (string, bool) {
	id, ok := r.byBackend[target]
	return id, ok
}

// ApplyOptimistic merges an accepted change into the cache and marks the light
// reachable. A zero patch only records that the backend answered.
func (r *Registry) ApplyOptimistic(id string, patch model.StatePatch) (model.LightState, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.LightState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	state := patch.Apply(e.state)
	state.Reachable = true
	e.set(state)
	return e.state, nil
}

// ApplyLocal merges a change that needed no backend call. Reachability is
// left as it was.
func (r *Registry) ApplyLocal(id string, patch model.StatePatch) (model.LightState, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.LightState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(patch.Apply(e.state))
	return e.state, nil
}

// Refresh overwrites the cache with authoritative backend state.
func (r *Registry) Refresh(id string, state model.LightState) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(r.stamp(state))
	return nil
}

// Revision returns the current write counter of a light.
func (r *Registry) Revision(id string) (uint64, error) {
	e, err := r.entry(id)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rev, nil
}

// Snapshot returns a light together with the revision of that exact state.
func (r *Registry) Snapshot(id string) (model.LightView, uint64, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.LightView{}, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.LightView{Light: e.light, State: e.state}, e.rev, nil
}

// RefreshIfUnchanged applies a refresh read at revision rev, unless the light
// was written since. It reports whether the state was applied.
func (r *Registry) RefreshIfUnchanged(id string, state model.LightState, rev uint64) (bool, error) {
	e, err := r.entry(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rev != rev {
		return false, nil
	}
	e.set(r.stamp(state))
	return true, nil
}

// MarkUnreachable flags the light unreachable and keeps its last known values.
func (r *Registry) MarkUnreachable(id string) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.state
	state.Reachable = false
	e.set(state)
	return nil
}

func (r *Registry) entry(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("light %s: %w", id, model.ErrLightNotFound)
	}
	return e, nil
}

func (r *Registry) stamp(state model.LightState) model.LightState {
	state.LastRefreshed = r.now()
	return state
}

// set must be called with e.mu held.
func (e *entry) set(state model.LightState) {
	e.state = state.Project(e.light.Capability)
	e.rev++
}

func (e *entry) view() model.LightView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.LightView{Light: e.light, State: e.state}
}
