package server

import (
	"sync"

	"listing-publisher/pipeline"
)

// Registry holds in-flight runs by id. Each run has its own lock so
// operations on one run are serialised without blocking others.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*run
}

type run struct {
	mu    sync.Mutex
	state pipeline.State
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*run)}
}

// Put stores or replaces a run's state.
func (r *Registry) Put(s pipeline.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[s.RunID]; ok {
		existing.mu.Lock()
		existing.state = s
		existing.mu.Unlock()
		return
	}
	r.runs[s.RunID] = &run{state: s}
}

// Get returns a snapshot of the run's state.
func (r *Registry) Get(id string) (pipeline.State, bool) {
	r.mu.RLock()
	entry, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return pipeline.State{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state, true
}

// Update runs fn with the run locked and stores the state it returns.
func (r *Registry) Update(id string, fn func(pipeline.State) (pipeline.State, error)) (pipeline.State, bool, error) {
	r.mu.RLock()
	entry, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return pipeline.State{}, false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	next, err := fn(entry.state)
	if err != nil {
		return entry.state, true, err
	}
	entry.state = next
	return next, true, nil
}

// Delete removes a run.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// IDs lists every tracked run id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

// Len is the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
