package orchestrator

import "slices"

// Store is the persistence abstraction for run state. The Repository does
// all locking; implementations need not be safe for concurrent use.
type Store interface {
	GetRun(id RunID) (*RunState, bool)
	SetRun(r *RunState)
	// DeleteRun forgets a run. Deleting an unknown id is a no-op.
	DeleteRun(id RunID)
	// ListRunIDs returns every stored run id, oldest first.
	ListRunIDs() []RunID
}

// InMemoryStore keeps runs in a map and remembers the order they were
// first stored in.
type InMemoryStore struct {
	runs  map[RunID]*RunState
	order []RunID
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs: make(map[RunID]*RunState),
	}
}

// GetRun implements Store.GetRun.
func (s *InMemoryStore) GetRun(id RunID) (*RunState, bool) {
	r, ok := s.runs[id]
	return r, ok
}

// SetRun implements Store.SetRun. Replacing a run keeps its position.
func (s *InMemoryStore) SetRun(r *RunState) {
	if _, ok := s.runs[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.runs[r.ID] = r
}

// DeleteRun implements Store.DeleteRun.
func (s *InMemoryStore) DeleteRun(id RunID) {
	if _, ok := s.runs[id]; !ok {
		return
	}
	delete(s.runs, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// ListRunIDs implements Store.ListRunIDs.
func (s *InMemoryStore) ListRunIDs() []RunID {
	return slices.Clone(s.order)
}
