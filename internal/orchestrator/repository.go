package orchestrator

import (
	"errors"
	"sort"
	"sync"
	"time"

	"tile-orchestrator/internal/tiles"
)

// Repository defines the concurrency-safe contract for run state.
type Repository interface {
	// CreateRun stores a new, empty run built from tmpl and returns its id.
	// tmpl.ID is ignored; a fresh id is assigned.
	CreateRun(tmpl RunState) RunID

	// RecordSegment stores rec as the current record for the segment
	// starting at rec.Interval.Start, replacing any earlier record.
	RecordSegment(id RunID, rec SegmentRecord) error

	// RecordSkipped remembers segments that start past the last frame.
	RecordSkipped(id RunID, skipped []tiles.Interval) error

	// GetRunSnapshot returns a copy of the run with segments ordered by
	// first frame. ok is false if the run does not exist.
	GetRunSnapshot(id RunID) (snap RunSnapshot, ok bool)

	// GetSegment returns the record of the segment starting at firstFrame.
	GetSegment(id RunID, firstFrame int) (SegmentRecord, error)

	// FinishRun marks the run finished; further records are rejected.
	// Finishing an already finished run is a no-op. Implementations may
	// forget old finished runs once a retention limit is exceeded.
	FinishRun(id RunID) error

	// ActiveRunCount returns the number of runs that are not finished.
	ActiveRunCount() int
}

var (
	// ErrRunNotFound is returned for an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinished is returned when recording into a finished run.
	ErrRunFinished = errors.New("run has finished")

	// ErrSegmentNotFound is returned when a run has no segment starting at
	// the requested frame, or that segment has no plan.
	ErrSegmentNotFound = errors.New("segment not found")
)

// DefaultRunRetention is how many finished runs NewInMemoryRepository keeps.
const DefaultRunRetention = 256

// InMemoryRepository is a concurrency-safe implementation of Repository
// over a Store; by default that is an InMemoryStore. Once more than
// retention runs have finished, the runs that finished first are deleted
// from the store. Unfinished runs are never deleted.
type InMemoryRepository struct {
	mu        sync.RWMutex
	store     Store
	retention int
	finished  []RunID // finish order, oldest first
}

// NewInMemoryRepository constructs a new repository with a default in-memory
// store and DefaultRunRetention.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore(), DefaultRunRetention)
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given
// Store and keeps at most retention finished runs. retention <= 0 keeps all.
func NewInMemoryRepositoryWithStore(store Store, retention int) *InMemoryRepository {
	return &InMemoryRepository{store: store, retention: retention}
}

// CreateRun implements Repository.CreateRun.
func (r *InMemoryRepository) CreateRun(tmpl RunState) RunID {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := tmpl
	run.ID = NewRunID()
	run.Segments = make(map[int]*SegmentRecord)
	run.Skipped = nil
	run.Finished = false
	run.CreatedAt = time.Now().UTC()
	r.store.SetRun(&run)
	return run.ID
}

// RecordSegment implements Repository.RecordSegment.
func (r *InMemoryRepository) RecordSegment(id RunID, rec SegmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.openRunLocked(id)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()
	run.Segments[rec.Interval.Start] = &rec
	return nil
}

// RecordSkipped implements Repository.RecordSkipped.
func (r *InMemoryRepository) RecordSkipped(id RunID, skipped []tiles.Interval) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.openRunLocked(id)
	if err != nil {
		return err
	}
	run.Skipped = append([]tiles.Interval(nil), skipped...)
	return nil
}

// GetRunSnapshot implements Repository.GetRunSnapshot.
func (r *InMemoryRepository) GetRunSnapshot(id RunID) (RunSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.store.GetRun(id)
	if !ok {
		return RunSnapshot{}, false
	}

	starts := make([]int, 0, len(run.Segments))
	for s := range run.Segments {
		starts = append(starts, s)
	}
	sort.Ints(starts)

	segments := make([]SegmentRecord, 0, len(starts))
	for _, s := range starts {
		segments = append(segments, run.Segments[s].clone())
	}

	var uniform *UniformTiling
	if run.Uniform != nil {
		u := *run.Uniform
		uniform = &u
	}

	return RunSnapshot{
		ID:        run.ID,
		Input:     run.Input,
		Video:     run.Video,
		Strategy:  run.Strategy,
		Uniform:   uniform,
		Segments:  segments,
		Skipped:   append([]tiles.Interval(nil), run.Skipped...),
		Finished:  run.Finished,
		CreatedAt: run.CreatedAt,
	}, true
}

// GetSegment implements Repository.GetSegment.
func (r *InMemoryRepository) GetSegment(id RunID, firstFrame int) (SegmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.store.GetRun(id)
	if !ok {
		return SegmentRecord{}, ErrRunNotFound
	}
	rec, ok := run.Segments[firstFrame]
	if !ok {
		return SegmentRecord{}, ErrSegmentNotFound
	}
	return rec.clone(), nil
}

// FinishRun implements Repository.FinishRun.
func (r *InMemoryRepository) FinishRun(id RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.store.GetRun(id)
	if !ok {
		return ErrRunNotFound
	}
	if run.Finished {
		return nil
	}
	run.Finished = true
	r.finished = append(r.finished, id)
	r.evictFinishedLocked()
	return nil
}

// ActiveRunCount implements Repository.ActiveRunCount.
func (r *InMemoryRepository) ActiveRunCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListRunIDs() {
		if run, ok := r.store.GetRun(id); ok && !run.Finished {
			n++
		}
	}
	return n
}

// evictFinishedLocked deletes the earliest finished runs until at most
// r.retention remain. Caller must hold r.mu in write mode.
func (r *InMemoryRepository) evictFinishedLocked() {
	if r.retention <= 0 {
		return
	}
	for len(r.finished) > r.retention {
		r.store.DeleteRun(r.finished[0])
		r.finished = r.finished[1:]
	}
}

// openRunLocked returns a run that accepts new records.
// Caller must hold r.mu in write mode.
func (r *InMemoryRepository) openRunLocked(id RunID) (*RunState, error) {
	run, ok := r.store.GetRun(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.Finished {
		return nil, ErrRunFinished
	}
	return run, nil
}
