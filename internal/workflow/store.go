package workflow

import (
	"sort"
	"sync"
	"time"

	"resumeforge/internal/errors"
	"resumeforge/internal/types"
)

// Store holds workflow records in memory. Readers always get clones;
// mutation goes through Update so the per-record invariants (terminal
// records are immutable, UpdatedAt moves forward) hold in one place.
type Store struct {
	mu      sync.RWMutex
	records map[string]*types.WorkflowRecord
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{records: make(map[string]*types.WorkflowRecord)}
}

// Create registers a fresh record in the received state.
func (s *Store) Create(requestID string, now time.Time) *types.WorkflowRecord {
	rec := &types.WorkflowRecord{
		RequestID:     requestID,
		Status:        types.StateReceived,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
		ArtifactPaths: make(map[string]string),
		RetryCounts:   make(map[string]int),
	}

	s.mu.Lock()
	s.records[requestID] = rec
	s.mu.Unlock()

	return rec.Clone()
}

// Get returns a clone of the record.
func (s *Store) Get(requestID string) (*types.WorkflowRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewPipelineError(errors.ErrCodeWorkflowNotFound,
			"no workflow with request ID "+requestID, nil)
	}
	return rec.Clone(), nil
}

// Update applies fn to the record under the store lock. Terminal
// records reject further mutation.
func (s *Store) Update(requestID string, fn func(*types.WorkflowRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[requestID]
	if !ok {
		return errors.NewPipelineError(errors.ErrCodeWorkflowNotFound,
			"no workflow with request ID "+requestID, nil)
	}
	if rec.Status.Terminal() {
		return errors.NewPipelineError(errors.ErrCodeInvalidRequest,
			"workflow "+requestID+" already finished", nil)
	}
	fn(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel marks the record cancelled. The orchestrator observes the
// flag between stages; a terminal workflow cannot be cancelled.
func (s *Store) Cancel(requestID string) error {
	return s.Update(requestID, func(rec *types.WorkflowRecord) {
		rec.Cancelled = true
	})
}

// Cancelled reports the record's cancellation flag.
func (s *Store) Cancelled(requestID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[requestID]
	return ok && rec.Cancelled
}

// Delete removes the record entirely.
func (s *Store) Delete(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[requestID]; !ok {
		return errors.NewPipelineError(errors.ErrCodeWorkflowNotFound,
			"no workflow with request ID "+requestID, nil)
	}
	delete(s.records, requestID)
	return nil
}

// deleteArtifactPaths clears recorded artifact locations after the
// working directory has been removed. Runs even on terminal records,
// which is why it bypasses Update.
func (s *Store) deleteArtifactPaths(requestID string) {
	s.mu.Lock()
	if rec, ok := s.records[requestID]; ok {
		rec.ArtifactPaths = map[string]string{}
		rec.DocumentPath = ""
	}
	s.mu.Unlock()
}

// List returns clones of all records, newest first.
func (s *Store) List() []*types.WorkflowRecord {
	s.mu.RLock()
	out := make([]*types.WorkflowRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats aggregates record counts by state.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]int)
	for _, rec := range s.records {
		stats[string(rec.Status)]++
	}
	stats["total"] = len(s.records)
	return stats
}
