package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arbiterhq/arbiter/internal/model"
)

// Artifact kinds persisted per task. The three pieces of a rubric are stored
// as separate named objects so each survives independently; a rubric only
// counts as cached when all three are present and intact.
const (
	kindDimensions = "dimensions"
	kindCriteria   = "criteria"
	kindWeights    = "weights"
)

// RubricStore persists rubrics keyed by task identifier. The first writer
// for a task wins; later writers for the same task are no-ops, keeping the
// rubric stable across a run.
type RubricStore struct {
	cache Cache
	mu    sync.Mutex
}

// NewRubricStore wraps a cache as a rubric store.
func NewRubricStore(c Cache) *RubricStore {
	return &RubricStore{cache: c}
}

// Get returns the cached rubric for a task, or absent. Any missing or
// corrupt artifact makes the whole rubric a miss.
func (s *RubricStore) Get(taskID string) (*model.Rubric, bool) {
	dimsRaw, ok := s.cache.Get(Key(kindDimensions, taskID))
	if !ok {
		return nil, false
	}
	critRaw, ok := s.cache.Get(Key(kindCriteria, taskID))
	if !ok {
		return nil, false
	}
	weightsRaw, ok := s.cache.Get(Key(kindWeights, taskID))
	if !ok {
		return nil, false
	}

	rubric := &model.Rubric{TaskID: taskID}
	if err := json.Unmarshal(dimsRaw, &rubric.Dimensions); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(critRaw, &rubric.Criteria); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(weightsRaw, &rubric.Weights); err != nil {
		return nil, false
	}
	return rubric, true
}

// Put stores a rubric unless one is already present for the task.
func (s *RubricStore) Put(taskID string, rubric *model.Rubric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Get(taskID); exists {
		return nil
	}

	dims, err := json.Marshal(rubric.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	crit, err := json.Marshal(rubric.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	weights, err := json.Marshal(rubric.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	if err := s.cache.Set(Key(kindDimensions, taskID), dims, 0); err != nil {
		return fmt.Errorf("store dimensions: %w", err)
	}
	if err := s.cache.Set(Key(kindCriteria, taskID), crit, 0); err != nil {
		return fmt.Errorf("store criteria: %w", err)
	}
	if err := s.cache.Set(Key(kindWeights, taskID), weights, 0); err != nil {
		return fmt.Errorf("store weights: %w", err)
	}
	return nil
}

// Clear drops every cached rubric.
func (s *RubricStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Clear()
}
