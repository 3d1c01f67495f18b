package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/backgrid/internal/core"
)

// MemoryStore is a bounded in-memory Repository. When full, the oldest
// inserted job is evicted; jobs older than ttl are dropped.
type MemoryStore struct {
	jobs    map[string]*Job
	order   []string // Track insertion order for eviction
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a store. Zero maxSize or ttl disables that limit.
func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) expired(j *Job) bool {
	return s.ttl > 0 && s.now().Sub(j.CreatedAt) > s.ttl
}

// Save inserts or replaces a job.
func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("job id is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()

	if _, exists := s.jobs[job.ID]; exists {
		s.jobs[job.ID] = clone(job)
		return nil
	}

	// Evict oldest if at capacity
	if s.maxSize > 0 && len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		oldest := s.order[0]
		delete(s.jobs, oldest)
		s.order = s.order[1:]
	}

	s.jobs[job.ID] = clone(job)
	s.order = append(s.order, job.ID)
	return nil
}

// purgeLocked drops expired jobs. Caller holds the write lock.
func (s *MemoryStore) purgeLocked() {
	if s.ttl <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if s.expired(s.jobs[id]) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Get retrieves a job by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return nil, core.Errorf(core.ErrJobNotFound, "job not found: %s", id)
	}

	// Return copy to prevent race conditions
	return clone(job), nil
}

// List returns live jobs, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.jobs))
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if s.expired(job) {
			continue
		}
		result = append(result, *clone(job))
	}

	// insertion order approximates creation order; sort to be exact
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of live jobs.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if !s.expired(job) {
			n++
		}
	}
	return n, nil
}
