package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/jobs"
)

// Store is an in-memory implementation of JobStore and ResultStore.
// It is safe for concurrent use. Data is lost on service restart - for
// persistence, use a database-backed store.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*jobs.ProcessStatementJob
	results map[string]*domain.StatementResult
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		jobs:    make(map[string]*jobs.ProcessStatementJob),
		results: make(map[string]*domain.StatementResult),
	}
}

// SaveJob implements the JobStore interface.
// It saves or updates a job in memory.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ProcessStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
// It retrieves a job by ID from memory.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	// Return a copy to avoid external modifications
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
// It retrieves jobs with optional filtering from memory.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ProcessStatementJob

	for _, job := range s.jobs {
		// Apply filters
		if filter.Filename != "" && job.Filename != filter.Filename {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		// Create a copy to avoid external modifications
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	// Newest first, so pagination over the map is stable
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].JobID < result[j].JobID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	// Apply limit and offset
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ProcessStatementJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
// It updates the status of a job in memory.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

// SaveResult implements the ResultStore interface.
// Results are treated as immutable once saved, so the pointer is kept as-is.
func (s *Store) SaveResult(ctx context.Context, res *domain.StatementResult) error {
	if res.ID == "" {
		return fmt.Errorf("result ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[res.ID] = res

	return nil
}

// GetResult implements the ResultStore interface.
func (s *Store) GetResult(ctx context.Context, id string) (*domain.StatementResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, exists := s.results[id]
	if !exists {
		return nil, fmt.Errorf("result not found: %s", id)
	}

	return res, nil
}

// Ensure Store implements the store interfaces.
var _ jobs.JobStore = (*Store)(nil)
var _ jobs.ResultStore = (*Store)(nil)
