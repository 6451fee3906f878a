package storage

import (
	"context"
	"sync"
)

// MemoryJobStore is the in-process fallback when no Redis address is
// configured. Jobs vanish on restart.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*ResolveJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*ResolveJob)}
}

func (s *MemoryJobStore) SaveJob(ctx context.Context, job *ResolveJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *MemoryJobStore) UpdateJob(ctx context.Context, job *ResolveJob) error {
	return s.SaveJob(ctx, job)
}

func (s *MemoryJobStore) GetJob(ctx context.Context, id string) (*ResolveJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryJobStore) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) Close() error { return nil }
