package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/tagdb"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ResolveJob is one asynchronous artist resolution: walk the related graph
// from a seed URL and map it to a tag.
type ResolveJob struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	SeedURL     string           `json:"seed_url"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	WalkedURLs  []string         `json:"walked_urls,omitempty"`
	Tag         *tagdb.TagRecord `json:"tag,omitempty"`
	TagCreated  bool             `json:"tag_created"`
	Error       string           `json:"error,omitempty"`
}

// JobStore persists resolve jobs in Redis so job status survives server
// restarts and can be shared across replicas.
type JobStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewJobStore connects to Redis and verifies the connection.
func NewJobStore(addr, password string, db int, ttl time.Duration, log logger.Logger) (*JobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info("Job store connected to redis at %s", addr)
	return &JobStore{client: client, ttl: ttl, logger: log}, nil
}

func jobKey(id string) string { return "musubi:job:" + id }

// SaveJob stores a new job.
func (s *JobStore) SaveJob(ctx context.Context, job *ResolveJob) error {
	return s.put(ctx, job)
}

// UpdateJob overwrites an existing job.
func (s *JobStore) UpdateJob(ctx context.Context, job *ResolveJob) error {
	return s.put(ctx, job)
}

func (s *JobStore) put(ctx context.Context, job *ResolveJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the job with the given id, nil when absent.
func (s *JobStore) GetJob(ctx context.Context, id string) (*ResolveJob, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job ResolveJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("corrupt job %s: %w", id, err)
	}
	return &job, nil
}

// DeleteJob removes a job.
func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, jobKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *JobStore) Close() error {
	return s.client.Close()
}
