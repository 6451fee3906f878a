package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryJobStoreRoundTrip(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	job := &ResolveJob{
		ID:        "job-1",
		Status:    JobPending,
		SeedURL:   "https://www.pixiv.net/users/9948",
		CreatedAt: time.Now(),
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got == nil || got.SeedURL != job.SeedURL {
		t.Fatalf("GetJob = %+v, want seed %q", got, job.SeedURL)
	}

	// The store hands out copies, not the live record.
	got.Status = JobFailed
	again, _ := s.GetJob(ctx, "job-1")
	if again.Status != JobPending {
		t.Errorf("stored job mutated through a returned copy: %q", again.Status)
	}

	job.Status = JobCompleted
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	updated, _ := s.GetJob(ctx, "job-1")
	if updated.Status != JobCompleted {
		t.Errorf("Status = %q after update, want %q", updated.Status, JobCompleted)
	}
}

func TestMemoryJobStoreMissing(t *testing.T) {
	s := NewMemoryJobStore()
	got, err := s.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetJob(missing) = %+v, want nil", got)
	}
}

func TestMemoryJobStoreDelete(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, &ResolveJob{ID: "gone"})
	if err := s.DeleteJob(ctx, "gone"); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if got, _ := s.GetJob(ctx, "gone"); got != nil {
		t.Errorf("job survived deletion: %+v", got)
	}
}
