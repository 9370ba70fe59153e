package inmemory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gsoares/extratorio/internal/jobs"
	"github.com/gsoares/extratorio/internal/jobs/inmemory"
)

// waitForStatus polls the store until the job reaches the wanted status.
// Retried jobs pass through intermediate statuses, so polling beats a single
// sleep here.
func waitForStatus(t *testing.T, store *inmemory.Store, jobID string, want jobs.JobStatus) *jobs.ProcessStatementJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	job, err := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s (last: %+v, err: %v)", jobID, want, job, err)
	return nil
}

func TestQueue_PublishAssignsDefaults(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	job := &jobs.ProcessStatementJob{Filename: "extrato.pdf"}
	if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishProcessStatement failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("Expected a generated job ID")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if job.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", job.MaxRetries)
	}

	if _, err := store.GetJob(context.Background(), job.JobID); err != nil {
		t.Errorf("job not saved to store: %v", err)
	}
}

func TestQueue_ProcessesJobsToCompletion(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(8, 2, store)
	defer queue.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)
	handler := func(ctx context.Context, j jobs.Job) error {
		mu.Lock()
		seen[j.GetID()] = true
		mu.Unlock()
		return nil
	}

	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ids := []string{"j1", "j2", "j3"}
	for _, id := range ids {
		job := &jobs.ProcessStatementJob{JobID: id, Filename: id + ".pdf"}
		if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
			t.Fatalf("publish %s failed: %v", id, err)
		}
	}

	for _, id := range ids {
		got := waitForStatus(t, store, id, jobs.JobStatusCompleted)
		if got.StartedAt == nil || got.CompletedAt == nil {
			t.Errorf("job %s missing timestamps: %+v", id, got)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("handler saw %d jobs, want 3", len(seen))
	}
}

// The consumer persists the job again after the handler returns, so fields
// the handler sets on the concrete job survive into the store.
func TestQueue_HandlerUpdatesSurviveCompletion(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	handler := func(ctx context.Context, j jobs.Job) error {
		job, ok := j.(*jobs.ProcessStatementJob)
		if !ok {
			return errors.New("unexpected job type")
		}
		job.ResultID = "res-42"
		return nil
	}

	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{JobID: "job-1", Filename: "extrato.pdf"}
	if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishProcessStatement failed: %v", err)
	}

	got := waitForStatus(t, store, "job-1", jobs.JobStatusCompleted)
	if got.ResultID != "res-42" {
		t.Errorf("ResultID = %q, want res-42", got.ResultID)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	var calls int32
	handler := func(ctx context.Context, j jobs.Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient failure")
		}
		return nil
	}

	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{JobID: "job-1", Filename: "extrato.pdf", MaxRetries: 2}
	if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishProcessStatement failed: %v", err)
	}

	got := waitForStatus(t, store, "job-1", jobs.JobStatusCompleted)
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want cleared after success", got.Error)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("handler called %d times, want 2", n)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	var calls int32
	handler := func(ctx context.Context, j jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("statement text is empty")
	}

	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{JobID: "job-1", Filename: "vazio.pdf", MaxRetries: 1}
	if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishProcessStatement failed: %v", err)
	}

	got := waitForStatus(t, store, "job-1", jobs.JobStatusFailed)
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.Error != "statement text is empty" {
		t.Errorf("Error = %q", got.Error)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("handler called %d times, want 2", n)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	queue := inmemory.NewQueue(4, 1, inmemory.NewStore())
	if err := queue.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := queue.PublishProcessStatement(context.Background(), &jobs.ProcessStatementJob{JobID: "late"})
	if err == nil {
		t.Fatal("Expected publish on a closed queue to fail")
	}

	// Stop is idempotent.
	if err := queue.Stop(context.Background()); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestQueue_StopWaitsForInflightJob(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)

	entered := make(chan struct{})
	release := make(chan struct{})
	handler := func(ctx context.Context, j jobs.Job) error {
		close(entered)
		<-release
		return nil
	}

	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	job := &jobs.ProcessStatementJob{JobID: "job-1", Filename: "extrato.pdf"}
	if err := queue.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishProcessStatement failed: %v", err)
	}
	<-entered

	stopDone := make(chan error, 1)
	go func() { stopDone <- queue.Stop(context.Background()) }()

	select {
	case err := <-stopDone:
		t.Fatalf("Stop returned before the in-flight job finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-stopDone; err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got := waitForStatus(t, store, "job-1", jobs.JobStatusCompleted)
	if got.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}
