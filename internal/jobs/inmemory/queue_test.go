package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.QueryJob {
	t.Helper()
	var job *jobs.QueryJob
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_PublishAndProcess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.QueryJob) error {
		return nil
	}))

	job := &jobs.QueryJob{Query: "what did I spend?"}
	require.NoError(t, q.Publish(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.Equal(t, jobs.JobTypeQuery, job.Type)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.QueryJob) error {
		calls.Add(1)
		return errors.New("model unavailable")
	}))

	job := &jobs.QueryJob{Query: "q", MaxRetries: 2}
	require.NoError(t, q.Publish(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "model unavailable", failed.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_RetrySucceeds(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.QueryJob) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.QueryJob{Query: "q"}
	require.NoError(t, q.Publish(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 1, done.RetryCount)
	assert.Empty(t, done.Error)
}

func TestQueue_ClosedRejects(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), &jobs.QueryJob{Query: "q"})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

func TestStore_ListJobsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, j := range []*jobs.QueryJob{
		{JobID: "a", SessionID: "s1", Status: jobs.JobStatusCompleted},
		{JobID: "b", SessionID: "s1", Status: jobs.JobStatusFailed},
		{JobID: "c", SessionID: "s2", Status: jobs.JobStatusCompleted, Type: jobs.JobTypeScheduledInsights},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, j))
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)

	s1, err := store.ListJobs(ctx, jobs.JobFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, s1, 2)

	scheduled, err := store.ListJobs(ctx, jobs.JobFilter{Type: jobs.JobTypeScheduledInsights})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "c", scheduled[0].JobID)

	page, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].JobID)

	beyond, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestStore_GetAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.ErrorIs(t, store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
	assert.Error(t, store.SaveJob(ctx, &jobs.QueryJob{}))

	require.NoError(t, store.SaveJob(ctx, &jobs.QueryJob{JobID: "x", Status: jobs.JobStatusPending}))
	require.NoError(t, store.UpdateJobStatus(ctx, "x", jobs.JobStatusFailed, "boom"))

	got, err := store.GetJob(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	got.Status = jobs.JobStatusCompleted
	again, err := store.GetJob(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, again.Status)
}
