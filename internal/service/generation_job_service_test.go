package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type stubGenerator struct {
	fn func(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error)
}

func (s stubGenerator) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
	return s.fn(ctx, req)
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (r *recordingEnqueuer) Enqueue(job jobs.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func jobRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{ClassID: "10", Section: "A", WeekStart: string(testWeek)}
}

func TestSubmitQueuesJob(t *testing.T) {
	queue := &recordingEnqueuer{}
	svc := NewGenerationJobService(stubGenerator{}, nil, time.Hour)
	svc.AttachQueue(queue)

	job, err := svc.Submit(context.Background(), jobRequest(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobQueued, job.Status)
	assert.Equal(t, weekKey("10"), job.Key)
	assert.Equal(t, "admin-1", job.RequestedBy)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)
	assert.Equal(t, generationJobType, queue.jobs[0].Type)

	fetched, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
}

func TestSubmitErrors(t *testing.T) {
	svc := NewGenerationJobService(stubGenerator{}, nil, time.Hour)
	_, err := svc.Submit(context.Background(), jobRequest(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))

	svc.AttachQueue(&recordingEnqueuer{err: jobs.ErrQueueFull})
	_, err = svc.Submit(context.Background(), jobRequest(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTooManyRequests.Code))
	assert.Empty(t, svc.jobs)

	bad := jobRequest()
	bad.WeekStart = "2024-09-03"
	_, err = svc.Submit(context.Background(), bad, "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestHandleJobRecordsOutcome(t *testing.T) {
	cases := map[string]struct {
		err    error
		status models.GenerationJobStatus
	}{
		"success":   {status: models.GenerationJobSucceeded},
		"failure":   {err: appErrors.Clone(appErrors.ErrPreconditionFailed, "week already filled"), status: models.GenerationJobFailed},
		"cancelled": {err: appErrors.Clone(appErrors.ErrCancelled, "generation cancelled"), status: models.GenerationJobCancelled},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gen := stubGenerator{fn: func(context.Context, dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &dto.GenerateTimetableResult{ProposalID: "p1"}, nil
			}}
			queue := &recordingEnqueuer{}
			svc := NewGenerationJobService(gen, nil, time.Hour)
			svc.AttachQueue(queue)

			job, err := svc.Submit(context.Background(), jobRequest(), "")
			require.NoError(t, err)
			require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))

			done, err := svc.Get(context.Background(), job.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, done.Status)
			assert.NotNil(t, done.StartedAt)
			assert.NotNil(t, done.FinishedAt)
			if tc.err == nil {
				assert.NotNil(t, done.Result)
				assert.Empty(t, done.Error)
			} else {
				assert.Nil(t, done.Result)
				assert.NotEmpty(t, done.Error)
			}
		})
	}
}

func TestCancelQueuedJobSkipsGeneration(t *testing.T) {
	called := false
	gen := stubGenerator{fn: func(context.Context, dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
		called = true
		return &dto.GenerateTimetableResult{}, nil
	}}
	queue := &recordingEnqueuer{}
	svc := NewGenerationJobService(gen, nil, time.Hour)
	svc.AttachQueue(queue)
	ctx := context.Background()

	job, err := svc.Submit(ctx, jobRequest(), "")
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobCancelled, cancelled.Status)

	require.NoError(t, svc.HandleJob(ctx, queue.jobs[0]))
	assert.False(t, called)

	_, err = svc.Cancel(ctx, job.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	gen := stubGenerator{fn: func(ctx context.Context, _ dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
		close(started)
		<-ctx.Done()
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "generation cancelled")
	}}
	queue := &recordingEnqueuer{}
	svc := NewGenerationJobService(gen, nil, time.Hour)
	svc.AttachQueue(queue)
	ctx := context.Background()

	job, err := svc.Submit(ctx, jobRequest(), "")
	require.NoError(t, err)

	handled := make(chan error, 1)
	go func() { handled <- svc.HandleJob(ctx, queue.jobs[0]) }()
	<-started

	running, err := svc.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobRunning, running.Status)

	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop after cancel")
	}
	done, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobCancelled, done.Status)
}

func TestFinishedJobsArePrunedAfterRetention(t *testing.T) {
	queue := &recordingEnqueuer{}
	gen := stubGenerator{fn: func(context.Context, dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error) {
		return nil, errors.New("boom")
	}}
	svc := NewGenerationJobService(gen, nil, time.Minute)
	svc.AttachQueue(queue)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	old, err := svc.Submit(ctx, jobRequest(), "")
	require.NoError(t, err)
	require.NoError(t, svc.HandleJob(ctx, queue.jobs[0]))

	now = now.Add(2 * time.Minute)
	_, err = svc.Submit(ctx, jobRequest(), "")
	require.NoError(t, err)

	_, err = svc.Get(ctx, old.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestGenerationJobsRunOnQueue(t *testing.T) {
	repo := newMemEntryRepo()
	generator := newGeneratorFixture(repo, []models.Teacher{teacher("t1", "Ani", "math")}, nil, nil)
	svc := NewGenerationJobService(generator, nil, time.Hour)
	queue := jobs.NewQueue("generation", svc.HandleJob, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	svc.AttachQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	req := genReq([]string{"MON"}, 4, demand("math", "Math", 2))
	req.Commit = true
	job, err := svc.Submit(context.Background(), req, "admin-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := svc.Get(context.Background(), job.ID)
		return err == nil && current.Status == models.GenerationJobSucceeded
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, repo.all(), 2)
}
