package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type generationJobRecord struct {
	job     models.GenerationJob
	request dto.GenerateTimetableRequest
	cancel  context.CancelFunc
}

// GenerationJobService runs generation requests in the background and
// keeps their status in memory for a retention window.
type GenerationJobService struct {
	generator timetableGenerator
	queue     jobEnqueuer
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*generationJobRecord
}

// NewGenerationJobService builds the service. AttachQueue must be called
// before Submit.
func NewGenerationJobService(generator timetableGenerator, logger *zap.Logger, retention time.Duration) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &GenerationJobService{
		generator: generator,
		logger:    logger,
		retention: retention,
		now:       time.Now,
		jobs:      make(map[string]*generationJobRecord),
	}
}

// AttachQueue sets the queue used by Submit. The queue's handler is
// expected to be HandleJob.
func (s *GenerationJobService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Submit validates nothing beyond the week key; the generator validates the
// rest when the job runs.
func (s *GenerationJobService) Submit(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*models.GenerationJob, error) {
	key, err := parseWeekKey(req.ClassID, req.Section, req.WeekStart)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation queue is not configured")
	}

	record := &generationJobRecord{
		job: models.GenerationJob{
			ID:          uuid.NewString(),
			Key:         key,
			Status:      models.GenerationJobQueued,
			RequestedBy: requestedBy,
			CreatedAt:   s.now().UTC(),
		},
		request: req,
	}

	s.mu.Lock()
	s.pruneLocked()
	s.jobs[record.job.ID] = record
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.job.ID, Type: generationJobType}); err != nil {
		s.mu.Lock()
		delete(s.jobs, record.job.ID)
		s.mu.Unlock()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "generation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}

	s.logger.Info("generation job queued", zap.String("job_id", record.job.ID), zap.String("week", key.String()))
	job := record.job
	return &job, nil
}

// Get returns a snapshot of the job.
func (s *GenerationJobService) Get(_ context.Context, id string) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	job := record.job
	return &job, nil
}

// Cancel stops a queued or running job. A running job stops at its next
// cancellation check and never commits afterwards.
func (s *GenerationJobService) Cancel(_ context.Context, id string) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	switch record.job.Status {
	case models.GenerationJobQueued:
		s.finishLocked(record, models.GenerationJobCancelled, "cancelled before start", nil)
	case models.GenerationJobRunning:
		if record.cancel != nil {
			record.cancel()
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generation job already finished")
	}
	job := record.job
	return &job, nil
}

// HandleJob is the queue handler. Generation failures are recorded on the
// job and never retried.
func (s *GenerationJobService) HandleJob(ctx context.Context, j jobs.Job) error {
	s.mu.Lock()
	record, ok := s.jobs[j.ID]
	if !ok || record.job.Status != models.GenerationJobQueued {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	started := s.now().UTC()
	record.cancel = cancel
	record.job.Status = models.GenerationJobRunning
	record.job.StartedAt = &started
	req := record.request
	s.mu.Unlock()

	result, err := s.generator.Generate(runCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	record.cancel = nil
	switch {
	case err == nil:
		s.finishLocked(record, models.GenerationJobSucceeded, "", result)
	case appErrors.HasCode(err, appErrors.ErrCancelled.Code) || errors.Is(err, context.Canceled):
		s.finishLocked(record, models.GenerationJobCancelled, err.Error(), nil)
	default:
		s.finishLocked(record, models.GenerationJobFailed, err.Error(), nil)
	}
	s.logger.Info("generation job finished",
		zap.String("job_id", record.job.ID),
		zap.String("status", string(record.job.Status)),
		zap.String("error", record.job.Error),
	)
	return nil
}

func (s *GenerationJobService) finishLocked(record *generationJobRecord, status models.GenerationJobStatus, message string, result *dto.GenerateTimetableResult) {
	finished := s.now().UTC()
	record.job.Status = status
	record.job.Error = message
	record.job.FinishedAt = &finished
	if result != nil {
		record.job.Result = result
	}
}

func (s *GenerationJobService) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, record := range s.jobs {
		if record.job.Status.Terminal() && record.job.FinishedAt != nil && record.job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
