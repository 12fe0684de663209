package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/store"
)

// JobSource is where integration jobs live.
type JobSource interface {
	Create(ctx context.Context, job *store.Job) error
	Get(ctx context.Context, id string) (*store.Job, error)
	List(ctx context.Context, status store.JobStatus) ([]*store.Job, error)
	Update(ctx context.Context, job *store.Job) error
	RecordRun(ctx context.Context, id string, ranAt time.Time, next *time.Time) error
	Delete(ctx context.Context, id string) error
}

var errNoJobs = errors.New(errors.ErrorTypeConfig, "job storage is not configured")

func (s *Service) jobSource() (JobSource, error) {
	if s.jobs == nil {
		return nil, errNoJobs
	}
	return s.jobs, nil
}

// CreateJob stores job after checking that its connector exists.
func (s *Service) CreateJob(ctx context.Context, job *store.Job) error {
	jobs, err := s.jobSource()
	if err != nil {
		return err
	}
	if _, err := s.configs.Get(ctx, job.Connector); err != nil {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "unknown connector "+job.Connector)
	}
	if err := jobs.Create(ctx, job); err != nil {
		return err
	}
	s.logger.Info("job created",
		zap.String("job_id", job.ID),
		zap.String("job", job.Name),
		zap.String("connector", job.Connector))
	return nil
}

// Jobs lists jobs. An empty status lists every job.
func (s *Service) Jobs(ctx context.Context, status store.JobStatus) ([]*store.Job, error) {
	jobs, err := s.jobSource()
	if err != nil {
		return nil, err
	}
	return jobs.List(ctx, status)
}

// Job returns the job with id.
func (s *Service) Job(ctx context.Context, id string) (*store.Job, error) {
	jobs, err := s.jobSource()
	if err != nil {
		return nil, err
	}
	job, err := jobs.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "unknown job "+id)
	}
	return job, nil
}

// SetJobStatus pauses, resumes or disables a job.
func (s *Service) SetJobStatus(ctx context.Context, id string, status store.JobStatus) (*store.Job, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Status = status
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	jobs, err := s.jobSource()
	if err != nil {
		return err
	}
	if err := jobs.Delete(ctx, id); err != nil {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "unknown job "+id)
	}
	return nil
}

// JobRun is the outcome of RunJob.
type JobRun struct {
	Job    *store.Job `json:"job"`
	Result any        `json:"result"`
	OK     bool       `json:"ok"`
}

// RunJob runs an active job once through its connector and stamps the run.
// Sync and scheduled jobs read data_type and filters from the job config;
// send jobs read data_type and payload.
func (s *Service) RunJob(ctx context.Context, id string) (*JobRun, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != store.JobActive {
		return nil, errors.Newf(errors.ErrorTypeValidation, "job %s is %s", job.Name, job.Status)
	}
	dataType := job.Config.String("data_type", "")
	if dataType == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "job %s has no data_type", job.Name)
	}

	run := &JobRun{Job: job}
	switch job.Type {
	case store.JobSend:
		payload, _ := models.AsRecord(job.Config["payload"])
		if payload == nil {
			payload = models.Record{}
		}
		res, err := s.Send(ctx, job.Connector, dataType, payload)
		if err != nil {
			return nil, err
		}
		run.Result, run.OK = res, res.OK()
	default:
		res, err := s.Sync(ctx, job.Connector, dataType, job.Config.Map("filters"))
		if err != nil {
			return nil, err
		}
		run.Result, run.OK = res, res.OK()
	}

	ranAt := s.now().UTC()
	if err := s.jobs.RecordRun(ctx, job.ID, ranAt, job.NextRunAt); err != nil {
		return nil, err
	}
	job.LastRunAt = &ranAt
	s.logger.Info("job ran",
		zap.String("job_id", job.ID),
		zap.String("job", job.Name),
		zap.Bool("ok", run.OK))
	return run, nil
}
