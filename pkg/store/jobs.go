package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
)

// JobType is what a job does when it runs.
type JobType string

const (
	JobSync      JobType = "sync"
	JobSend      JobType = "send"
	JobScheduled JobType = "scheduled"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobActive   JobStatus = "active"
	JobPaused   JobStatus = "paused"
	JobDisabled JobStatus = "disabled"
)

// Job is a stored integration job definition. The gateway does not run
// jobs itself; RecordRun is called by whatever executes them.
type Job struct {
	ID        string        `json:"id"`
	Name      string        `json:"job_name" validate:"required,max=200"`
	Connector string        `json:"connector_name" validate:"required,max=100"`
	Type      JobType       `json:"job_type" validate:"required,oneof=sync send scheduled"`
	Schedule  string        `json:"schedule_expression,omitempty" validate:"required_if=Type scheduled,max=100"`
	Config    config.Values `json:"job_config,omitempty"`
	Status    JobStatus     `json:"status" validate:"omitempty,oneof=active paused disabled"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt *time.Time    `json:"next_run_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JobRepository stores jobs.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func validateJob(job *Job) error {
	if err := config.ValidateStruct(job); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "invalid job")
	}
	return nil
}

// Create inserts job, assigning its ID and defaulting its status to active.
func (r *JobRepository) Create(ctx context.Context, job *Job) error {
	if job.Status == "" {
		job.Status = JobActive
	}
	if err := validateJob(job); err != nil {
		return err
	}
	data, err := encodeValues(job.Config)
	if err != nil {
		return fmt.Errorf("failed to encode job config for %s: %w", job.Name, err)
	}

	model := JobModel{
		ID:            uuid.NewString(),
		JobName:       job.Name,
		ConnectorName: job.Connector,
		JobType:       string(job.Type),
		Schedule:      job.Schedule,
		ConfigJSON:    data,
		Status:        string(job.Status),
		LastRunAt:     job.LastRunAt,
		NextRunAt:     job.NextRunAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	job.ID = model.ID
	job.CreatedAt = model.CreatedAt
	job.UpdatedAt = model.UpdatedAt
	return nil
}

// Get finds a job by ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*Job, error) {
	var model JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToJob(), nil
}

// List returns jobs ordered by name. An empty status lists every job.
func (r *JobRepository) List(ctx context.Context, status JobStatus) ([]*Job, error) {
	query := r.db.WithContext(ctx).Order("job_name ASC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var models []JobModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]*Job, len(models))
	for i := range models {
		jobs[i] = models[i].ToJob()
	}
	return jobs, nil
}

// Update saves every editable field of job.
func (r *JobRepository) Update(ctx context.Context, job *Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	data, err := encodeValues(job.Config)
	if err != nil {
		return fmt.Errorf("failed to encode job config for %s: %w", job.Name, err)
	}

	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"job_name":            job.Name,
			"connector_name":      job.Connector,
			"job_type":            string(job.Type),
			"schedule_expression": job.Schedule,
			"job_config":          data,
			"status":              string(job.Status),
			"last_run_at":         job.LastRunAt,
			"next_run_at":         job.NextRunAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRun stamps the time a job last ran and when it should run next.
func (r *JobRepository) RecordRun(ctx context.Context, id string, ranAt time.Time, next *time.Time) error {
	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_run_at": ranAt,
			"next_run_at": next,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&JobModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
