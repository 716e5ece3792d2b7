package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/store/model"
)

// JobOutput carries the durable artifact reference written by the
// materializer when a job completes.
type JobOutput struct {
	Key  string
	Name string
	Mime string
}

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkDone(ctx context.Context, id uuid.UUID, output JobOutput) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	Delete(ctx context.Context, id uuid.UUID) error
	InitialMigration(ctx context.Context) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.Job{})
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = model.JobStatusQueued

	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id.String())
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList

	tx := s.getDB(ctx).Model(&model.Job{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func (s *JobStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return s.updateColumns(ctx, id, map[string]any{
		"status":     model.JobStatusRunning,
		"started_at": &now,
		"error":      nil,
	})
}

func (s *JobStore) MarkDone(ctx context.Context, id uuid.UUID, output JobOutput) error {
	now := time.Now().UTC()
	return s.updateColumns(ctx, id, map[string]any{
		"status":      model.JobStatusDone,
		"progress":    100,
		"finished_at": &now,
		"output_key":  output.Key,
		"output_name": output.Name,
		"output_mime": output.Mime,
	})
}

func (s *JobStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now().UTC()
	return s.updateColumns(ctx, id, map[string]any{
		"status":      model.JobStatusFailed,
		"finished_at": &now,
		"error":       message,
		"output_key":  "",
		"output_name": "",
		"output_mime": "",
	})
}

func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return s.updateColumns(ctx, id, map[string]any{"progress": progress})
}

func (s *JobStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Job{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *JobStore) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) error {
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ?", id.String()).
		Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
