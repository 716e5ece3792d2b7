package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fabworks/backoffice/internal/store/model"
)

type QueueItem interface {
	Enqueue(ctx context.Context, item model.QueueItem) (*model.QueueItem, error)
	// Claim atomically takes ownership of the oldest due item. It returns
	// ErrRecordNotFound when nothing is claimable.
	Claim(ctx context.Context) (*model.QueueItem, error)
	Complete(ctx context.Context, id int64) error
	// Retry re-schedules a failed attempt at the given time.
	Retry(ctx context.Context, id int64, lastError string, retryAt time.Time) error
	// Discard retains an exhausted item for operator inspection.
	Discard(ctx context.Context, id int64, lastError string) error
	Get(ctx context.Context, id int64) (*model.QueueItem, error)
	ByJobID(ctx context.Context, jobID uuid.UUID) (*model.QueueItem, error)
	Depth(ctx context.Context) (int64, error)
	ListDiscarded(ctx context.Context) (model.QueueItemList, error)
	DeleteByJobID(ctx context.Context, jobID uuid.UUID) error
	InitialMigration(ctx context.Context) error
}

type QueueItemStore struct {
	db *gorm.DB
}

// Make sure we conform to QueueItem interface
var _ QueueItem = (*QueueItemStore)(nil)

func NewQueueItemStore(db *gorm.DB) QueueItem {
	return &QueueItemStore{db: db}
}

func (s *QueueItemStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.QueueItem{})
}

func (s *QueueItemStore) Enqueue(ctx context.Context, item model.QueueItem) (*model.QueueItem, error) {
	item.State = model.QueueStateAvailable
	if item.ScheduledAt.IsZero() {
		item.ScheduledAt = time.Now().UTC()
	}
	if item.MaxAttempts < 1 {
		item.MaxAttempts = 1
	}

	result := s.getDB(ctx).Create(&item)
	if result.Error != nil {
		return nil, fmt.Errorf("enqueueing item: %w", result.Error)
	}
	return &item, nil
}

func (s *QueueItemStore) Claim(ctx context.Context) (*model.QueueItem, error) {
	var claimed *model.QueueItem

	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.QueueItem

		query := tx
		// sqlite has no row locks; the guarded update below still keeps the
		// claim single-winner there.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		result := query.
			Where("state IN ?", []string{model.QueueStateAvailable, model.QueueStateRetryable}).
			Where("scheduled_at <= ?", time.Now().UTC()).
			Order("id").
			Limit(1).
			Find(&item)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}

		now := time.Now().UTC()
		update := tx.Model(&model.QueueItem{}).
			Where("id = ? AND state = ?", item.ID, item.State).
			Updates(map[string]any{
				"state":        model.QueueStateRunning,
				"attempt":      item.Attempt + 1,
				"attempted_at": &now,
			})
		if update.Error != nil {
			return update.Error
		}
		// another worker won the race
		if update.RowsAffected == 0 {
			return ErrRecordNotFound
		}

		item.State = model.QueueStateRunning
		item.Attempt++
		item.AttemptedAt = &now
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (s *QueueItemStore) Complete(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.updateState(ctx, id, map[string]any{
		"state":       model.QueueStateCompleted,
		"finished_at": &now,
	})
}

func (s *QueueItemStore) Retry(ctx context.Context, id int64, lastError string, retryAt time.Time) error {
	return s.updateState(ctx, id, map[string]any{
		"state":        model.QueueStateRetryable,
		"last_error":   lastError,
		"scheduled_at": retryAt.UTC(),
	})
}

func (s *QueueItemStore) Discard(ctx context.Context, id int64, lastError string) error {
	now := time.Now().UTC()
	return s.updateState(ctx, id, map[string]any{
		"state":       model.QueueStateDiscarded,
		"last_error":  lastError,
		"finished_at": &now,
	})
}

func (s *QueueItemStore) Get(ctx context.Context, id int64) (*model.QueueItem, error) {
	var item model.QueueItem
	result := s.getDB(ctx).First(&item, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying queue item: %w", result.Error)
	}
	return &item, nil
}

func (s *QueueItemStore) ByJobID(ctx context.Context, jobID uuid.UUID) (*model.QueueItem, error) {
	var item model.QueueItem
	result := s.getDB(ctx).
		Where("job_id = ?", jobID.String()).
		Order("id DESC").
		First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying queue item: %w", result.Error)
	}
	return &item, nil
}

func (s *QueueItemStore) Depth(ctx context.Context) (int64, error) {
	var depth int64
	result := s.getDB(ctx).Model(&model.QueueItem{}).
		Where("state IN ?", []string{model.QueueStateAvailable, model.QueueStateRetryable}).
		Count(&depth)
	if result.Error != nil {
		return 0, result.Error
	}
	return depth, nil
}

func (s *QueueItemStore) ListDiscarded(ctx context.Context) (model.QueueItemList, error) {
	var items model.QueueItemList
	result := s.getDB(ctx).
		Where("state = ?", model.QueueStateDiscarded).
		Order("id").
		Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}

func (s *QueueItemStore) DeleteByJobID(ctx context.Context, jobID uuid.UUID) error {
	result := s.getDB(ctx).Unscoped().
		Where("job_id = ?", jobID.String()).
		Delete(&model.QueueItem{})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *QueueItemStore) updateState(ctx context.Context, id int64, columns map[string]any) error {
	result := s.getDB(ctx).Model(&model.QueueItem{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("updating queue item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *QueueItemStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
