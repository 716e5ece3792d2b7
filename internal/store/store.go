package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Queue() QueueItem
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db    *gorm.DB
	job   Job
	queue QueueItem
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:    db,
		job:   NewJobStore(db),
		queue: NewQueueItemStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Queue() QueueItem {
	return s.queue
}

func (s *DataStore) InitialMigration() error {
	ctx := context.Background()
	if err := s.job.InitialMigration(ctx); err != nil {
		return err
	}
	return s.queue.InitialMigration(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
