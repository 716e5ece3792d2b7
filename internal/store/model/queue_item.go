package model

import (
	"time"

	"github.com/google/uuid"
)

// Queue item states. The vocabulary follows the usual durable-queue
// convention: available items are claimable, retryable items become
// claimable again once scheduled_at is due, discarded items exhausted their
// attempt budget and are retained for operator inspection.
const (
	QueueStateAvailable = "available"
	QueueStateRunning   = "running"
	QueueStateRetryable = "retryable"
	QueueStateCompleted = "completed"
	QueueStateDiscarded = "discarded"
)

type QueueItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time `gorm:"not null"`
	JobID       uuid.UUID `gorm:"not null;type:VARCHAR(255);index:queue_items_job_id_idx"`
	OrgID       string    `gorm:"not null"`
	Username    string    `gorm:"type:VARCHAR(255)"`
	Kind        string    `gorm:"not null;type:VARCHAR(100)"`
	Args        []byte    `gorm:"type:jsonb"`
	State       string    `gorm:"not null;type:VARCHAR(20);default:available;index:queue_items_state_idx"`
	Attempt     int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:1"`
	ScheduledAt time.Time `gorm:"not null"`
	AttemptedAt *time.Time
	FinishedAt  *time.Time
	LastError   string `gorm:"type:TEXT"`
}

type QueueItemList []QueueItem
