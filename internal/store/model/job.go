package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job statuses. Transitions are monotonic within a single attempt:
// queued -> running -> {done|failed}. A retried attempt re-enters running
// from failed, never from done.
const (
	JobStatusQueued  = "queued"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

type Job struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  *time.Time
	OrgID      string                        `gorm:"not null;index:jobs_org_id_idx"`
	Username   string                        `gorm:"type:VARCHAR(255)"`
	Kind       string                        `gorm:"not null;type:VARCHAR(100)"`
	Payload    *JSONField[map[string]any]    `gorm:"type:jsonb"`
	Status     string                        `gorm:"not null;type:VARCHAR(20);default:queued"`
	Progress   int                           `gorm:"not null;default:0"`
	OutputKey  string                        `gorm:"type:TEXT"`
	OutputName string                        `gorm:"type:VARCHAR(255)"`
	OutputMime string                        `gorm:"type:VARCHAR(100)"`
	Error      *string                       `gorm:"type:TEXT"`
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// HasArtifact reports whether the job produced a durable artifact.
func (j Job) HasArtifact() bool {
	return j.Status == JobStatusDone && j.OutputKey != ""
}
