// Package v1alpha1 holds the wire types of the backoffice job API.
package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

func StringToJobStatus(s string) (JobStatus, bool) {
	switch s {
	case string(JobStatusQueued):
		return JobStatusQueued, true
	case string(JobStatusRunning):
		return JobStatusRunning, true
	case string(JobStatusDone):
		return JobStatusDone, true
	case string(JobStatusFailed):
		return JobStatusFailed, true
	default:
		return "", false
	}
}

type Job struct {
	Id         uuid.UUID      `json:"id"`
	Kind       string         `json:"kind"`
	Status     JobStatus      `json:"status"`
	Progress   int            `json:"progress"`
	Payload    map[string]any `json:"payload,omitempty"`
	OutputName string         `json:"outputName,omitempty"`
	OutputMime string         `json:"outputMime,omitempty"`
	Error      *string        `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

type JobList []Job

type EnqueueJobRequest struct {
	Type    string         `json:"type" validate:"required,min=1,max=100"`
	Payload map[string]any `json:"payload"`
}

type EnqueueJobReply struct {
	JobId  uuid.UUID `json:"jobId"`
	Status JobStatus `json:"status"`
}

type JobIdsRequest struct {
	Ids []uuid.UUID `json:"ids" validate:"required,min=1"`
}

type PrintJobRequest struct {
	Destination string `json:"destination,omitempty" validate:"omitempty,max=127"`
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}
