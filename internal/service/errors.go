package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id uuid.UUID) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

type ErrJobAccessForbidden struct {
	error
}

func NewErrJobAccessForbidden(id uuid.UUID) *ErrJobAccessForbidden {
	return &ErrJobAccessForbidden{fmt.Errorf("forbidden to access job %s", id)}
}

// ErrArtifactUnavailable indicates the job finished but its artifact is no
// longer present in durable storage, e.g. after an external purge.
type ErrArtifactUnavailable struct {
	error
}

func NewErrArtifactUnavailable(id uuid.UUID) *ErrArtifactUnavailable {
	return &ErrArtifactUnavailable{fmt.Errorf("artifact of job %s is no longer available", id)}
}

type ErrNoArtifact struct {
	error
}

func NewErrNoArtifact(id uuid.UUID) *ErrNoArtifact {
	return &ErrNoArtifact{fmt.Errorf("job %s has no artifact", id)}
}

// ErrNoQualifyingJobs rejects an aggregate operation whose id list contains
// no job the caller may operate on.
type ErrNoQualifyingJobs struct {
	error
}

func NewErrNoQualifyingJobs(operation string) *ErrNoQualifyingJobs {
	return &ErrNoQualifyingJobs{fmt.Errorf("no qualifying jobs for %s", operation)}
}

type ErrPrintSubmission struct {
	error
}

func NewErrPrintSubmission(cause error) *ErrPrintSubmission {
	return &ErrPrintSubmission{fmt.Errorf("print submission: %w", cause)}
}

type ErrNoPrintDestination struct {
	error
}

func NewErrNoPrintDestination() *ErrNoPrintDestination {
	return &ErrNoPrintDestination{fmt.Errorf("no print destination given and no default configured")}
}
