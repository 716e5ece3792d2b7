package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fabworks/backoffice/internal/auth"
	"github.com/fabworks/backoffice/internal/ipp"
	"github.com/fabworks/backoffice/internal/objstore"
)

// Printer is the submission side of the print transport.
type Printer interface {
	PrintJob(ctx context.Context, destination, user, jobName string, document []byte) error
}

type PrintService struct {
	jobs               *JobService
	objects            objstore.ObjectStore
	printer            Printer
	defaultDestination string
}

func NewPrintService(jobs *JobService, objects objstore.ObjectStore, printer Printer, defaultDestination string) *PrintService {
	return &PrintService{
		jobs:               jobs,
		objects:            objects,
		printer:            printer,
		defaultDestination: defaultDestination,
	}
}

// Print fetches the PDF artifact of the job and submits it to the resolved
// destination. Print transport failures are surfaced verbatim and never
// retried by the engine.
func (s *PrintService) Print(ctx context.Context, id uuid.UUID, destination string, user auth.User) error {
	job, err := s.jobs.Get(ctx, id, user)
	if err != nil {
		return err
	}

	if !job.HasArtifact() || job.OutputMime != MimePDF {
		return NewErrNoArtifact(id)
	}

	if destination == "" {
		destination = s.defaultDestination
	}
	if destination == "" {
		return NewErrNoPrintDestination()
	}

	document, err := s.objects.GetBytes(ctx, job.OutputKey)
	if err != nil {
		if errors.Is(err, objstore.ErrObjectNotFound) {
			return NewErrArtifactUnavailable(id)
		}
		return err
	}

	jobName := job.OutputName
	if jobName == "" {
		jobName = fmt.Sprintf("job-%s", job.ID)
	}

	if err := s.printer.PrintJob(ctx, destination, user.Username, jobName, document); err != nil {
		return NewErrPrintSubmission(err)
	}

	return nil
}

var _ Printer = (*ipp.Client)(nil)
