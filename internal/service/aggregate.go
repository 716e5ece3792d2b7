package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/fabworks/backoffice/internal/auth"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/store/model"
)

const MimePDF = "application/pdf"

// AggregateService implements the read-only operations spanning several
// finished jobs: merging PDF outputs and bundling outputs into a zip.
// Neither operation persists a new Job.
type AggregateService struct {
	jobs    *JobService
	objects objstore.ObjectStore
}

func NewAggregateService(jobs *JobService, objects objstore.ObjectStore) *AggregateService {
	return &AggregateService{jobs: jobs, objects: objects}
}

// MergePDF concatenates the PDF artifacts of the qualifying jobs in the
// given id order and writes the combined document to w. Non-owned and
// non-PDF ids are silently excluded; the operation is rejected when none
// qualify.
func (s *AggregateService) MergePDF(ctx context.Context, ids []uuid.UUID, user auth.User, w io.Writer) error {
	jobs, err := s.jobs.ListByIDsForOwner(ctx, ids, user)
	if err != nil {
		return err
	}

	var qualifying model.JobList
	for _, job := range jobs {
		if job.HasArtifact() && job.OutputMime == MimePDF {
			qualifying = append(qualifying, job)
		}
	}
	if len(qualifying) == 0 {
		return NewErrNoQualifyingJobs("merge-pdf")
	}

	// pdfcpu works on files; stage the artifacts in a temp dir.
	tmpDir, err := os.MkdirTemp("", "merge-pdf-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	inFiles := make([]string, 0, len(qualifying))
	for i, job := range qualifying {
		data, err := s.objects.GetBytes(ctx, job.OutputKey)
		if err != nil {
			return fmt.Errorf("fetching artifact of job %s: %w", job.ID, err)
		}
		inFile := filepath.Join(tmpDir, fmt.Sprintf("%03d.pdf", i))
		if err := os.WriteFile(inFile, data, 0o600); err != nil {
			return err
		}
		inFiles = append(inFiles, inFile)
	}

	outFile := filepath.Join(tmpDir, "merged.pdf")
	if err := pdfapi.MergeCreateFile(inFiles, outFile, false, nil); err != nil {
		return fmt.Errorf("merging documents: %w", err)
	}

	merged, err := os.Open(outFile)
	if err != nil {
		return err
	}
	defer merged.Close()

	_, err = io.Copy(w, merged)
	return err
}

// Zip streams a zip archive of the qualifying jobs' artifacts to w. The
// archive is built entry by entry on the wire, never buffered fully in
// memory.
func (s *AggregateService) Zip(ctx context.Context, ids []uuid.UUID, user auth.User, w io.Writer) error {
	jobs, err := s.jobs.ListByIDsForOwner(ctx, ids, user)
	if err != nil {
		return err
	}

	var qualifying model.JobList
	for _, job := range jobs {
		if job.HasArtifact() {
			qualifying = append(qualifying, job)
		}
	}
	if len(qualifying) == 0 {
		return NewErrNoQualifyingJobs("zip")
	}

	zw := zip.NewWriter(w)
	names := make(map[string]int, len(qualifying))

	for _, job := range qualifying {
		object, _, err := s.objects.Get(ctx, job.OutputKey)
		if err != nil {
			return fmt.Errorf("fetching artifact of job %s: %w", job.ID, err)
		}

		entry, err := zw.Create(uniqueName(names, job.OutputName))
		if err != nil {
			object.Close()
			return err
		}
		if _, err := io.Copy(entry, object); err != nil {
			object.Close()
			return err
		}
		object.Close()
	}

	return zw.Close()
}

// uniqueName deduplicates repeated output names inside one archive.
func uniqueName(seen map[string]int, name string) string {
	count := seen[name]
	seen[name] = count + 1
	if count == 0 {
		return name
	}

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s-%d%s", base, count+1, ext)
}
