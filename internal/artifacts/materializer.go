// Package artifacts turns a handler's local file result into a durable
// artifact: upload to the object store, scratch cleanup and Job record
// rewrite, atomic from the client's point of view.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabworks/backoffice/internal/jobs"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/store"
)

type Materializer struct {
	store   store.Store
	objects objstore.ObjectStore
}

func New(s store.Store, objects objstore.ObjectStore) *Materializer {
	return &Materializer{store: s, objects: objects}
}

// Key computes the deterministic durable-store key for a job artifact.
func Key(orgID string, jobID uuid.UUID, name string) string {
	return fmt.Sprintf("jobs/%s/%s/%s", orgID, jobID, name)
}

// Prefix returns the key prefix under which all artifacts of a job live.
func Prefix(orgID string, jobID uuid.UUID) string {
	return fmt.Sprintf("jobs/%s/%s/", orgID, jobID)
}

// Materialize uploads the handler result and rewrites the Job record to
// done. A nil result drives the record straight to done with empty output
// fields. Any failure leaves the record untouched so the worker can mark
// the job failed instead; the job is never done without a durable,
// retrievable artifact.
func (m *Materializer) Materialize(ctx context.Context, jc *jobs.Context, result *jobs.Result) error {
	logger := zap.S().Named("materializer")

	if result == nil {
		m.cleanupScratch(jc)
		return m.store.Job().MarkDone(ctx, jc.JobID, store.JobOutput{})
	}

	fi, err := os.Stat(result.LocalPath)
	if err != nil {
		return fmt.Errorf("handler output %q is not readable: %w", result.LocalPath, err)
	}

	name := result.Name
	if name == "" {
		name = filepath.Base(result.LocalPath)
	}
	key := Key(jc.OrgID, jc.JobID, name)

	file, err := os.Open(result.LocalPath)
	if err != nil {
		return fmt.Errorf("opening handler output: %w", err)
	}
	defer file.Close()

	metadata := map[string]string{
		"org-id": jc.OrgID,
		"job-id": jc.JobID.String(),
	}
	if err := m.objects.Put(ctx, key, file, fi.Size(), result.Mime, metadata); err != nil {
		return fmt.Errorf("uploading artifact: %w", err)
	}

	// The local scratch tree is gone from here on; the record references
	// the durable key only.
	m.cleanupScratch(jc)

	if err := m.store.Job().MarkDone(ctx, jc.JobID, store.JobOutput{
		Key:  key,
		Name: name,
		Mime: result.Mime,
	}); err != nil {
		return fmt.Errorf("rewriting job record: %w", err)
	}

	logger.Infof("materialized artifact %s (%d bytes)", key, fi.Size())
	return nil
}

// cleanupScratch removes the whole per-job scratch directory tree.
// Best-effort: a leftover tree is a disk-space nuisance, not a correctness
// problem.
func (m *Materializer) cleanupScratch(jc *jobs.Context) {
	if dir := jc.ScratchDir(); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			zap.S().Named("materializer").Warnf("failed to remove scratch dir %s: %v", dir, err)
		}
	}
}
