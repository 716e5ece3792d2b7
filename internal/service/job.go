package service

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabworks/backoffice/internal/artifacts"
	"github.com/fabworks/backoffice/internal/auth"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/internal/store/model"
	"github.com/fabworks/backoffice/pkg/metrics"
)

type JobService struct {
	store   store.Store
	queue   *queue.Queue
	objects objstore.ObjectStore
}

func NewJobService(s store.Store, q *queue.Queue, objects objstore.ObjectStore) *JobService {
	return &JobService{store: s, queue: q, objects: objects}
}

// Enqueue creates the Job record and stages the queue item in the same
// logical operation, so no record exists without a work item and vice
// versa.
func (s *JobService) Enqueue(ctx context.Context, kind string, payload map[string]any, user auth.User) (*model.Job, error) {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	job, err := s.store.Job().Create(ctx, model.Job{
		OrgID:    user.Organization,
		Username: user.Username,
		Kind:     kind,
		Payload:  model.MakeJSONField(payload),
	})
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, queue.Item{
		JobID:    job.ID,
		OrgID:    user.Organization,
		Username: user.Username,
		Kind:     kind,
		Payload:  payload,
	}); err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.IncreaseJobsEnqueuedMetric(kind)
	return job, nil
}

func (s *JobService) List(ctx context.Context, user auth.User, statusFilter string) (model.JobList, error) {
	filter := store.NewJobQueryFilter().ByOrgID(user.Organization)
	if statusFilter != "" {
		filter = filter.ByStatus(statusFilter)
	}
	return s.store.Job().List(ctx, filter, store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTime))
}

// ListAll is the administrative variant of List: no ownership filter.
func (s *JobService) ListAll(ctx context.Context, statusFilter string) (model.JobList, error) {
	filter := store.NewJobQueryFilter()
	if statusFilter != "" {
		filter = filter.ByStatus(statusFilter)
	}
	return s.store.Job().List(ctx, filter, store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTime))
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID, user auth.User) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}

	if err := s.checkAccess(job, user); err != nil {
		return nil, err
	}

	return job, nil
}

// GetAdmin bypasses the ownership check.
func (s *JobService) GetAdmin(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

// ListByIDsForOwner returns the caller's jobs among ids, preserving the
// requested order. Ids that do not exist or belong to someone else are
// silently dropped; a partial match is not an error.
func (s *JobService) ListByIDsForOwner(ctx context.Context, ids []uuid.UUID, user auth.User) (model.JobList, error) {
	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	jobs, err := s.store.Job().List(ctx,
		store.NewJobQueryFilter().ByOrgID(user.Organization).ByIDs(idStrings), nil)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]model.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	ordered := make(model.JobList, 0, len(jobs))
	for _, id := range ids {
		if job, found := byID[id]; found {
			ordered = append(ordered, job)
		}
	}
	return ordered, nil
}

// Download returns a stream over the job's durable artifact.
func (s *JobService) Download(ctx context.Context, id uuid.UUID, user auth.User) (io.ReadCloser, *model.Job, error) {
	job, err := s.Get(ctx, id, user)
	if err != nil {
		return nil, nil, err
	}

	if !job.HasArtifact() {
		return nil, nil, NewErrNoArtifact(id)
	}

	object, _, err := s.objects.Get(ctx, job.OutputKey)
	if err != nil {
		if errors.Is(err, objstore.ErrObjectNotFound) {
			return nil, nil, NewErrArtifactUnavailable(id)
		}
		return nil, nil, err
	}

	return object, job, nil
}

// Delete removes the durable artifact (best-effort) and then the Job
// record together with its queue items.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID, user auth.User) error {
	job, err := s.Get(ctx, id, user)
	if err != nil {
		return err
	}
	return s.delete(ctx, job)
}

// DeleteAdmin is Delete without the ownership filter.
func (s *JobService) DeleteAdmin(ctx context.Context, id uuid.UUID) error {
	job, err := s.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, job)
}

func (s *JobService) delete(ctx context.Context, job *model.Job) error {
	// A missing artifact is not an error here; the record removal is what
	// matters. Sweep the whole key prefix so superseded attempts go too.
	prefix := artifacts.Prefix(job.OrgID, job.ID)
	if infos, err := s.objects.ListPrefix(ctx, prefix); err != nil {
		zap.S().Named("job_service").Warnf("failed to list artifacts under %s: %v", prefix, err)
	} else {
		for _, info := range infos {
			if err := s.objects.Delete(ctx, info.Key); err != nil {
				zap.S().Named("job_service").Warnf("failed to delete artifact %s: %v", info.Key, err)
			}
		}
	}

	if err := s.store.Queue().DeleteByJobID(ctx, job.ID); err != nil {
		zap.S().Named("job_service").Warnf("failed to delete queue items of job %s: %v", job.ID, err)
	}

	return s.store.Job().Delete(ctx, job.ID)
}

// checkAccess distinguishes forbidden from not-found for observability;
// the HTTP layer presents both as a generic denial without job data.
func (s *JobService) checkAccess(job *model.Job, user auth.User) error {
	if job.OrgID != user.Organization {
		return NewErrJobAccessForbidden(job.ID)
	}
	return nil
}
