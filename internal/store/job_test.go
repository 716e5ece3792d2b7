package store_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/internal/store/model"
)

const (
	insertJobStm           = "INSERT INTO jobs (id, created_at, org_id, kind, status) VALUES ('%s', CURRENT_TIMESTAMP, '%s', '%s', '%s');"
	insertJobWithUserStm   = "INSERT INTO jobs (id, created_at, org_id, username, kind, status) VALUES ('%s', CURRENT_TIMESTAMP, '%s', '%s', '%s', '%s');"
	insertJobWithOutputStm = "INSERT INTO jobs (id, created_at, org_id, kind, status, output_key, output_name, output_mime) VALUES ('%s', CURRENT_TIMESTAMP, '%s', '%s', '%s', '%s', '%s', '%s');"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from jobs;")
	})

	Context("create", func() {
		It("assigns an id and starts queued", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				OrgID:    "org-1",
				Username: "alice",
				Kind:     "export.articles",
			})
			Expect(err).To(BeNil())
			Expect(job.ID).NotTo(Equal(uuid.Nil))
			Expect(job.Status).To(Equal(model.JobStatusQueued))

			stored, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(stored.OrgID).To(Equal("org-1"))
			Expect(stored.Username).To(Equal("alice"))
			Expect(stored.Progress).To(Equal(0))
		})

		It("keeps a caller provided id", func() {
			id := uuid.New()
			job, err := s.Job().Create(context.TODO(), model.Job{
				ID:    id,
				OrgID: "org-1",
				Kind:  "export.articles",
			})
			Expect(err).To(BeNil())
			Expect(job.ID).To(Equal(id))
		})

		It("persists the payload", func() {
			payload := map[string]any{"range": "2024-01"}
			job, err := s.Job().Create(context.TODO(), model.Job{
				OrgID:   "org-1",
				Kind:    "report.production",
				Payload: model.MakeJSONField(payload),
			})
			Expect(err).To(BeNil())

			stored, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(stored.Payload).NotTo(BeNil())
			Expect(stored.Payload.Data).To(HaveKeyWithValue("range", "2024-01"))
		})
	})

	Context("get", func() {
		It("returns not found for a missing job", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("filters by org", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "export.articles", "done"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-2", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(), store.NewJobQueryFilter().ByOrgID("org-1"), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})

		It("filters by status and kind", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "export.articles", "done"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "report.production", "done"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "report.production", "failed"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter().ByStatus("done").ByKind("report.production"), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
		})

		It("filters by ids", func() {
			firstID := uuid.NewString()
			secondID := uuid.NewString()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, firstID, "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, secondID, "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter().ByIDs([]string{firstID, secondID}), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})

		It("honors the limit option", func() {
			for i := 0; i < 3; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "org-1", "export.articles", "queued"))
				Expect(tx.Error).To(BeNil())
			}

			jobs, err := s.Job().List(context.TODO(), nil, store.NewJobQueryOptions().WithLimit(2))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})
	})

	Context("state transitions", func() {
		It("marks a job running", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id.String(), "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().MarkRunning(context.TODO(), id)).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))
			Expect(job.StartedAt).NotTo(BeNil())
			Expect(job.Error).To(BeNil())
		})

		It("marks a job done with its output reference", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id.String(), "org-1", "export.articles", "running"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().MarkDone(context.TODO(), id, store.JobOutput{
				Key:  "jobs/org-1/" + id.String() + "/articles.csv",
				Name: "articles.csv",
				Mime: "text/csv",
			})
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusDone))
			Expect(job.Progress).To(Equal(100))
			Expect(job.FinishedAt).NotTo(BeNil())
			Expect(job.OutputName).To(Equal("articles.csv"))
			Expect(job.HasArtifact()).To(BeTrue())
		})

		It("marks a job failed and clears the output fields", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobWithOutputStm, id.String(), "org-1", "export.articles", "running", "jobs/org-1/x/articles.csv", "articles.csv", "text/csv"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().MarkFailed(context.TODO(), id, "handler failed")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).NotTo(BeNil())
			Expect(*job.Error).To(Equal("handler failed"))
			Expect(job.OutputKey).To(BeEmpty())
			Expect(job.HasArtifact()).To(BeFalse())
		})

		It("clears the error of a retried attempt", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id.String(), "org-1", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().MarkFailed(context.TODO(), id, "first attempt failed")).To(BeNil())
			Expect(s.Job().MarkRunning(context.TODO(), id)).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))
			Expect(job.Error).To(BeNil())
		})

		It("returns not found when updating a missing job", func() {
			err := s.Job().MarkRunning(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("progress", func() {
		It("clamps progress into [0, 100]", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id.String(), "org-1", "export.articles", "running"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().UpdateProgress(context.TODO(), id, 150)).To(BeNil())
			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Progress).To(Equal(100))

			Expect(s.Job().UpdateProgress(context.TODO(), id, -10)).To(BeNil())
			job, err = s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Progress).To(Equal(0))
		})
	})

	Context("delete", func() {
		It("removes the job", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobWithUserStm, id.String(), "org-1", "alice", "export.articles", "done"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().Delete(context.TODO(), id)).To(BeNil())

			_, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("is idempotent", func() {
			Expect(s.Job().Delete(context.TODO(), uuid.New())).To(BeNil())
		})
	})
})
