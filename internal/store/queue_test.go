package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/internal/store/model"
)

const insertQueueItemStm = "INSERT INTO queue_items (created_at, job_id, org_id, kind, state, attempt, max_attempts, scheduled_at) VALUES (CURRENT_TIMESTAMP, '%s', '%s', '%s', '%s', %d, %d, '%s');"

var _ = Describe("queue item store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	insertItem := func(state string, attempt, maxAttempts int, scheduledAt time.Time) uuid.UUID {
		jobID := uuid.New()
		tx := gormdb.Exec(fmt.Sprintf(insertQueueItemStm,
			jobID.String(), "org-1", "export.articles", state, attempt, maxAttempts,
			scheduledAt.UTC().Format("2006-01-02 15:04:05")))
		Expect(tx.Error).To(BeNil())
		return jobID
	}

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
		gormdb.Exec("DELETE from queue_items;")
	})

	Context("enqueue", func() {
		It("stages an available item scheduled now", func() {
			jobID := uuid.New()
			item, err := s.Queue().Enqueue(context.TODO(), model.QueueItem{
				JobID: jobID,
				OrgID: "org-1",
				Kind:  "export.articles",
				Args:  []byte(`{"range":"2024-01"}`),
			})
			Expect(err).To(BeNil())
			Expect(item.ID).NotTo(BeZero())
			Expect(item.State).To(Equal(model.QueueStateAvailable))
			Expect(item.Attempt).To(Equal(0))
			Expect(item.ScheduledAt).NotTo(BeZero())
		})

		It("enforces a minimum attempt budget of one", func() {
			item, err := s.Queue().Enqueue(context.TODO(), model.QueueItem{
				JobID: uuid.New(),
				OrgID: "org-1",
				Kind:  "export.articles",
			})
			Expect(err).To(BeNil())
			Expect(item.MaxAttempts).To(Equal(1))
		})
	})

	Context("claim", func() {
		It("returns not found on an empty queue", func() {
			_, err := s.Queue().Claim(context.TODO())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("claims the oldest due item and increments its attempt", func() {
			first := insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Minute))
			insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Second))

			item, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())
			Expect(item.JobID).To(Equal(first))
			Expect(item.State).To(Equal(model.QueueStateRunning))
			Expect(item.Attempt).To(Equal(1))
			Expect(item.AttemptedAt).NotTo(BeNil())
		})

		It("never hands out the same item twice", func() {
			insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Minute))

			_, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Queue().Claim(context.TODO())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("skips items scheduled in the future", func() {
			insertItem(model.QueueStateRetryable, 1, 2, time.Now().Add(time.Hour))

			_, err := s.Queue().Claim(context.TODO())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("claims a due retryable item", func() {
			jobID := insertItem(model.QueueStateRetryable, 1, 2, time.Now().Add(-time.Minute))

			item, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())
			Expect(item.JobID).To(Equal(jobID))
			Expect(item.Attempt).To(Equal(2))
		})

		It("ignores completed and discarded items", func() {
			insertItem(model.QueueStateCompleted, 1, 2, time.Now().Add(-time.Minute))
			insertItem(model.QueueStateDiscarded, 2, 2, time.Now().Add(-time.Minute))

			_, err := s.Queue().Claim(context.TODO())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("state transitions", func() {
		It("completes a running item", func() {
			insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Minute))
			item, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())

			Expect(s.Queue().Complete(context.TODO(), item.ID)).To(BeNil())

			stored, err := s.Queue().Get(context.TODO(), item.ID)
			Expect(err).To(BeNil())
			Expect(stored.State).To(Equal(model.QueueStateCompleted))
			Expect(stored.FinishedAt).NotTo(BeNil())
		})

		It("re-schedules a failed item", func() {
			insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Minute))
			item, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())

			retryAt := time.Now().Add(30 * time.Second)
			Expect(s.Queue().Retry(context.TODO(), item.ID, "handler failed", retryAt)).To(BeNil())

			stored, err := s.Queue().Get(context.TODO(), item.ID)
			Expect(err).To(BeNil())
			Expect(stored.State).To(Equal(model.QueueStateRetryable))
			Expect(stored.LastError).To(Equal("handler failed"))
			Expect(stored.ScheduledAt.After(time.Now())).To(BeTrue())
		})

		It("retains a discarded item for inspection", func() {
			insertItem(model.QueueStateAvailable, 0, 1, time.Now().Add(-time.Minute))
			item, err := s.Queue().Claim(context.TODO())
			Expect(err).To(BeNil())

			Expect(s.Queue().Discard(context.TODO(), item.ID, "budget exhausted")).To(BeNil())

			discarded, err := s.Queue().ListDiscarded(context.TODO())
			Expect(err).To(BeNil())
			Expect(discarded).To(HaveLen(1))
			Expect(discarded[0].LastError).To(Equal("budget exhausted"))
		})

		It("returns not found when updating a missing item", func() {
			err := s.Queue().Complete(context.TODO(), 424242)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("depth", func() {
		It("counts the claimable items", func() {
			insertItem(model.QueueStateAvailable, 0, 2, time.Now().Add(-time.Minute))
			insertItem(model.QueueStateRetryable, 1, 2, time.Now().Add(time.Hour))
			insertItem(model.QueueStateCompleted, 1, 2, time.Now().Add(-time.Minute))
			insertItem(model.QueueStateRunning, 1, 2, time.Now().Add(-time.Minute))

			depth, err := s.Queue().Depth(context.TODO())
			Expect(err).To(BeNil())
			Expect(depth).To(Equal(int64(2)))
		})
	})

	Context("by job id", func() {
		It("returns the latest item of a job", func() {
			jobID := uuid.New()
			for i := 0; i < 2; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertQueueItemStm,
					jobID.String(), "org-1", "export.articles", model.QueueStateCompleted, 1, 2,
					time.Now().UTC().Format("2006-01-02 15:04:05")))
				Expect(tx.Error).To(BeNil())
			}

			item, err := s.Queue().ByJobID(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(item.JobID).To(Equal(jobID))

			var maxID int64
			Expect(gormdb.Raw("SELECT MAX(id) from queue_items;").Scan(&maxID).Error).To(BeNil())
			Expect(item.ID).To(Equal(maxID))
		})

		It("deletes every item of a job", func() {
			jobID := insertItem(model.QueueStateCompleted, 1, 2, time.Now())

			Expect(s.Queue().DeleteByJobID(context.TODO(), jobID)).To(BeNil())

			_, err := s.Queue().ByJobID(context.TODO(), jobID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
