package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/service"
	"github.com/fabworks/backoffice/internal/store"
)

var _ = Describe("aggregate service", Ordered, func() {
	var (
		s       store.Store
		gormdb  *gorm.DB
		objects *objstore.MemoryStore
		srv     *service.AggregateService
	)

	putArtifact := func(orgID string, id uuid.UUID, name, content string) {
		key := fmt.Sprintf("jobs/%s/%s/%s", orgID, id, name)
		Expect(objects.Put(context.TODO(), key, strings.NewReader(content), int64(len(content)), "application/octet-stream", nil)).To(BeNil())
	}

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	BeforeEach(func() {
		objects = objstore.NewMemoryStore()
		q := queue.New(s.Queue(), queue.Config{MaxAttempts: 2, Backoff: queue.NewConstant(30 * time.Second)})
		srv = service.NewAggregateService(service.NewJobService(s, q, objects), objects)
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from jobs;")
		gormdb.Exec("DELETE from queue_items;")
	})

	AfterAll(func() {
		s.Close()
	})

	Context("merge pdf", func() {
		It("rejects an id list without any qualifying job", func() {
			var buf bytes.Buffer
			err := srv.MergePDF(context.TODO(), []uuid.UUID{uuid.New()}, adminUser, &buf)

			var noQualifying *service.ErrNoQualifyingJobs
			Expect(errors.As(err, &noQualifying)).To(BeTrue())
			Expect(buf.Len()).To(BeZero())
		})

		It("excludes non-pdf artifacts from the candidate set", func() {
			id := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")
			putArtifact("org-1", id, "articles.csv", "number,description\n")

			var buf bytes.Buffer
			err := srv.MergePDF(context.TODO(), []uuid.UUID{id}, adminUser, &buf)

			var noQualifying *service.ErrNoQualifyingJobs
			Expect(errors.As(err, &noQualifying)).To(BeTrue())
		})

		It("excludes jobs of other organizations", func() {
			id := insertDoneJob(gormdb, otherUser, "report.pdf", "application/pdf")
			putArtifact("org-2", id, "report.pdf", "%PDF-1.4")

			var buf bytes.Buffer
			err := srv.MergePDF(context.TODO(), []uuid.UUID{id}, adminUser, &buf)

			var noQualifying *service.ErrNoQualifyingJobs
			Expect(errors.As(err, &noQualifying)).To(BeTrue())
		})

		It("fails cleanly when an artifact is missing from storage", func() {
			id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")

			var buf bytes.Buffer
			err := srv.MergePDF(context.TODO(), []uuid.UUID{id}, adminUser, &buf)
			Expect(err).NotTo(BeNil())
			Expect(buf.Len()).To(BeZero())
		})
	})

	Context("zip", func() {
		It("streams an archive with one entry per qualifying job", func() {
			first := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")
			putArtifact("org-1", first, "articles.csv", "number,description\n")
			second := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")
			putArtifact("org-1", second, "report.pdf", "%PDF-1.4")

			var buf bytes.Buffer
			Expect(srv.Zip(context.TODO(), []uuid.UUID{first, second}, adminUser, &buf)).To(BeNil())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).To(BeNil())
			Expect(zr.File).To(HaveLen(2))
			Expect(zr.File[0].Name).To(Equal("articles.csv"))
			Expect(zr.File[1].Name).To(Equal("report.pdf"))

			entry, err := zr.File[0].Open()
			Expect(err).To(BeNil())
			defer entry.Close()
			content, err := io.ReadAll(entry)
			Expect(err).To(BeNil())
			Expect(string(content)).To(Equal("number,description\n"))
		})

		It("deduplicates repeated output names", func() {
			first := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")
			putArtifact("org-1", first, "articles.csv", "first\n")
			second := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")
			putArtifact("org-1", second, "articles.csv", "second\n")

			var buf bytes.Buffer
			Expect(srv.Zip(context.TODO(), []uuid.UUID{first, second}, adminUser, &buf)).To(BeNil())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).To(BeNil())
			Expect(zr.File).To(HaveLen(2))
			Expect(zr.File[0].Name).To(Equal("articles.csv"))
			Expect(zr.File[1].Name).To(Equal("articles-2.csv"))
		})

		It("silently drops unfinished jobs", func() {
			done := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")
			putArtifact("org-1", done, "articles.csv", "rows\n")

			queued := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, queued.String(), "org-1", "admin", "export.articles", "queued"))
			Expect(tx.Error).To(BeNil())

			var buf bytes.Buffer
			Expect(srv.Zip(context.TODO(), []uuid.UUID{done, queued}, adminUser, &buf)).To(BeNil())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).To(BeNil())
			Expect(zr.File).To(HaveLen(1))
		})

		It("rejects an id list without any qualifying job", func() {
			var buf bytes.Buffer
			err := srv.Zip(context.TODO(), []uuid.UUID{uuid.New()}, adminUser, &buf)

			var noQualifying *service.ErrNoQualifyingJobs
			Expect(errors.As(err, &noQualifying)).To(BeTrue())
		})
	})
})
