package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/service"
	"github.com/fabworks/backoffice/internal/store"
)

type fakePrinter struct {
	destination string
	user        string
	jobName     string
	document    []byte
	err         error
}

func (p *fakePrinter) PrintJob(_ context.Context, destination, user, jobName string, document []byte) error {
	p.destination = destination
	p.user = user
	p.jobName = jobName
	p.document = document
	return p.err
}

var _ = Describe("print service", Ordered, func() {
	var (
		s       store.Store
		gormdb  *gorm.DB
		objects *objstore.MemoryStore
		printer *fakePrinter
	)

	newService := func(defaultDestination string) *service.PrintService {
		q := queue.New(s.Queue(), queue.Config{MaxAttempts: 2, Backoff: queue.NewConstant(30 * time.Second)})
		return service.NewPrintService(service.NewJobService(s, q, objects), objects, printer, defaultDestination)
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
		printer = &fakePrinter{}
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from jobs;")
		gormdb.Exec("DELETE from queue_items;")
	})

	AfterAll(func() {
		s.Close()
	})

	It("submits the pdf artifact to the requested destination", func() {
		id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")
		key := fmt.Sprintf("jobs/org-1/%s/report.pdf", id)
		Expect(objects.Put(context.TODO(), key, strings.NewReader("%PDF-1.4"), 8, "application/pdf", nil)).To(BeNil())

		Expect(newService("office-a4").Print(context.TODO(), id, "warehouse", adminUser)).To(BeNil())

		Expect(printer.destination).To(Equal("warehouse"))
		Expect(printer.user).To(Equal("admin"))
		Expect(printer.jobName).To(Equal("report.pdf"))
		Expect(string(printer.document)).To(Equal("%PDF-1.4"))
	})

	It("falls back to the configured default destination", func() {
		id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")
		key := fmt.Sprintf("jobs/org-1/%s/report.pdf", id)
		Expect(objects.Put(context.TODO(), key, strings.NewReader("%PDF-1.4"), 8, "application/pdf", nil)).To(BeNil())

		Expect(newService("office-a4").Print(context.TODO(), id, "", adminUser)).To(BeNil())
		Expect(printer.destination).To(Equal("office-a4"))
	})

	It("rejects the request when no destination can be resolved", func() {
		id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")
		key := fmt.Sprintf("jobs/org-1/%s/report.pdf", id)
		Expect(objects.Put(context.TODO(), key, strings.NewReader("%PDF-1.4"), 8, "application/pdf", nil)).To(BeNil())

		err := newService("").Print(context.TODO(), id, "", adminUser)
		var noDestination *service.ErrNoPrintDestination
		Expect(errors.As(err, &noDestination)).To(BeTrue())
	})

	It("refuses to print a non-pdf artifact", func() {
		id := insertDoneJob(gormdb, adminUser, "articles.csv", "text/csv")

		err := newService("office-a4").Print(context.TODO(), id, "", adminUser)
		var noArtifact *service.ErrNoArtifact
		Expect(errors.As(err, &noArtifact)).To(BeTrue())
	})

	It("flags a purged artifact", func() {
		id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")

		err := newService("office-a4").Print(context.TODO(), id, "", adminUser)
		var unavailable *service.ErrArtifactUnavailable
		Expect(errors.As(err, &unavailable)).To(BeTrue())
	})

	It("wraps a print transport failure", func() {
		id := insertDoneJob(gormdb, adminUser, "report.pdf", "application/pdf")
		key := fmt.Sprintf("jobs/org-1/%s/report.pdf", id)
		Expect(objects.Put(context.TODO(), key, strings.NewReader("%PDF-1.4"), 8, "application/pdf", nil)).To(BeNil())

		printer.err = errors.New("server unreachable")

		err := newService("office-a4").Print(context.TODO(), id, "", adminUser)
		var submission *service.ErrPrintSubmission
		Expect(errors.As(err, &submission)).To(BeTrue())
	})

	It("refuses to print a foreign job", func() {
		id := insertDoneJob(gormdb, otherUser, "report.pdf", "application/pdf")

		err := newService("office-a4").Print(context.TODO(), id, "", adminUser)
		var forbidden *service.ErrJobAccessForbidden
		Expect(errors.As(err, &forbidden)).To(BeTrue())
	})
})
