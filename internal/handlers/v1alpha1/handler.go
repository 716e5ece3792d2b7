// Package v1alpha1 exposes the job engine over HTTP.
package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	api "github.com/fabworks/backoffice/api/v1alpha1"
	"github.com/fabworks/backoffice/internal/service"
	"github.com/fabworks/backoffice/pkg/requestid"
)

type ServiceHandler struct {
	jobSrv       *service.JobService
	aggregateSrv *service.AggregateService
	printSrv     *service.PrintService
	validate     *validator.Validate
}

func NewServiceHandler(jobSrv *service.JobService, aggregateSrv *service.AggregateService, printSrv *service.PrintService) *ServiceHandler {
	return &ServiceHandler{
		jobSrv:       jobSrv,
		aggregateSrv: aggregateSrv,
		printSrv:     printSrv,
		validate:     validator.New(),
	}
}

func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.EnqueueJob)
		r.Get("/", h.ListJobs)
		r.Post("/merge-pdf", h.MergePDF)
		r.Post("/zip", h.Zip)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Delete("/", h.DeleteJob)
			r.Get("/download", h.DownloadJob)
			r.Post("/print", h.PrintJob)
		})
	})
	r.Route("/admin/jobs", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/", h.ListAllJobs)
		r.Get("/{id}", h.GetJobAdmin)
		r.Delete("/{id}", h.DeleteJobAdmin)
	})
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message, RequestId: requestid.FromContextPtr(r.Context())})
}

// serviceError maps typed service errors onto HTTP status codes. The 403
// and 404 bodies carry the denial message only, never job data.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch err.(type) {
	case *service.ErrJobNotFound, *service.ErrArtifactUnavailable, *service.ErrNoArtifact:
		renderError(w, r, http.StatusNotFound, err.Error())
	case *service.ErrJobAccessForbidden:
		renderError(w, r, http.StatusForbidden, err.Error())
	case *service.ErrNoQualifyingJobs, *service.ErrNoPrintDestination:
		renderError(w, r, http.StatusBadRequest, err.Error())
	case *service.ErrPrintSubmission:
		renderError(w, r, http.StatusBadGateway, err.Error())
	default:
		renderError(w, r, http.StatusInternalServerError, err.Error())
	}
}
