package v1alpha1

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/fabworks/backoffice/api/v1alpha1"
	"github.com/fabworks/backoffice/internal/auth"
	"github.com/fabworks/backoffice/internal/store/model"
)

func (h *ServiceHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	var body api.EnqueueJobRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	job, err := h.jobSrv.Enqueue(r.Context(), body.Type, body.Payload, user)
	if err != nil {
		zap.S().Named("job_handler").Errorf("failed to enqueue job: %v", err)
		serviceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.EnqueueJobReply{JobId: job.ID, Status: api.JobStatus(job.Status)})
}

func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	statusFilter, ok := statusFilterParam(r)
	if !ok {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status filter %q", r.URL.Query().Get("status")))
		return
	}

	jobs, err := h.jobSrv.List(r.Context(), user, statusFilter)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	render.JSON(w, r, jobsToApi(jobs))
}

func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobSrv.Get(r.Context(), id, user)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	render.JSON(w, r, jobToApi(*job))
}

func (h *ServiceHandler) DownloadJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	object, job, err := h.jobSrv.Download(r.Context(), id, user)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", job.OutputMime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.OutputName))
	if _, err := io.Copy(w, object); err != nil {
		zap.S().Named("job_handler").Warnf("streaming artifact of job %s aborted: %v", job.ID, err)
	}
}

func (h *ServiceHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.jobSrv.Delete(r.Context(), id, user); err != nil {
		serviceError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

func jobIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.New("invalid job id")
	}
	return id, nil
}

func statusFilterParam(r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", true
	}
	status, ok := api.StringToJobStatus(raw)
	return string(status), ok
}

func jobToApi(job model.Job) api.Job {
	out := api.Job{
		Id:         job.ID,
		Kind:       job.Kind,
		Status:     api.JobStatus(job.Status),
		Progress:   job.Progress,
		OutputName: job.OutputName,
		OutputMime: job.OutputMime,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Payload != nil {
		out.Payload = job.Payload.Data
	}
	return out
}

func jobsToApi(jobs model.JobList) api.JobList {
	out := make(api.JobList, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobToApi(job))
	}
	return out
}
