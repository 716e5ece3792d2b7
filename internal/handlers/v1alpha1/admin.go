package v1alpha1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/fabworks/backoffice/internal/auth"
)

// requireAdmin guards the administrative surface. The denial is generic:
// it does not disclose whether the target exists.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustHaveUser(r.Context())
		if !user.Admin {
			renderError(w, r, http.StatusForbidden, "not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ServiceHandler) ListAllJobs(w http.ResponseWriter, r *http.Request) {
	statusFilter, ok := statusFilterParam(r)
	if !ok {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status filter %q", r.URL.Query().Get("status")))
		return
	}

	jobs, err := h.jobSrv.ListAll(r.Context(), statusFilter)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	render.JSON(w, r, jobsToApi(jobs))
}

func (h *ServiceHandler) GetJobAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobSrv.GetAdmin(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	render.JSON(w, r, jobToApi(*job))
}

func (h *ServiceHandler) DeleteJobAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.jobSrv.DeleteAdmin(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}

	render.NoContent(w, r)
}
