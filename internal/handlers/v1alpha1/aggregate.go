package v1alpha1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	api "github.com/fabworks/backoffice/api/v1alpha1"
	"github.com/fabworks/backoffice/internal/auth"
)

func (h *ServiceHandler) MergePDF(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	body, ok := h.decodeIds(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="merged.pdf"`)

	if err := h.aggregateSrv.MergePDF(r.Context(), body.Ids, user, w); err != nil {
		// Headers may already be on the wire; log and bail if so.
		zap.S().Named("aggregate_handler").Errorf("merge-pdf failed: %v", err)
		serviceError(w, r, err)
		return
	}
}

func (h *ServiceHandler) Zip(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	body, ok := h.decodeIds(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="artifacts.zip"`)

	if err := h.aggregateSrv.Zip(r.Context(), body.Ids, user, w); err != nil {
		zap.S().Named("aggregate_handler").Errorf("zip failed: %v", err)
		serviceError(w, r, err)
		return
	}
}

func (h *ServiceHandler) PrintJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := jobIDParam(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var body api.PrintJobRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			renderError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
			return
		}
		if err := h.validate.Struct(body); err != nil {
			renderError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}

	if err := h.printSrv.Print(r.Context(), id, body.Destination, user); err != nil {
		serviceError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

func (h *ServiceHandler) decodeIds(w http.ResponseWriter, r *http.Request) (api.JobIdsRequest, bool) {
	var body api.JobIdsRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
		return body, false
	}
	if err := h.validate.Struct(body); err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return body, false
	}
	return body, true
}
