package v1alpha1

import (
	"net/http"

	"github.com/kubev2v/stack-migration/internal/service"
)

// (GET /api/v1/status)
func (h *ServiceHandler) GetStackStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.migrationSrv.StackStatus(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, status)
}

// (PUT /api/v1/status)
func (h *ServiceHandler) SetStackStatus(w http.ResponseWriter, r *http.Request) {
	var form service.StackStatusRequest
	if !h.decode(w, r, &form) {
		return
	}

	status, err := h.migrationSrv.SetStackStatus(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, status)
}
