package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store/model"
)

type TypesReply struct {
	Types        []model.RecordType `json:"types"`
	PrimaryTypes []model.RecordType `json:"primaryTypes"`
}

type SecondaryTypesReply struct {
	Type           model.RecordType   `json:"type"`
	SecondaryTypes []model.RecordType `json:"secondaryTypes"`
}

// (POST /api/v1/migration/backup)
func (h *ServiceHandler) BackupType(w http.ResponseWriter, r *http.Request) {
	var form service.BackupTypeRangeRequest
	if !h.decode(w, r, &form) {
		return
	}
	form.AliasType = normalizeAlias(form.AliasType)

	resp, err := h.migrationSrv.Backup(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusCreated, resp)
}

// (POST /api/v1/migration/restore)
func (h *ServiceHandler) RestoreType(w http.ResponseWriter, r *http.Request) {
	var form service.RestoreTypeRequest
	if !h.decode(w, r, &form) {
		return
	}
	form.AliasType = normalizeAlias(form.AliasType)

	resp, err := h.migrationSrv.Restore(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (POST /api/v1/migration/counts)
func (h *ServiceHandler) TypeCounts(w http.ResponseWriter, r *http.Request) {
	var form service.TypeCountsRequest
	if !h.decode(w, r, &form) {
		return
	}

	resp, err := h.migrationSrv.TypeCounts(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (POST /api/v1/migration/checksum/range)
func (h *ServiceHandler) RangeChecksum(w http.ResponseWriter, r *http.Request) {
	var form service.RangeChecksumRequest
	if !h.decode(w, r, &form) {
		return
	}

	resp, err := h.migrationSrv.RangeChecksum(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (POST /api/v1/migration/checksum/type)
func (h *ServiceHandler) TypeChecksum(w http.ResponseWriter, r *http.Request) {
	var form service.TypeChecksumRequest
	if !h.decode(w, r, &form) {
		return
	}

	resp, err := h.migrationSrv.TypeChecksum(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (POST /api/v1/migration/checksum/batch)
func (h *ServiceHandler) BatchChecksums(w http.ResponseWriter, r *http.Request) {
	var form service.BatchChecksumRequest
	if !h.decode(w, r, &form) {
		return
	}

	resp, err := h.migrationSrv.BatchChecksums(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (POST /api/v1/migration/ranges)
func (h *ServiceHandler) CalculateOptimalRanges(w http.ResponseWriter, r *http.Request) {
	var form service.CalculateOptimalRangeRequest
	if !h.decode(w, r, &form) {
		return
	}

	resp, err := h.migrationSrv.CalculateOptimalRanges(r.Context(), &form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// (GET /api/v1/migration/types)
func (h *ServiceHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, TypesReply{
		Types:        h.migrationSrv.Types(),
		PrimaryTypes: h.migrationSrv.PrimaryTypes(),
	})
}

// (GET /api/v1/migration/types/{type}/secondary)
func (h *ServiceHandler) ListSecondaryTypes(w http.ResponseWriter, r *http.Request) {
	t := model.RecordType(chi.URLParam(r, "type"))
	secondary, err := h.migrationSrv.SecondaryTypesOf(t)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if secondary == nil {
		secondary = []model.RecordType{}
	}
	renderJSON(w, r, http.StatusOK, SecondaryTypesReply{Type: t, SecondaryTypes: secondary})
}

// normalizeAlias maps accepted spellings, legacy ones included, to the
// canonical mode. The validator has already rejected unknown modes.
func normalizeAlias(mode migration.AliasMode) migration.AliasMode {
	parsed, err := migration.ParseAliasMode(string(mode))
	if err != nil {
		return mode
	}
	return parsed
}
