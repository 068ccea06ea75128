package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/kubev2v/stack-migration/internal/handlers/validator"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/service"
	"go.uber.org/zap"
)

type ServiceHandler struct {
	migrationSrv *service.MigrationService
	validator    *validator.Validator
}

func NewServiceHandler(migrationService *service.MigrationService) *ServiceHandler {
	v := validator.NewValidator().
		Register(validator.NewMigrationValidationRules()...).
		Register(validator.NewStatusValidationRules()...)
	return &ServiceHandler{
		migrationSrv: migrationService,
		validator:    v,
	}
}

// Routes mounts the migration and stack status endpoints on router.
func (h *ServiceHandler) Routes(router chi.Router) {
	router.Route("/api/v1/migration", func(r chi.Router) {
		r.Post("/backup", h.BackupType)
		r.Post("/restore", h.RestoreType)
		r.Post("/counts", h.TypeCounts)
		r.Post("/checksum/range", h.RangeChecksum)
		r.Post("/checksum/type", h.TypeChecksum)
		r.Post("/checksum/batch", h.BatchChecksums)
		r.Post("/ranges", h.CalculateOptimalRanges)
		r.Get("/types", h.ListTypes)
		r.Get("/types/{type}/secondary", h.ListSecondaryTypes)
	})
	router.Get("/api/v1/status", h.GetStackStatus)
	router.Put("/api/v1/status", h.SetStackStatus)
}

type ErrorReply struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

// decode reads the json body into form and validates it. The error is
// already rendered when decode returns false.
func (h *ServiceHandler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := render.DecodeJSON(r.Body, form); err != nil {
		h.renderError(w, r, service.NewErrInvalidRequest("malformed request body: %s", err))
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderError(w, r, err)
		return false
	}
	return true
}

func (h *ServiceHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.S().Named("migration_handler").Errorw("request failed", "path", r.URL.Path, "error", err)
	}
	_ = render.Render(w, r, &ErrorReply{Status: status, Message: err.Error()})
}

func errorStatus(err error) int {
	var (
		errForm        *validator.ErrInvalidForm
		errInvalid     *service.ErrInvalidRequest
		errUnknownType *service.ErrUnknownRecordType
		errNotFound    *service.ErrResourceNotFound
		errNotReadOnly *service.ErrStackNotReadOnly
	)
	switch {
	case errors.As(err, &errForm), errors.As(err, &errInvalid), errors.Is(err, migration.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &errUnknownType), errors.As(err, &errNotFound):
		return http.StatusNotFound
	case errors.As(err, &errNotReadOnly):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func renderJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}
