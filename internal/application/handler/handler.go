// Package handler wires the application, response, and resubmission
// endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"visaflow/internal/application/models"
	"visaflow/internal/application/service"
	"visaflow/internal/catalog"
	"visaflow/internal/uploads"
	"visaflow/internal/visibility"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/httputil"
	"visaflow/pkg/requestcontext"
)

// maxUploadMemory bounds the multipart parse buffer; larger files spill to
// temp files.
const maxUploadMemory = 10 << 20

// Service defines the application workflow operations the handler needs.
type Service interface {
	CreateApplication(ctx context.Context, productID domain.ProductID, customerID domain.CustomerID, email string) (*models.Application, error)
	GetApplication(ctx context.Context, id domain.ApplicationID) (*models.Application, error)
	AddTraveler(ctx context.Context, id domain.ApplicationID, fullName string) (*models.Traveler, error)
	DeleteApplication(ctx context.Context, id domain.ApplicationID, adminRemoval bool) error
	ListFieldsWithResponses(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, mode visibility.ViewMode) ([]visibility.Field, error)
	SubmitResponses(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, answers map[domain.FieldKey]service.AnswerInput) (*service.SubmissionResult, error)
	RequestResubmission(ctx context.Context, id domain.ApplicationID, inputs []service.ResubmissionInput, actor string) ([]models.ResubmissionRequest, error)
	ActiveResubmissionRequests(ctx context.Context, id domain.ApplicationID) ([]models.ResubmissionRequest, error)
	UpdateStatus(ctx context.Context, id domain.ApplicationID, target models.Status, actor string) (*models.Application, error)
	AddAdHocFields(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, defs []catalog.FieldDefinition) ([]models.AdHocField, error)
	RemoveAdHocField(ctx context.Context, id domain.ApplicationID, fieldID int64) error
	ResolveFieldDefinition(ctx context.Context, id domain.ApplicationID, key domain.FieldKey) (catalog.FieldDefinition, error)
}

// Handler wires application endpoints to the workflow service.
type Handler struct {
	service Service
	files   uploads.Store
	logger  *slog.Logger
}

// New constructs an application handler.
func New(service Service, files uploads.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, files: files, logger: logger}
}

// Register mounts the applicant-facing endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.HandleCreateApplication)
	r.Get("/applications/{applicationID}", h.HandleGetApplication)
	r.Delete("/applications/{applicationID}", h.HandleDeleteApplication)
	r.Post("/applications/{applicationID}/travelers", h.HandleAddTraveler)
	r.Get("/applications/{applicationID}/fields", h.HandleListFields)
	r.Post("/applications/{applicationID}/responses", h.HandleSubmitResponses)
	r.Post("/applications/{applicationID}/uploads", h.HandleUpload)
}

// RegisterAdmin mounts the administrative endpoints. Callers put these behind
// the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/applications/{applicationID}/resubmission", h.HandleRequestResubmission)
	r.Get("/admin/applications/{applicationID}/resubmission", h.HandleActiveResubmission)
	r.Post("/admin/applications/{applicationID}/adhoc-fields", h.HandleAddAdHocFields)
	r.Delete("/admin/applications/{applicationID}/adhoc-fields/{fieldID}", h.HandleRemoveAdHocField)
	r.Patch("/admin/applications/{applicationID}/status", h.HandleUpdateStatus)
	r.Delete("/admin/applications/{applicationID}", h.HandleAdminDeleteApplication)
}

// HandleCreateApplication handles POST /applications.
func (h *Handler) HandleCreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[createApplicationRequest](w, r)
	if !ok {
		return
	}
	productID, err := domain.ParseProductID(req.ProductID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	customerID, err := domain.ParseCustomerID(req.CustomerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.service.CreateApplication(ctx, productID, customerID, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application created",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", app.ID.String(),
		"number", app.Number,
	)
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleGetApplication handles GET /applications/{applicationID}.
func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.service.GetApplication(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleDeleteApplication handles DELETE /applications/{applicationID}.
// Draft applications only; administrative removal uses the admin route.
func (h *Handler) HandleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	h.deleteApplication(w, r, false)
}

// HandleAdminDeleteApplication handles DELETE /admin/applications/{applicationID}.
func (h *Handler) HandleAdminDeleteApplication(w http.ResponseWriter, r *http.Request) {
	h.deleteApplication(w, r, true)
}

func (h *Handler) deleteApplication(w http.ResponseWriter, r *http.Request, adminRemoval bool) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteApplication(ctx, appID, adminRemoval); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application deleted",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"admin_removal", adminRemoval,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddTraveler handles POST /applications/{applicationID}/travelers.
func (h *Handler) HandleAddTraveler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[addTravelerRequest](w, r)
	if !ok {
		return
	}

	traveler, err := h.service.AddTraveler(ctx, appID, req.FullName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, traveler)
}

// HandleListFields handles GET /applications/{applicationID}/fields.
// Query: traveler_id (optional scope), view (user|admin).
func (h *Handler) HandleListFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	travelerID, err := parseTravelerQuery(r.URL.Query().Get("traveler_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	mode, err := visibility.ParseViewMode(r.URL.Query().Get("view"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid view mode"))
		return
	}

	fields, err := h.service.ListFieldsWithResponses(ctx, appID, travelerID, mode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// HandleSubmitResponses handles POST /applications/{applicationID}/responses.
func (h *Handler) HandleSubmitResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[submitResponsesRequest](w, r)
	if !ok {
		return
	}
	travelerID := travelerIDRef(req.TravelerID)
	if err := validateTravelerRef(travelerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	answers, err := req.answers()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.SubmitResponses(ctx, appID, travelerID, answers)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "responses submitted",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"accepted", len(result.AcceptedKeys),
		"filtered", len(result.FilteredKeys),
		"status", string(result.Application.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":          result.Application.Status,
		"accepted_keys":   result.AcceptedKeys,
		"filtered_keys":   result.FilteredKeys,
		"closed_requests": result.ClosedRequests,
		"status_advanced": result.StatusAdvanced,
	})
}

// HandleUpload handles POST /applications/{applicationID}/uploads: a
// multipart form with field_id and file. The file is validated against the
// field's constraints and stored; the durable reference comes back for the
// client to attach to its response submission.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	key, err := domain.ParseFieldKey(r.FormValue("field_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	def, err := h.service.ResolveFieldDefinition(ctx, appID, key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if def.Type != catalog.FieldTypeUpload {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "field %s does not accept files", key))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()

	ref, err := h.files.Upload(ctx, appID, def, header.Filename, header.Size,
		header.Header.Get("Content-Type"), file)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "answer file stored",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"field", key.String(),
		"size", ref.Size,
	)
	httputil.WriteJSON(w, http.StatusCreated, ref)
}

// HandleRequestResubmission handles POST /admin/applications/{applicationID}/resubmission.
func (h *Handler) HandleRequestResubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[requestResubmissionRequest](w, r)
	if !ok {
		return
	}

	opened, err := h.service.RequestResubmission(ctx, appID, req.inputs(), requestcontext.AdminSubject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "resubmission requested",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"requests", len(opened),
	)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"requests": opened})
}

// HandleActiveResubmission handles GET /admin/applications/{applicationID}/resubmission.
func (h *Handler) HandleActiveResubmission(w http.ResponseWriter, r *http.Request) {
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, err := h.service.ActiveResubmissionRequests(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": active})
}

// HandleAddAdHocFields handles POST /admin/applications/{applicationID}/adhoc-fields.
func (h *Handler) HandleAddAdHocFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[adhocFieldsRequest](w, r)
	if !ok {
		return
	}
	travelerID := travelerIDRef(req.TravelerID)
	if err := validateTravelerRef(travelerID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	minted, err := h.service.AddAdHocFields(ctx, appID, travelerID, definitions(req.Fields))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"fields": minted})
}

// HandleRemoveAdHocField handles DELETE /admin/applications/{applicationID}/adhoc-fields/{fieldID}.
func (h *Handler) HandleRemoveAdHocField(w http.ResponseWriter, r *http.Request) {
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil || fieldID >= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ad hoc field id must be a negative integer"))
		return
	}

	if err := h.service.RemoveAdHocField(r.Context(), appID, fieldID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateStatus handles PATCH /admin/applications/{applicationID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[updateStatusRequest](w, r)
	if !ok {
		return
	}
	target, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.service.UpdateStatus(ctx, appID, target, requestcontext.AdminSubject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application status updated",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"status", string(app.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, app)
}
