// Package handler wires the traveler passport directory endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
	"visaflow/pkg/platform/httputil"
	"visaflow/pkg/requestcontext"
)

// Service defines the directory operations the handler needs.
type Service interface {
	GetPassport(ctx context.Context, id domain.ApplicationID, travelerID domain.TravelerID) (*models.PassportDetails, error)
	SetPassport(ctx context.Context, id domain.ApplicationID, travelerID domain.TravelerID, details models.PassportDetails) error
}

// Handler wires passport endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a directory handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the passport read/write endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/travelers/{travelerID}/passport", h.HandleGetPassport)
	r.Put("/applications/{applicationID}/travelers/{travelerID}/passport", h.HandleSetPassport)
}

// HandleGetPassport handles GET /applications/{applicationID}/travelers/{travelerID}/passport.
func (h *Handler) HandleGetPassport(w http.ResponseWriter, r *http.Request) {
	appID, travelerID, err := scopeParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	details, err := h.service.GetPassport(r.Context(), appID, travelerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleSetPassport handles PUT /applications/{applicationID}/travelers/{travelerID}/passport.
// Attributes are mirrored into the reserved pseudo-field answers in the same
// aggregate transaction.
func (h *Handler) HandleSetPassport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, travelerID, err := scopeParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	details, ok := httputil.Decode[models.PassportDetails](w, r)
	if !ok {
		return
	}
	if err := h.service.SetPassport(ctx, appID, travelerID, details); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "passport attributes updated",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"traveler_id", travelerID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, details)
}

func scopeParams(r *http.Request) (domain.ApplicationID, domain.TravelerID, error) {
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		return domain.ApplicationID{}, 0, err
	}
	travelerID, err := domain.ParseTravelerID(chi.URLParam(r, "travelerID"))
	if err != nil {
		return domain.ApplicationID{}, 0, err
	}
	return appID, travelerID, nil
}
