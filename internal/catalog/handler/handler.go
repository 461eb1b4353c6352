// Package handler wires the product field catalog endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/httputil"
	"visaflow/pkg/requestcontext"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	CreateProduct(ctx context.Context, name string) (*catalog.Product, error)
	AddField(ctx context.Context, productID domain.ProductID, def catalog.FieldDefinition) (*catalog.FieldDefinition, error)
	UpdateField(ctx context.Context, productID domain.ProductID, fieldID int64, patch catalog.FieldPatch) (*catalog.FieldDefinition, error)
	DeleteField(ctx context.Context, productID domain.ProductID, fieldID int64) error
	ListFields(ctx context.Context, productID domain.ProductID, includeInactive bool) ([]catalog.FieldDefinition, error)
}

// Handler wires catalog endpoints to the catalog service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a catalog handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/products/{productID}/fields", h.HandleListFields)
}

// RegisterAdmin mounts the catalog management endpoints. Callers put these
// behind the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/products", h.HandleCreateProduct)
	r.Post("/admin/products/{productID}/fields", h.HandleAddField)
	r.Patch("/admin/products/{productID}/fields/{fieldID}", h.HandleUpdateField)
	r.Delete("/admin/products/{productID}/fields/{fieldID}", h.HandleDeleteField)
}

// HandleCreateProduct handles POST /admin/products.
func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[createProductRequest](w, r)
	if !ok {
		return
	}

	product, err := h.service.CreateProduct(ctx, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "product created",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", product.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, product)
}

// HandleAddField handles POST /admin/products/{productID}/fields.
func (h *Handler) HandleAddField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[fieldRequest](w, r)
	if !ok {
		return
	}

	added, err := h.service.AddField(ctx, productID, req.Definition())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "catalog field added",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", productID.String(),
		"field_id", added.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, added)
}

// HandleUpdateField handles PATCH /admin/products/{productID}/fields/{fieldID}.
func (h *Handler) HandleUpdateField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, fieldID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[fieldPatchRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateField(ctx, productID, fieldID, req.Patch())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDeleteField handles DELETE /admin/products/{productID}/fields/{fieldID}.
func (h *Handler) HandleDeleteField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, fieldID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteField(ctx, productID, fieldID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "catalog field deleted",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", productID.String(),
		"field_id", fieldID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListFields handles GET /products/{productID}/fields. Inactive
// definitions are included with ?include_inactive=true.
func (h *Handler) HandleListFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	fields, err := h.service.ListFields(ctx, productID, includeInactive)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func pathIDs(r *http.Request) (domain.ProductID, int64, error) {
	productID, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		return domain.ProductID{}, 0, err
	}
	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil || fieldID <= 0 {
		return domain.ProductID{}, 0, dErrors.New(dErrors.CodeInvalidInput, "field id must be a positive integer")
	}
	return productID, fieldID, nil
}
