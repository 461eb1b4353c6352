package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// PostgresStore persists products in PostgreSQL. The field catalog is stored
// as a JSONB document next to the max_field_id high-water mark so both are
// updated in the same row, in the same transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed product store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createProductSQL = `
INSERT INTO visa_products (id, name, fields, max_field_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PostgresStore) Create(ctx context.Context, product *Product) error {
	fields, err := json.Marshal(product.Fields)
	if err != nil {
		return fmt.Errorf("marshal catalog fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, createProductSQL,
		uuid.UUID(product.ID), product.Name, fields, product.MaxFieldID,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

const getProductSQL = `
SELECT id, name, fields, max_field_id, created_at, updated_at
FROM visa_products WHERE id = $1`

func (s *PostgresStore) FindByID(ctx context.Context, productID domain.ProductID) (*Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, getProductSQL, uuid.UUID(productID)))
}

func (s *PostgresStore) Execute(ctx context.Context, productID domain.ProductID, fn func(*Product) error) (*Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin product tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	product, err := scanProduct(tx.QueryRowContext(ctx, getProductSQL+" FOR UPDATE", uuid.UUID(productID)))
	if err != nil {
		return nil, err
	}

	if err := fn(product); err != nil {
		return nil, err
	}

	fields, err := json.Marshal(product.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog fields: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE visa_products SET name = $2, fields = $3, max_field_id = $4, updated_at = $5 WHERE id = $1`,
		uuid.UUID(product.ID), product.Name, fields, product.MaxFieldID, product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit product tx: %w", err)
	}
	return product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		id        uuid.UUID
		name      string
		fieldsRaw []byte
		maxID     int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &fieldsRaw, &maxID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	var fields []FieldDefinition
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal catalog fields: %w", err)
		}
	}
	return &Product{
		ID:         domain.ProductID(id),
		Name:       name,
		Fields:     fields,
		MaxFieldID: maxID,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}
