package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// PostgresStore persists application aggregates in PostgreSQL. Variable-shape
// state (ad hoc registry, request list, answer maps, status history) lives in
// JSONB columns on the application row; travelers are child rows keyed by
// (application_id, id). Execute locks the application row FOR UPDATE, which
// serializes all aggregate mutations including traveler answer writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createApplicationSQL = `
INSERT INTO applications (
	id, number, product_id, customer_id, email, status,
	adhoc_fields, min_adhoc_field_id,
	requests, resubmission_target, resubmission_traveler_id, requested_field_ids,
	responses, passport, status_history, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	cols, err := marshalAggregate(app)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, createApplicationSQL,
		uuid.UUID(app.ID), app.Number, uuid.UUID(app.ProductID), uuid.UUID(app.CustomerID),
		app.Email, string(app.Status),
		cols.adhocFields, app.MinAdHocFieldID,
		cols.requests, nullString(string(app.LegacyTarget)), nullTravelerID(app.LegacyTravelerID), cols.legacyFieldKeys,
		cols.responses, cols.passport, cols.statusHistory, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	if err := writeTravelers(ctx, tx, app); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application tx: %w", err)
	}
	return nil
}

const getApplicationSQL = `
SELECT id, number, product_id, customer_id, email, status,
	adhoc_fields, min_adhoc_field_id,
	requests, resubmission_target, resubmission_traveler_id, requested_field_ids,
	responses, passport, status_history, created_at, updated_at
FROM applications WHERE id = $1`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	app, err := scanApplication(s.db.QueryRowContext(ctx, getApplicationSQL, uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := loadTravelers(ctx, s.db, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ApplicationID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM travelers WHERE application_id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete travelers: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Execute(ctx context.Context, id domain.ApplicationID, fn func(*models.Application) error) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	app, err := scanApplication(tx.QueryRowContext(ctx, getApplicationSQL+" FOR UPDATE", uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := loadTravelers(ctx, tx, app); err != nil {
		return nil, err
	}

	if err := fn(app); err != nil {
		return nil, err
	}

	cols, err := marshalAggregate(app)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE applications SET
	number = $2, email = $3, status = $4,
	adhoc_fields = $5, min_adhoc_field_id = $6,
	requests = $7, resubmission_target = $8, resubmission_traveler_id = $9, requested_field_ids = $10,
	responses = $11, passport = $12, status_history = $13, updated_at = $14
WHERE id = $1`,
		uuid.UUID(app.ID), app.Number, app.Email, string(app.Status),
		cols.adhocFields, app.MinAdHocFieldID,
		cols.requests, nullString(string(app.LegacyTarget)), nullTravelerID(app.LegacyTravelerID), cols.legacyFieldKeys,
		cols.responses, cols.passport, cols.statusHistory, app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM travelers WHERE application_id = $1`, uuid.UUID(app.ID)); err != nil {
		return nil, fmt.Errorf("replace travelers: %w", err)
	}
	if err := writeTravelers(ctx, tx, app); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application tx: %w", err)
	}
	return app, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func writeTravelers(ctx context.Context, q execQuerier, app *models.Application) error {
	for _, t := range app.Travelers {
		responses, err := json.Marshal(t.Responses)
		if err != nil {
			return fmt.Errorf("marshal traveler responses: %w", err)
		}
		passport, err := json.Marshal(t.Passport)
		if err != nil {
			return fmt.Errorf("marshal traveler passport: %w", err)
		}
		_, err = q.ExecContext(ctx, `
INSERT INTO travelers (application_id, id, full_name, responses, passport)
VALUES ($1, $2, $3, $4, $5)`,
			uuid.UUID(app.ID), int64(t.ID), t.FullName, responses, passport)
		if err != nil {
			return fmt.Errorf("insert traveler %d: %w", t.ID, err)
		}
	}
	return nil
}

func loadTravelers(ctx context.Context, q execQuerier, app *models.Application) error {
	rows, err := q.QueryContext(ctx,
		`SELECT id, full_name, responses, passport FROM travelers WHERE application_id = $1 ORDER BY id`,
		uuid.UUID(app.ID))
	if err != nil {
		return fmt.Errorf("load travelers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t            models.Traveler
			id           int64
			responsesRaw []byte
			passportRaw  []byte
		)
		if err := rows.Scan(&id, &t.FullName, &responsesRaw, &passportRaw); err != nil {
			return fmt.Errorf("scan traveler: %w", err)
		}
		t.ID = domain.TravelerID(id)
		if len(responsesRaw) > 0 {
			if err := json.Unmarshal(responsesRaw, &t.Responses); err != nil {
				return fmt.Errorf("unmarshal traveler responses: %w", err)
			}
		}
		if len(passportRaw) > 0 {
			if err := json.Unmarshal(passportRaw, &t.Passport); err != nil {
				return fmt.Errorf("unmarshal traveler passport: %w", err)
			}
		}
		app.Travelers = append(app.Travelers, t)
	}
	return rows.Err()
}

type aggregateColumns struct {
	adhocFields     []byte
	requests        []byte
	legacyFieldKeys []byte
	responses       []byte
	passport        []byte
	statusHistory   []byte
}

func marshalAggregate(app *models.Application) (aggregateColumns, error) {
	var cols aggregateColumns
	var err error
	if cols.adhocFields, err = json.Marshal(app.AdHocFields); err != nil {
		return cols, fmt.Errorf("marshal adhoc fields: %w", err)
	}
	if cols.requests, err = json.Marshal(app.Requests); err != nil {
		return cols, fmt.Errorf("marshal requests: %w", err)
	}
	if cols.legacyFieldKeys, err = json.Marshal(app.LegacyFieldKeys); err != nil {
		return cols, fmt.Errorf("marshal requested field ids: %w", err)
	}
	if cols.responses, err = json.Marshal(app.Responses); err != nil {
		return cols, fmt.Errorf("marshal responses: %w", err)
	}
	if cols.passport, err = json.Marshal(app.Passport); err != nil {
		return cols, fmt.Errorf("marshal passport: %w", err)
	}
	if cols.statusHistory, err = json.Marshal(app.StatusHistory); err != nil {
		return cols, fmt.Errorf("marshal status history: %w", err)
	}
	return cols, nil
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app        models.Application
		id         uuid.UUID
		productID  uuid.UUID
		customerID uuid.UUID
		status     string
		cols       aggregateColumns
		target     sql.NullString
		travelerID sql.NullInt64
	)
	err := row.Scan(&id, &app.Number, &productID, &customerID, &app.Email, &status,
		&cols.adhocFields, &app.MinAdHocFieldID,
		&cols.requests, &target, &travelerID, &cols.legacyFieldKeys,
		&cols.responses, &cols.passport, &cols.statusHistory, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = domain.ApplicationID(id)
	app.ProductID = domain.ProductID(productID)
	app.CustomerID = domain.CustomerID(customerID)
	app.Status = models.Status(status)
	if target.Valid {
		app.LegacyTarget = models.RequestTarget(target.String)
	}
	if travelerID.Valid {
		tid := domain.TravelerID(travelerID.Int64)
		app.LegacyTravelerID = &tid
	}
	if err := unmarshalAggregate(&app, cols); err != nil {
		return nil, err
	}
	return &app, nil
}

func unmarshalAggregate(app *models.Application, cols aggregateColumns) error {
	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"adhoc fields", cols.adhocFields, &app.AdHocFields},
		{"requests", cols.requests, &app.Requests},
		{"requested field ids", cols.legacyFieldKeys, &app.LegacyFieldKeys},
		{"responses", cols.responses, &app.Responses},
		{"passport", cols.passport, &app.Passport},
		{"status history", cols.statusHistory, &app.StatusHistory},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return fmt.Errorf("unmarshal %s: %w", col.name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTravelerID(id *domain.TravelerID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
