package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// Repository is the PostgreSQL Store. The published pointer is the single row of
// published_form; is_published is derived by joining against it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a forms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectForm = `SELECT f.id, f.title, f.fields, (p.form_id IS NOT NULL), f.created_at, f.updated_at
	FROM forms f LEFT JOIN published_form p ON p.form_id = f.id`

// Create inserts a new, unpublished form.
func (r *Repository) Create(ctx context.Context, f *models.Form) error {
	fields, err := json.Marshal(f.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	const q = `INSERT INTO forms (id, title, fields)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, q, f.Title, fields).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	f.IsPublished = false
	return nil
}

// GetByID returns a form by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	f, err := scanForm(r.pool.QueryRow(ctx, selectForm+` WHERE f.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get form %s: %w", id, err)
	}
	return f, nil
}

// List returns all forms, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Form, error) {
	rows, err := r.pool.Query(ctx, selectForm+` ORDER BY f.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()
	var list []models.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		list = append(list, *f)
	}
	return list, rows.Err()
}

// Update replaces title and fields. Stored answers are left untouched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title string, fields []models.FieldSpec) (*models.Form, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE forms SET title = $1, fields = $2, updated_at = GREATEST(NOW(), updated_at + INTERVAL '1 microsecond') WHERE id = $3`, title, raw, id)
	if err != nil {
		return nil, fmt.Errorf("update form %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update form %s: %w", id, apperr.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a form. Registrations reference forms with ON DELETE RESTRICT,
// so deleting a form that has registrations fails with ErrConflict inside the
// same statement and the counter is not consulted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, _ RegistrationCounter) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("delete form %s has registrations: %w", id, apperr.ErrConflict)
		}
		return fmt.Errorf("delete form %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete form %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Publish moves the published pointer to id in one upsert. Concurrent callers
// serialize on the singleton row; the last one to commit wins.
func (r *Repository) Publish(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	const q = `INSERT INTO published_form (singleton, form_id, published_at)
		SELECT TRUE, f.id, NOW() FROM forms f WHERE f.id = $1
		ON CONFLICT (singleton) DO UPDATE SET form_id = EXCLUDED.form_id, published_at = EXCLUDED.published_at`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("publish form %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("publish form %s: %w", id, apperr.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Unpublish clears the pointer when it targets id.
func (r *Repository) Unpublish(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM published_form WHERE form_id = $1`, id); err != nil {
		return nil, fmt.Errorf("unpublish form %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// GetPublished returns the published form or nil.
func (r *Repository) GetPublished(ctx context.Context) (*models.Form, error) {
	const q = `SELECT f.id, f.title, f.fields, TRUE, f.created_at, f.updated_at
		FROM published_form p JOIN forms f ON f.id = p.form_id`
	f, err := scanForm(r.pool.QueryRow(ctx, q))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get published form: %w", err)
	}
	return f, nil
}

const pgForeignKeyViolation = "23503"

func scanForm(row pgx.Row) (*models.Form, error) {
	var f models.Form
	var fields []byte
	if err := row.Scan(&f.ID, &f.Title, &fields, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(fields, &f.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &f, nil
}
