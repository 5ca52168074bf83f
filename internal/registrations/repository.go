package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

const (
	pgUniqueViolation     = "23505"
	tokenUniqueConstraint = "registrations_token_key"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, form_id, answers, token, status, checked_in_at, code_object_key, created_at`

// Insert adds a registration only if its form is published. The form and its
// published_form row are share-locked until commit, so a concurrent edit,
// unpublish or publish waits for this insert.
func (r *Repository) Insert(ctx context.Context, reg *models.Registration, formVersion time.Time) error {
	answers, err := json.Marshal(reg.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var version time.Time
	err = tx.QueryRow(ctx, `SELECT f.updated_at FROM published_form p JOIN forms f ON f.id = p.form_id
		WHERE p.form_id = $1 FOR SHARE`, reg.FormID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("form %s is not published: %w", reg.FormID, apperr.ErrNotFound)
		}
		return fmt.Errorf("lock published form: %w", err)
	}
	if !formVersion.IsZero() && !version.Equal(formVersion) {
		return ErrFormChanged
	}

	const q = `INSERT INTO registrations (id, form_id, answers, token, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, q, reg.FormID, answers, reg.Token, string(models.StatusRegistered)).
		Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == tokenUniqueConstraint {
			return ErrTokenTaken
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	reg.Status = models.StatusRegistered
	return nil
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", id, err)
	}
	return reg, nil
}

// ListByForm returns all registrations for a form, oldest first.
func (r *Repository) ListByForm(ctx context.Context, formID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE form_id = $1 ORDER BY created_at ASC, id ASC`, formID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// FindByToken returns the registration holding token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE token = $1`, token))
	if err != nil {
		return nil, fmt.Errorf("registration by token: %w", err)
	}
	return reg, nil
}

// CheckIn performs the REGISTERED -> CHECKED_IN transition as one conditional
// UPDATE. Only one concurrent caller can match the status guard.
func (r *Repository) CheckIn(ctx context.Context, token string, at time.Time) (*models.Registration, bool, error) {
	const q = `UPDATE registrations SET status = $3, checked_in_at = $2
		WHERE token = $1 AND status = $4
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, token, at.UTC(), string(models.StatusCheckedIn), string(models.StatusRegistered)))
	if err == nil {
		return reg, true, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, fmt.Errorf("check in: %w", err)
	}
	reg, err = r.FindByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	return reg, false, nil
}

// CountByForm returns the number of registrations for a form.
func (r *Repository) CountByForm(ctx context.Context, formID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE form_id = $1`, formID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// Stats returns total and checked-in counts for a form.
func (r *Repository) Stats(ctx context.Context, formID uuid.UUID) (models.RegistrationStats, error) {
	stats := models.RegistrationStats{FormID: formID}
	const q = `SELECT COUNT(*), COUNT(checked_in_at) FROM registrations WHERE form_id = $1`
	if err := r.pool.QueryRow(ctx, q, formID).Scan(&stats.Total, &stats.CheckedIn); err != nil {
		return stats, fmt.Errorf("registration stats: %w", err)
	}
	return stats, nil
}

// SetCodeObjectKey records where the archived QR image was stored.
func (r *Repository) SetCodeObjectKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE registrations SET code_object_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set code object key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registration %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var answers []byte
	var status string
	err := row.Scan(&reg.ID, &reg.FormID, &answers, &reg.Token, &status, &reg.CheckedInAt, &reg.CodeObjectKey, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	reg.Status = models.RegistrationStatus(status)
	if err := json.Unmarshal(answers, &reg.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &reg, nil
}
