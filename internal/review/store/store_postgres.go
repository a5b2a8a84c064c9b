package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/platform/sentinel"
	txcontext "expatdesk/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists reviews in the reviews table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reviewColumns = `id, access_token, checkout_session_id, customer_email, form_data,
	form_progress, status, escalation_flags, ambiguity_score, created_at, updated_at, submitted_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.ReviewRecord) error {
	formData, err := json.Marshal(r.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	query := `INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.AccessToken.String(),
		nullString(r.CheckoutSessionID),
		r.CustomerEmail,
		formData,
		pq.Array(models.SectionStrings(r.FormProgress)),
		string(r.Status),
		pq.Array(models.FlagStrings(r.EscalationFlags)),
		r.AmbiguityScore,
		r.CreatedAt,
		r.UpdatedAt,
		r.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token id.AccessToken) (*models.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE access_token = $1`
	return s.scanOne(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, token.String()))
}

func (s *PostgresStore) FindByCheckoutSession(ctx context.Context, sessionID string) (*models.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE checkout_session_id = $1`
	return s.scanOne(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, sessionID))
}

// Execute locks the row with FOR UPDATE, validates, mutates and writes it
// back. It joins the caller's transaction or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, token id.AccessToken, validate func(*models.ReviewRecord) error, mutate func(*models.ReviewRecord)) (*models.ReviewRecord, error) {
	var out *models.ReviewRecord
	err := txcontext.NewSQLRunner(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		exec := txcontext.ExecutorFor(txCtx, s.db)
		query := `SELECT ` + reviewColumns + ` FROM reviews WHERE access_token = $1 FOR UPDATE`
		r, err := s.scanOne(exec.QueryRowContext(txCtx, query, token.String()))
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		if err := s.update(txCtx, exec, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) update(ctx context.Context, exec txcontext.Executor, r *models.ReviewRecord) error {
	formData, err := json.Marshal(r.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	query := `UPDATE reviews SET
			form_data = $2,
			form_progress = $3,
			status = $4,
			escalation_flags = $5,
			ambiguity_score = $6,
			updated_at = $7,
			submitted_at = $8
		WHERE access_token = $1`
	res, err := exec.ExecContext(ctx, query,
		r.AccessToken.String(),
		formData,
		pq.Array(models.SectionStrings(r.FormProgress)),
		string(r.Status),
		pq.Array(models.FlagStrings(r.EscalationFlags)),
		r.AmbiguityScore,
		r.UpdatedAt,
		r.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.ReviewRecord, error) {
	filter.Normalize()
	query := `SELECT ` + reviewColumns + ` FROM reviews
		WHERE ($1::text = '' OR status = $1)
		ORDER BY updated_at DESC, access_token ASC
		LIMIT $2`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewRecord
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.ReviewRecord, error) {
	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func scanReview(row rowScanner) (*models.ReviewRecord, error) {
	var (
		reviewID    uuid.UUID
		token       string
		checkout    sql.NullString
		formData    []byte
		progress    []string
		status      string
		flags       []string
		submittedAt sql.NullTime
		r           models.ReviewRecord
	)
	err := row.Scan(
		&reviewID,
		&token,
		&checkout,
		&r.CustomerEmail,
		&formData,
		pq.Array(&progress),
		&status,
		pq.Array(&flags),
		&r.AmbiguityScore,
		&r.CreatedAt,
		&r.UpdatedAt,
		&submittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	if err := json.Unmarshal(formData, &r.FormData); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	r.ID = id.ReviewID(reviewID)
	r.AccessToken = id.AccessToken(token)
	r.CheckoutSessionID = checkout.String
	r.FormProgress = models.MergeProgress(nil, sectionsFrom(progress))
	r.Status = models.Status(status)
	r.EscalationFlags = models.ParseFlags(flags)
	if submittedAt.Valid {
		t := submittedAt.Time
		r.SubmittedAt = &t
	}
	return &r, nil
}

func sectionsFrom(values []string) []models.Section {
	out := make([]models.Section, len(values))
	for i, v := range values {
		out[i] = models.Section(v)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
