// Package highlights provides the PostgreSQL-backed highlight repository.
// Every query is scoped to the owning user.
package highlights

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
)

const columns = `id, user_id, document_id, short_id, quote, prefix, suffix, patch, note,
	position_percent, position_anchor, created_at, updated_at`

// PostgresRepository implements highlight storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Highlight, error) {
	var h models.Highlight
	err := s.Scan(&h.ID, &h.UserID, &h.DocumentID, &h.ShortID, &h.Quote, &h.Prefix, &h.Suffix, &h.Patch,
		&h.Note, &h.PositionPercent, &h.PositionAnchor, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Insert stores h unless a highlight with the same id already exists, in
// which case nothing changes and false is returned.
func (r *PostgresRepository) Insert(ctx context.Context, h *models.Highlight) (bool, error) {
	query := `
		INSERT INTO highlights (id, user_id, document_id, short_id, quote, prefix, suffix, patch, note,
			position_percent, position_anchor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (id) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query, h.ID, h.UserID, h.DocumentID, h.ShortID, h.Quote, h.Prefix, h.Suffix,
		h.Patch, h.Note, h.PositionPercent, h.PositionAnchor)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// Get returns the user's highlight or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Highlight, error) {
	query := `SELECT ` + columns + ` FROM highlights WHERE user_id=$1 AND id=$2`

	h, err := scan(r.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select highlight: %w", err)
	}
	return h, nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, userID, documentID string) ([]*models.Highlight, error) {
	query := `SELECT ` + columns + ` FROM highlights WHERE user_id=$1 AND document_id=$2 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select highlights: %w", err)
	}
	defer rows.Close()

	var result []*models.Highlight
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateNote replaces the note and returns the updated row, or
// common.ErrNotFound when the user has no such highlight.
func (r *PostgresRepository) UpdateNote(ctx context.Context, userID, id string, note *string) (*models.Highlight, error) {
	query := `UPDATE highlights SET note=$3, updated_at=now() WHERE user_id=$1 AND id=$2 RETURNING ` + columns

	h, err := scan(r.db.QueryRowContext(ctx, query, userID, id, note))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update highlight: %w", err)
	}
	return h, nil
}

// Delete removes the listed highlights the user owns and returns how many
// rows went away. Unknown ids are ignored.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM highlights WHERE user_id=$1 AND id IN (` + placeholders(2, len(ids)) + `)`
	return r.exec(ctx, query, append([]any{userID}, toArgs(ids)...)...)
}

// DeleteInDocument is Delete restricted to one document.
func (r *PostgresRepository) DeleteInDocument(ctx context.Context, userID, documentID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM highlights WHERE user_id=$1 AND document_id=$2 AND id IN (` + placeholders(3, len(ids)) + `)`
	return r.exec(ctx, query, append([]any{userID, documentID}, toArgs(ids)...)...)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// placeholders renders n positional parameters starting at $start.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func toArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
