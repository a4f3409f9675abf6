// Package documents provides the PostgreSQL-backed repository for documents,
// their labels and their reading progress.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the document or refreshes its title and content reference.
// Reading progress is never touched here.
func (r *PostgresRepository) Upsert(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO documents (user_id, id, title, content_ref, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, id)
		DO UPDATE SET
			title = EXCLUDED.title,
			content_ref = EXCLUDED.content_ref,
			updated_at = now();
	`
	if _, err := r.db.ExecContext(ctx, query, d.UserID, d.ID, d.Title, d.ContentRef); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the document with its labels, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	query := `SELECT id, user_id, title, content_ref, progress_percent, progress_anchor, updated_at
		FROM documents WHERE user_id=$1 AND id=$2`

	var d models.Document
	err := r.db.QueryRowContext(ctx, query, userID, id).Scan(
		&d.ID, &d.UserID, &d.Title, &d.ContentRef, &d.ProgressPercent, &d.ProgressAnchor, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}

	labels, err := r.labels(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	d.Labels = labels
	return &d, nil
}

func (r *PostgresRepository) labels(ctx context.Context, userID, documentID string) ([]models.Label, error) {
	query := `SELECT label_id, name, color FROM document_labels
		WHERE user_id=$1 AND document_id=$2 ORDER BY name, label_id`

	rows, err := r.db.QueryContext(ctx, query, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select labels: %w", err)
	}
	defer rows.Close()

	var result []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceLabels swaps the document's label set for labels. Callers run it in
// the same transaction as Upsert.
func (r *PostgresRepository) ReplaceLabels(ctx context.Context, userID, documentID string, labels []models.Label) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM document_labels WHERE user_id=$1 AND document_id=$2`, userID, documentID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, l := range labels {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO document_labels (user_id, document_id, label_id, name, color) VALUES ($1, $2, $3, $4, $5)`,
			userID, documentID, l.ID, l.Name, l.Color); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// UpdateProgress stores the reading position. Unless force is set the write
// only happens when percent moves forward. It reports whether a row changed.
func (r *PostgresRepository) UpdateProgress(ctx context.Context, userID, documentID string, percent float64, anchor int, force bool) (bool, error) {
	query := `
		UPDATE documents SET progress_percent=$3, progress_anchor=$4, updated_at=now()
		WHERE user_id=$1 AND id=$2 AND ($5::boolean OR progress_percent < $3)
	`
	res, err := r.db.ExecContext(ctx, query, userID, documentID, percent, anchor, force)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}
