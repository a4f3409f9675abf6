package highlights

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
)

const selectColumns = `h.id, h.short_id, dh.document_id, h.quote, h.prefix, h.suffix, h.patch, h.note,
	h.created_by_me, h.created_at, h.updated_at, h.marked_for_deletion, h.sync_status,
	h.prior_status, h.merge_target
	from highlights h join document_highlights dh on dh.highlight_id = h.id`

// SQLiteRepository implements Repository on top of a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, h *models.Highlight) error {
	query := `INSERT INTO highlights (id, short_id, quote, prefix, suffix, patch, note, created_by_me,
			created_at, updated_at, marked_for_deletion, sync_status, prior_status, merge_target)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET short_id = excluded.short_id,
			quote = excluded.quote,
			prefix = excluded.prefix,
			suffix = excluded.suffix,
			patch = excluded.patch,
			note = excluded.note,
			created_by_me = excluded.created_by_me,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			marked_for_deletion = excluded.marked_for_deletion,
			sync_status = excluded.sync_status,
			prior_status = excluded.prior_status,
			merge_target = excluded.merge_target
	`
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.ShortID, h.Quote, h.Prefix, h.Suffix, h.Patch, h.Note, h.CreatedByMe,
		toMillis(h.CreatedAt), toMillis(h.UpdatedAt), h.MarkedForDeletion, string(h.Status),
		string(h.PriorStatus), h.MergeTarget)
	if err != nil {
		return fmt.Errorf("failed to upsert highlight %s: %w", h.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO document_highlights (document_id, highlight_id) values (?, ?)
		ON CONFLICT(highlight_id) DO UPDATE SET document_id = excluded.document_id`, h.DocumentID, h.ID)
	if err != nil {
		return fmt.Errorf("failed to link highlight %s: %w", h.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Highlight, error) {
	row := r.db.QueryRowContext(ctx, `select `+selectColumns+` where h.id = ?`, id)
	h, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highlight %s: %w", id, err)
	}
	return h, nil
}

func (r *SQLiteRepository) ListByDocument(ctx context.Context, documentID string, includeHidden bool) ([]models.Highlight, error) {
	query := `select ` + selectColumns + ` where dh.document_id = ?`
	if !includeHidden {
		query += ` and h.marked_for_deletion = 0`
	}
	query += ` order by h.created_at, h.id`
	return r.list(ctx, query, documentID)
}

// FindByShortID prefers a visible row when a hidden one shares the short id.
func (r *SQLiteRepository) FindByShortID(ctx context.Context, documentID, shortID string) (*models.Highlight, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+selectColumns+` where dh.document_id = ? and h.short_id = ? order by h.marked_for_deletion limit 1`,
		documentID, shortID)
	h, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find highlight by short id %s: %w", shortID, err)
	}
	return h, nil
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, statuses ...models.SyncStatus) ([]models.Highlight, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	query := `select ` + selectColumns + ` where h.sync_status in (` + placeholders(len(statuses)) + `)
		order by h.created_at, h.id`
	return r.list(ctx, query, args...)
}

func (r *SQLiteRepository) ListByMergeTarget(ctx context.Context, targetID string) ([]models.Highlight, error) {
	if targetID == "" {
		return nil, nil
	}
	return r.list(ctx, `select `+selectColumns+` where h.merge_target = ? order by h.created_at, h.id`, targetID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_highlights WHERE highlight_id in (`+in+`)`, args...); err != nil {
		return fmt.Errorf("failed to unlink highlights: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM highlights WHERE id in (`+in+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete highlights: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Highlight, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select highlights: %w", err)
	}
	defer rows.Close()

	var result []models.Highlight
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan highlight: %w", err)
		}
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Highlight, error) {
	var (
		h                    models.Highlight
		createdAt, updatedAt int64
		status, prior        string
	)
	err := s.Scan(&h.ID, &h.ShortID, &h.DocumentID, &h.Quote, &h.Prefix, &h.Suffix, &h.Patch, &h.Note,
		&h.CreatedByMe, &createdAt, &updatedAt, &h.MarkedForDeletion, &status, &prior, &h.MergeTarget)
	if err != nil {
		return nil, err
	}
	h.CreatedAt = fromMillis(createdAt)
	h.UpdatedAt = fromMillis(updatedAt)
	h.Status = models.SyncStatus(status)
	h.PriorStatus = models.SyncStatus(prior)
	return &h, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
