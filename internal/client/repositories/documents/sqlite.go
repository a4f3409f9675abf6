package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (id, title, content_ref, local_path, progress_percent, progress_anchor, updated_at)
		values (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title,
			content_ref = excluded.content_ref,
			local_path = CASE WHEN excluded.local_path = '' THEN documents.local_path ELSE excluded.local_path END,
			progress_percent = excluded.progress_percent,
			progress_anchor = excluded.progress_anchor,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, d.ID, d.Title, d.ContentRef, d.LocalPath,
		d.ProgressPercent, d.ProgressAnchor, toMillis(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", d.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `select id, title, content_ref, local_path, progress_percent, progress_anchor, updated_at
		from documents where id = ?`

	d, err := scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	labels, err := r.labels(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Labels = labels
	return d, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `select id, title, content_ref, local_path, progress_percent,
		progress_anchor, updated_at from documents order by title, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SetProgress(ctx context.Context, id string, percent float64, anchor int) error {
	res, err := r.db.ExecContext(ctx,
		`update documents set progress_percent = ?, progress_anchor = ?, updated_at = ? where id = ?`,
		percent, anchor, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to set progress of %s: %w", id, err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) SetLocalPath(ctx context.Context, id, path string) error {
	res, err := r.db.ExecContext(ctx, `update documents set local_path = ? where id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("failed to set local path of %s: %w", id, err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ReplaceLabels(ctx context.Context, documentID string, labels []models.Label) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_labels WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear labels of %s: %w", documentID, err)
	}
	for _, l := range labels {
		_, err := r.db.ExecContext(ctx, `INSERT INTO labels (id, name, color) values (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`, l.ID, l.Name, l.Color)
		if err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", l.ID, err)
		}
		_, err = r.db.ExecContext(ctx, `INSERT OR IGNORE INTO document_labels (document_id, label_id) values (?, ?)`,
			documentID, l.ID)
		if err != nil {
			return fmt.Errorf("failed to link label %s: %w", l.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) labels(ctx context.Context, documentID string) ([]models.Label, error) {
	rows, err := r.db.QueryContext(ctx, `select l.id, l.name, l.color from labels l
		join document_labels dl on dl.label_id = l.id where dl.document_id = ? order by l.name, l.id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select labels: %w", err)
	}
	defer rows.Close()

	var result []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Document, error) {
	var (
		d         models.Document
		updatedAt int64
	)
	if err := s.Scan(&d.ID, &d.Title, &d.ContentRef, &d.LocalPath, &d.ProgressPercent,
		&d.ProgressAnchor, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt != 0 {
		d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	}
	return &d, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
