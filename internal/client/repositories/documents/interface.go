package documents

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// Repository describes storage operations on documents.
type Repository interface {
	// Upsert inserts a document or updates its descriptive and progress
	// columns. An empty LocalPath never clears an existing cache path.
	Upsert(ctx context.Context, d *models.Document) error

	// GetByID returns common.ErrNotFound when no row exists. Labels are loaded.
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// List returns all documents ordered by title, without labels.
	List(ctx context.Context) ([]models.Document, error)

	// SetProgress stores reading progress; common.ErrNotFound if no row matched.
	SetProgress(ctx context.Context, id string, percent float64, anchor int) error

	// SetLocalPath records the local cache file; common.ErrNotFound if no row matched.
	SetLocalPath(ctx context.Context, id, path string) error

	// ReplaceLabels sets the label set of a document.
	ReplaceLabels(ctx context.Context, documentID string, labels []models.Label) error
}
