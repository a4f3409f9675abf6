package highlights

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// Repository describes storage operations on highlights.
type Repository interface {
	// Upsert inserts a highlight or replaces all of its columns by id, and
	// links it to its document.
	Upsert(ctx context.Context, h *models.Highlight) error

	// GetByID returns common.ErrNotFound when no row exists.
	GetByID(ctx context.Context, id string) (*models.Highlight, error)

	// ListByDocument returns highlights of a document ordered by creation
	// time. Hidden rows are skipped unless includeHidden is set.
	ListByDocument(ctx context.Context, documentID string, includeHidden bool) ([]models.Highlight, error)

	// FindByShortID returns common.ErrNotFound when no row matches.
	FindByShortID(ctx context.Context, documentID, shortID string) (*models.Highlight, error)

	// ListByStatus returns highlights in any of the given statuses.
	ListByStatus(ctx context.Context, statuses ...models.SyncStatus) ([]models.Highlight, error)

	// ListByMergeTarget returns the hidden rows absorbed by a pending merge.
	ListByMergeTarget(ctx context.Context, targetID string) ([]models.Highlight, error)

	// Delete removes highlights and their document links. Missing ids are ignored.
	Delete(ctx context.Context, ids ...string) error
}
