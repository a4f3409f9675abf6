package client

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// Position locates a highlight inside its document.
type Position struct {
	Percent     float64
	AnchorIndex int
}

type Remote interface {
	Ping(ctx context.Context) error

	// SaveDocument registers a document with the service (library operation).
	SaveDocument(ctx context.Context, d models.Document) (*models.Document, error)
	FetchDocument(ctx context.Context, documentID string) (*models.Document, []models.Highlight, error)
	ContentURL(ctx context.Context, documentID string) (string, error)

	CreateHighlight(ctx context.Context, h models.Highlight, pos *Position) (*models.Highlight, error)
	MergeHighlights(ctx context.Context, h models.Highlight, overlapIDs []string) (*models.Highlight, error)
	UpdateHighlight(ctx context.Context, id string, note *string) (*models.Highlight, error)
	DeleteHighlights(ctx context.Context, ids []string) error

	UpdateReadingProgress(ctx context.Context, documentID string, percent float64, anchorIndex int, force bool) error

	Close() error
}
