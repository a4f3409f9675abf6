package documents

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	ReplaceLabels(ctx context.Context, userID, documentID string, labels []models.Label) error
	UpdateProgress(ctx context.Context, userID, documentID string, percent float64, anchor int, force bool) (bool, error)
}
