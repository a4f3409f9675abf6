package highlights

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, h *models.Highlight) (bool, error)
	Get(ctx context.Context, userID, id string) (*models.Highlight, error)
	ListByDocument(ctx context.Context, userID, documentID string) ([]*models.Highlight, error)
	UpdateNote(ctx context.Context, userID, id string, note *string) (*models.Highlight, error)
	Delete(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteInDocument(ctx context.Context, userID, documentID string, ids []string) (int64, error)
}
