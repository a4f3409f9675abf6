package store

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/repositories/documents"
	"github.com/dmitrijs2005/readkeeper/internal/client/repositories/highlights"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
)

// Tx is the transactional view handed to Update callbacks. It must not be
// retained after the callback returns.
type Tx struct {
	documents  documents.Repository
	highlights highlights.Repository
	touched    map[string]struct{}
}

func newTx(db dbx.DBTX) *Tx {
	return &Tx{
		documents:  documents.NewSQLiteRepository(db),
		highlights: highlights.NewSQLiteRepository(db),
		touched:    make(map[string]struct{}),
	}
}

func (t *Tx) touch(documentID string) {
	if documentID != "" {
		t.touched[documentID] = struct{}{}
	}
}

// Document returns common.ErrNotFound when the document is unknown.
func (t *Tx) Document(ctx context.Context, id string) (*models.Document, error) {
	return t.documents.GetByID(ctx, id)
}

// Highlight returns common.ErrNotFound when the highlight is unknown.
func (t *Tx) Highlight(ctx context.Context, id string) (*models.Highlight, error) {
	return t.highlights.GetByID(ctx, id)
}

func (t *Tx) Highlights(ctx context.Context, documentID string, includeHidden bool) ([]models.Highlight, error) {
	return t.highlights.ListByDocument(ctx, documentID, includeHidden)
}

// MergeSources returns the rows absorbed by the pending merge into targetID.
func (t *Tx) MergeSources(ctx context.Context, targetID string) ([]models.Highlight, error) {
	return t.highlights.ListByMergeTarget(ctx, targetID)
}

func (t *Tx) HighlightsByStatus(ctx context.Context, statuses ...models.SyncStatus) ([]models.Highlight, error) {
	return t.highlights.ListByStatus(ctx, statuses...)
}

func (t *Tx) UpsertDocument(ctx context.Context, d *models.Document) error {
	if err := t.documents.Upsert(ctx, d); err != nil {
		return err
	}
	if err := t.documents.ReplaceLabels(ctx, d.ID, d.Labels); err != nil {
		return err
	}
	t.touch(d.ID)
	return nil
}

func (t *Tx) UpsertHighlights(ctx context.Context, hs ...models.Highlight) error {
	for i := range hs {
		if err := t.highlights.Upsert(ctx, &hs[i]); err != nil {
			return err
		}
		t.touch(hs[i].DocumentID)
	}
	return nil
}

// DeleteHighlights hard-deletes the given ids; unknown ids are ignored.
func (t *Tx) DeleteHighlights(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if h, err := t.highlights.GetByID(ctx, id); err == nil {
			t.touch(h.DocumentID)
		}
	}
	return t.highlights.Delete(ctx, ids...)
}

func (t *Tx) SetDocumentProgress(ctx context.Context, id string, percent float64, anchor int) error {
	if err := t.documents.SetProgress(ctx, id, percent, anchor); err != nil {
		return err
	}
	t.touch(id)
	return nil
}

func (t *Tx) SetDocumentLocalPath(ctx context.Context, id, path string) error {
	if err := t.documents.SetLocalPath(ctx, id, path); err != nil {
		return err
	}
	t.touch(id)
	return nil
}
