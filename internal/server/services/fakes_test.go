package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	sc "github.com/dmitrijs2005/readkeeper/internal/server/config"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/highlights"
	"github.com/stretchr/testify/require"
)

// memory is a shared in-memory backing store for the fake repositories.
type memory struct {
	mu         sync.Mutex
	docs       map[string]*models.Document // user/id
	highlights map[string]*models.Highlight
}

func newMemory() *memory {
	return &memory{docs: map[string]*models.Document{}, highlights: map[string]*models.Highlight{}}
}

type fakeDocs struct{ m *memory }

func (f fakeDocs) Upsert(_ context.Context, d *models.Document) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	key := d.UserID + "/" + d.ID
	if cur, ok := f.m.docs[key]; ok {
		cur.Title, cur.ContentRef = d.Title, d.ContentRef
		return nil
	}
	cp := *d
	f.m.docs[key] = &cp
	return nil
}

func (f fakeDocs) Get(_ context.Context, userID, id string) (*models.Document, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	d, ok := f.m.docs[userID+"/"+id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f fakeDocs) ReplaceLabels(_ context.Context, userID, documentID string, labels []models.Label) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if d, ok := f.m.docs[userID+"/"+documentID]; ok {
		d.Labels = labels
	}
	return nil
}

func (f fakeDocs) UpdateProgress(_ context.Context, userID, documentID string, percent float64, anchor int, force bool) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	d, ok := f.m.docs[userID+"/"+documentID]
	if !ok || (!force && d.ProgressPercent >= percent) {
		return false, nil
	}
	d.ProgressPercent, d.ProgressAnchor = percent, anchor
	return true, nil
}

type fakeHighlights struct{ m *memory }

func (f fakeHighlights) Insert(_ context.Context, h *models.Highlight) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.highlights[h.ID]; ok {
		return false, nil
	}
	cp := *h
	f.m.highlights[h.ID] = &cp
	return true, nil
}

func (f fakeHighlights) Get(_ context.Context, userID, id string) (*models.Highlight, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	h, ok := f.m.highlights[id]
	if !ok || h.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f fakeHighlights) ListByDocument(_ context.Context, userID, documentID string) ([]*models.Highlight, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []*models.Highlight
	for _, h := range f.m.highlights {
		if h.UserID == userID && h.DocumentID == documentID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeHighlights) UpdateNote(_ context.Context, userID, id string, note *string) (*models.Highlight, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	h, ok := f.m.highlights[id]
	if !ok || h.UserID != userID {
		return nil, common.ErrNotFound
	}
	h.Note = note
	cp := *h
	return &cp, nil
}

func (f fakeHighlights) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	return f.DeleteInDocument(ctx, userID, "", ids)
}

func (f fakeHighlights) DeleteInDocument(_ context.Context, userID, documentID string, ids []string) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		h, ok := f.m.highlights[id]
		if !ok || h.UserID != userID || (documentID != "" && h.DocumentID != documentID) {
			continue
		}
		delete(f.m.highlights, id)
		n++
	}
	return n, nil
}

type fakeRepoMgr struct{ m *memory }

func (f fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f fakeRepoMgr) Documents(dbx.DBTX) documents.Repository      { return fakeDocs{f.m} }
func (f fakeRepoMgr) Highlights(dbx.DBTX) highlights.Repository    { return fakeHighlights{f.m} }

func newTestService(t *testing.T) (*AnnotationService, *memory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := newMemory()
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	return NewAnnotationService(db, fakeRepoMgr{m}, cfg), m, mock
}
