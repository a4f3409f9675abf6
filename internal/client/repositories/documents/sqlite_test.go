package documents

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestUpsertAndGet_WithLabels(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	d := &models.Document{
		ID:              "doc1",
		Title:           "Go Proverbs",
		ContentRef:      "content/doc1.pdf",
		ProgressPercent: 12.5,
		ProgressAnchor:  3,
		UpdatedAt:       time.UnixMilli(1700000000000).UTC(),
	}
	require.NoError(t, r.Upsert(ctx, d))
	require.NoError(t, r.ReplaceLabels(ctx, "doc1", []models.Label{
		{ID: "l2", Name: "work", Color: "#f00"},
		{ID: "l1", Name: "go", Color: "#0f0"},
	}))

	got, err := r.GetByID(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Go Proverbs", got.Title)
	assert.Equal(t, 12.5, got.ProgressPercent)
	assert.Equal(t, 3, got.ProgressAnchor)
	assert.Equal(t, d.UpdatedAt, got.UpdatedAt)
	require.Len(t, got.Labels, 2)
	assert.Equal(t, "go", got.Labels[0].Name)

	require.NoError(t, r.ReplaceLabels(ctx, "doc1", []models.Label{{ID: "l1", Name: "golang"}}))
	got, err = r.GetByID(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, got.Labels, 1)
	assert.Equal(t, "golang", got.Labels[0].Name)
}

func TestUpsert_KeepsLocalPathWhenEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.Document{ID: "doc1", Title: "a"}))
	require.NoError(t, r.SetLocalPath(ctx, "doc1", "/cache/doc1"))
	require.NoError(t, r.Upsert(ctx, &models.Document{ID: "doc1", Title: "b"}))

	got, err := r.GetByID(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
	assert.Equal(t, "/cache/doc1", got.LocalPath)
}

func TestSetProgress(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, &models.Document{ID: "doc1"}))

	require.NoError(t, r.SetProgress(ctx, "doc1", 40, 7))
	got, err := r.GetByID(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.ProgressPercent)
	assert.Equal(t, 7, got.ProgressAnchor)

	require.ErrorIs(t, r.SetProgress(ctx, "missing", 1, 1), common.ErrNotFound)
	require.ErrorIs(t, r.SetLocalPath(ctx, "missing", "/x"), common.ErrNotFound)
}

func TestGetByID_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_OrderedByTitle(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, &models.Document{ID: "2", Title: "beta"}))
	require.NoError(t, r.Upsert(ctx, &models.Document{ID: "1", Title: "alpha"}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Title)
}
