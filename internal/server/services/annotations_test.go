package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idA = "0b8f6a52-1f0e-4a53-9d55-5d2a6c1e0a01"
	idB = "0b8f6a52-1f0e-4a53-9d55-5d2a6c1e0a02"
	idC = "0b8f6a52-1f0e-4a53-9d55-5d2a6c1e0a03"
)

func seedDocument(t *testing.T, m *memory, userID, id string) {
	t.Helper()
	m.docs[userID+"/"+id] = &models.Document{ID: id, UserID: userID, Title: "Book " + id}
}

func createReq(id, doc string) *wire.CreateHighlightRequest {
	return &wire.CreateHighlightRequest{ID: id, ShortID: "s-" + id[len(id)-2:], DocumentID: doc, Quote: "q", Patch: `{"rects":[]}`}
}

func TestSaveDocument_UpsertsWithLabels(t *testing.T) {
	svc, m, mock := newTestService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	d, err := svc.SaveDocument(ctx, "u1", &wire.SaveDocumentRequest{
		ID: "d1", Title: "Dune", Labels: []wire.Label{{ID: "l1", Name: "scifi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune", d.Title)
	assert.Equal(t, []models.Label{{ID: "l1", Name: "scifi"}}, d.Labels)
	assert.Len(t, m.docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocument_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SaveDocument(context.Background(), "u1", &wire.SaveDocumentRequest{ID: "d1"})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.SaveDocument(context.Background(), "u1", &wire.SaveDocumentRequest{
		ID: "d1", Title: "t", Labels: []wire.Label{{ID: "l1"}},
	})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestFetchDocument(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")

	_, err := svc.CreateHighlight(ctx, "u1", createReq(idA, "d1"))
	require.NoError(t, err)

	d, hs, err := svc.FetchDocument(ctx, "u1", &wire.FetchDocumentRequest{DocumentID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
	require.Len(t, hs, 1)
	assert.Equal(t, idA, hs[0].ID)

	_, _, err = svc.FetchDocument(ctx, "u2", &wire.FetchDocumentRequest{DocumentID: "d1"})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateHighlight_Idempotent(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")

	note := "first"
	req := createReq(idA, "d1")
	req.Note = &note
	percent, anchor := 25.0, 4
	req.HighlightPositionPercent = &percent
	req.HighlightPositionAnchorIndex = &anchor

	h1, err := svc.CreateHighlight(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, "first", *h1.Note)
	assert.Equal(t, 25.0, *h1.PositionPercent)

	other := "second"
	req.Note = &other
	h2, err := svc.CreateHighlight(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, "first", *h2.Note)
	assert.Len(t, m.highlights, 1)
}

func TestCreateHighlight_Errors(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")
	seedDocument(t, m, "u2", "d1")

	bad := createReq("not-a-uuid", "d1")
	_, err := svc.CreateHighlight(ctx, "u1", bad)
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.CreateHighlight(ctx, "u1", createReq(idA, "missing"))
	require.ErrorIs(t, err, common.ErrDocumentNotFound)

	outOfRange := createReq(idA, "d1")
	p := 140.0
	outOfRange.HighlightPositionPercent = &p
	_, err = svc.CreateHighlight(ctx, "u1", outOfRange)
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.CreateHighlight(ctx, "u1", createReq(idA, "d1"))
	require.NoError(t, err)
	_, err = svc.CreateHighlight(ctx, "u2", createReq(idA, "d1"))
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreateHighlight_EmptyNoteStoredAsNull(t *testing.T) {
	svc, m, _ := newTestService(t)
	seedDocument(t, m, "u1", "d1")

	empty := ""
	req := createReq(idA, "d1")
	req.Note = &empty

	h, err := svc.CreateHighlight(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Nil(t, h.Note)
}

func TestMergeHighlights_ReplacesOverlaps(t *testing.T) {
	svc, m, mock := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")

	note := "keep?"
	a := createReq(idA, "d1")
	a.Note = &note
	_, err := svc.CreateHighlight(ctx, "u1", a)
	require.NoError(t, err)
	_, err = svc.CreateHighlight(ctx, "u1", createReq(idB, "d1"))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	h, err := svc.MergeHighlights(ctx, "u1", &wire.MergeHighlightsRequest{
		ID: idC, ShortID: "s-c", DocumentID: "d1", Quote: "merged", Patch: "p",
		OverlapIDs: []string{idA, idB, "gone-already"},
	})
	require.NoError(t, err)
	assert.Equal(t, idC, h.ID)
	assert.Nil(t, h.Note)

	_, hs, err := svc.FetchDocument(ctx, "u1", &wire.FetchDocumentRequest{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, idC, hs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeHighlights_Errors(t *testing.T) {
	svc, m, mock := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")

	req := &wire.MergeHighlightsRequest{ID: idC, ShortID: "s", DocumentID: "d1", Quote: "q", Patch: "p"}
	_, err := svc.MergeHighlights(ctx, "u1", req)
	require.ErrorIs(t, err, common.ErrValidation)

	req.OverlapIDs = []string{idC}
	_, err = svc.MergeHighlights(ctx, "u1", req)
	require.ErrorIs(t, err, common.ErrValidation)

	mock.ExpectBegin()
	mock.ExpectRollback()
	req.DocumentID = "missing"
	req.OverlapIDs = []string{idA}
	_, err = svc.MergeHighlights(ctx, "u1", req)
	require.ErrorIs(t, err, common.ErrDocumentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateHighlight(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")
	_, err := svc.CreateHighlight(ctx, "u1", createReq(idA, "d1"))
	require.NoError(t, err)

	note := "edited"
	h, err := svc.UpdateHighlight(ctx, "u1", &wire.UpdateHighlightRequest{ID: idA, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "edited", *h.Note)

	h, err = svc.UpdateHighlight(ctx, "u1", &wire.UpdateHighlightRequest{ID: idA})
	require.NoError(t, err)
	assert.Nil(t, h.Note)

	_, err = svc.UpdateHighlight(ctx, "u1", &wire.UpdateHighlightRequest{ID: idB, Note: &note})
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.UpdateHighlight(ctx, "u2", &wire.UpdateHighlightRequest{ID: idA, Note: &note})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteHighlights(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")
	_, err := svc.CreateHighlight(ctx, "u1", createReq(idA, "d1"))
	require.NoError(t, err)

	n, err := svc.DeleteHighlights(ctx, "u1", &wire.DeleteHighlightsRequest{IDs: []string{idA, idB}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.DeleteHighlights(ctx, "u1", &wire.DeleteHighlightsRequest{})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdateReadingProgress(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, m, "u1", "d1")

	d, err := svc.UpdateReadingProgress(ctx, "u1", &wire.UpdateReadingProgressRequest{DocumentID: "d1", Percent: 60, AnchorIndex: 6})
	require.NoError(t, err)
	assert.Equal(t, 60.0, d.ProgressPercent)

	d, err = svc.UpdateReadingProgress(ctx, "u1", &wire.UpdateReadingProgressRequest{DocumentID: "d1", Percent: 20, AnchorIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, 60.0, d.ProgressPercent, "unforced update must not move backwards")

	d, err = svc.UpdateReadingProgress(ctx, "u1", &wire.UpdateReadingProgressRequest{DocumentID: "d1", Percent: 20, AnchorIndex: 2, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 20.0, d.ProgressPercent)
	assert.Equal(t, 2, d.ProgressAnchor)

	_, err = svc.UpdateReadingProgress(ctx, "u1", &wire.UpdateReadingProgressRequest{DocumentID: "d1", Percent: 101})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.UpdateReadingProgress(ctx, "u1", &wire.UpdateReadingProgressRequest{DocumentID: "nope", Percent: 5})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestContentURL(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	stubPresign(t, func(bucket, key string) (string, error) {
		return "http://s3.local/" + bucket + "/" + key + "?sig=1", nil
	})

	m.docs["u1/d1"] = &models.Document{ID: "d1", UserID: "u1", Title: "t", ContentRef: "books/d1.epub"}
	m.docs["u1/d2"] = &models.Document{ID: "d2", UserID: "u1", Title: "t"}

	url, expires, err := svc.ContentURL(ctx, "u1", &wire.ContentURLRequest{DocumentID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "http://s3.local/documents/books/d1.epub?sig=1", url)
	assert.Equal(t, fixed.Add(15*time.Minute), expires)

	_, _, err = svc.ContentURL(ctx, "u1", &wire.ContentURLRequest{DocumentID: "d2"})
	require.ErrorIs(t, err, common.ErrValidation)

	_, _, err = svc.ContentURL(ctx, "u1", &wire.ContentURLRequest{DocumentID: "d3"})
	require.ErrorIs(t, err, common.ErrNotFound)
}
