package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntersects(t *testing.T) {
	base := Rect{Page: 1, X: 0, Y: 0, Width: 10, Height: 10}

	tests := []struct {
		name string
		o    Rect
		want bool
	}{
		{"overlapping", Rect{Page: 1, X: 5, Y: 5, Width: 10, Height: 10}, true},
		{"contained", Rect{Page: 1, X: 2, Y: 2, Width: 1, Height: 1}, true},
		{"touching edge", Rect{Page: 1, X: 10, Y: 0, Width: 5, Height: 10}, false},
		{"disjoint", Rect{Page: 1, X: 20, Y: 20, Width: 5, Height: 5}, false},
		{"other page", Rect{Page: 2, X: 0, Y: 0, Width: 10, Height: 10}, false},
		{"zero width", Rect{Page: 1, X: 5, Y: 5, Width: 0, Height: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Intersects(tt.o))
			assert.Equal(t, tt.want, tt.o.Intersects(base))
		})
	}
}

func TestGeometryIntersects_AnyPair(t *testing.T) {
	g := Geometry{Rects: []Rect{{X: 0, Width: 10, Height: 1}, {X: 0, Y: 2, Width: 10, Height: 1}}}
	o := Geometry{Rects: []Rect{{X: 50, Width: 1, Height: 1}, {X: 5, Y: 2.5, Width: 1, Height: 1}}}
	assert.True(t, g.Intersects(o))
	assert.False(t, g.Intersects(Geometry{}))
}

func TestPatchRoundTrip(t *testing.T) {
	g := Geometry{Rects: []Rect{{Page: 3, X: 1.5, Y: 2, Width: 4, Height: 0.5}}}
	patch, err := EncodePatch(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rects":[{"page":3,"x":1.5,"y":2,"w":4,"h":0.5}]}`, patch)

	got, err := DecodePatch(patch)
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestDecodePatch_Failures(t *testing.T) {
	for _, patch := range []string{
		"",
		"not json",
		`{"rects":[]}`,
		`{"rects":[{"x":0,"y":0,"w":-1,"h":1}]}`,
	} {
		_, err := DecodePatch(patch)
		require.ErrorIs(t, err, ErrGeometryDecode, patch)
	}
}

func TestHighlightVisibilityAndRemoteKnowledge(t *testing.T) {
	h := Highlight{Status: StatusSynced}
	assert.True(t, h.Visible())
	assert.True(t, h.KnownRemotely())

	h.MarkedForDeletion = true
	h.PriorStatus = StatusLocalOnly
	h.Status = StatusPendingDelete
	assert.False(t, h.Visible())
	assert.False(t, h.KnownRemotely())
	assert.False(t, h.MayExistRemotely())

	h.PriorStatus = StatusPendingMerge
	assert.False(t, h.KnownRemotely())
	assert.True(t, h.MayExistRemotely())

	assert.True(t, StatusConflictUnresolved.Valid())
	assert.False(t, SyncStatus("bogus").Valid())
}

func TestNewRenderedAnnotation_ClassifiesOnce(t *testing.T) {
	p := PayloadFor(Highlight{ID: "id", ShortID: "sid", Quote: "q", DocumentID: "d"})

	a := NewRenderedAnnotation("Highlight", "{}", p)
	assert.Equal(t, KindHighlight, a.Kind)
	assert.Equal(t, "id", a.Payload.ID)
	assert.Nil(t, a.Payload.EditedNote)

	assert.Equal(t, KindOther, NewRenderedAnnotation("Ink", "{}", nil).Kind)
}
