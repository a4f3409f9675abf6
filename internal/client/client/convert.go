package client

import (
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
)

// FromWireHighlight converts a service highlight into a local row in the
// Synced state.
func FromWireHighlight(h wire.Highlight) *models.Highlight {
	out := &models.Highlight{
		ID:          h.ID,
		ShortID:     h.ShortID,
		DocumentID:  h.DocumentID,
		Quote:       h.Quote,
		Prefix:      h.Prefix,
		Suffix:      h.Suffix,
		Patch:       h.Patch,
		CreatedByMe: h.CreatedByMe,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
		Status:      models.StatusSynced,
	}
	if h.Note != nil {
		out.Note = *h.Note
	}
	return out
}

func FromWireDocument(d wire.Document) *models.Document {
	out := &models.Document{
		ID:              d.ID,
		Title:           d.Title,
		ContentRef:      d.ContentRef,
		ProgressPercent: d.ProgressPercent,
		ProgressAnchor:  d.ProgressAnchor,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, l := range d.Labels {
		out.Labels = append(out.Labels, models.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return out
}

func toWireLabels(labels []models.Label) []wire.Label {
	if len(labels) == 0 {
		return nil
	}
	out := make([]wire.Label, 0, len(labels))
	for _, l := range labels {
		out = append(out, wire.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return out
}
