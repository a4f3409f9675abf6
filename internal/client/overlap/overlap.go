// Package overlap finds the existing highlights a newly drawn annotation
// collides with.
package overlap

import (
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// Resolve returns the ids of the visible highlights in existing whose geometry
// intersects g, in the order they appear in existing. A highlight overlaps
// when any of its rectangles intersects any rectangle of g. Highlights whose
// patch cannot be decoded are reported through skipped and never match.
func Resolve(g models.Geometry, existing []models.Highlight) (ids []string, skipped []string) {
	for _, h := range existing {
		if !h.Visible() {
			continue
		}
		other, err := models.DecodePatch(h.Patch)
		if err != nil {
			skipped = append(skipped, h.ID)
			continue
		}
		if g.Intersects(other) {
			ids = append(ids, h.ID)
		}
	}
	return ids, skipped
}

