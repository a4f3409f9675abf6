package syncstate

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
)

// Tracker persists state transitions through the Annotation Store.
type Tracker struct {
	store  *store.Store
	logger logging.Logger
}

func NewTracker(st *store.Store, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Tracker{store: st, logger: logger.With("module", "syncstate")}
}

// Advance applies ev to the stored highlight id in one transaction. mutate,
// when non-nil, runs on the row before the transition. The returned highlight
// is nil when the transition removed the row.
func (t *Tracker) Advance(ctx context.Context, id string, ev Event, mutate func(h *models.Highlight)) (*models.Highlight, error) {
	var result *models.Highlight
	err := t.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		h, err := tx.Highlight(ctx, id)
		if err != nil {
			return err
		}
		result, err = t.AdvanceTx(ctx, tx, h, ev, mutate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdvanceTx is Advance for callers already inside a store transaction.
func (t *Tracker) AdvanceTx(ctx context.Context, tx *store.Tx, h *models.Highlight, ev Event, mutate func(h *models.Highlight)) (*models.Highlight, error) {
	from := h.Status
	if mutate != nil {
		mutate(h)
	}

	remove, err := Apply(h, ev)
	if err != nil {
		return nil, err
	}
	t.logger.Debug(ctx, "transition", "highlight_id", h.ID, "event", ev.String(), "from", from, "to", h.Status, "removed", remove)

	if remove {
		return nil, tx.DeleteHighlights(ctx, h.ID)
	}
	if err := tx.UpsertHighlights(ctx, *h); err != nil {
		return nil, err
	}
	return h, nil
}
