package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/client/syncstate"
)

const (
	opCreate = "create"
	opMerge  = "merge"
	opUpdate = "update"
	opDelete = "delete"
)

// call runs one remote operation with in-flight and latency accounting.
func call[T any](op string, fn func() (T, error)) (T, error) {
	metrics.InFlight.Inc()
	started := time.Now()
	v, err := fn()
	metrics.InFlight.Dec()
	metrics.ObserveCall(op, client.Classify(err).String(), started)
	return v, err
}

// pushNew sends a LocalOnly highlight as a create, or as a merge when it
// absorbed highlights the remote already knows. The request is keyed by the
// local id, so a retry after an unknown outcome cannot duplicate it.
func (e *Engine) pushNew(ctx context.Context, id string, pos *client.Position) (string, error) {
	sources, err := collectSources(ctx, id, e.store.MergeSources)
	if err != nil {
		return id, err
	}
	unlock := e.locks.Lock(append([]string{id}, idsOf(sources)...)...)
	defer unlock()

	var (
		h         models.Highlight
		remoteIDs []string
		op        = opCreate
	)
	err = e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := tx.Highlight(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return errSkipped
			}
			return err
		}
		if cur.Status != models.StatusLocalOnly || cur.MergeTarget != "" {
			return errSkipped
		}

		srcs, err := collectSources(ctx, id, tx.MergeSources)
		if err != nil {
			return err
		}
		remoteIDs = remoteIDs[:0]
		for _, s := range srcs {
			if s.KnownRemotely() {
				remoteIDs = append(remoteIDs, s.ID)
			}
		}

		ev := syncstate.EventDispatchCreate
		if len(remoteIDs) > 0 {
			ev = syncstate.EventDispatchMerge
			op = opMerge
		}
		next, err := e.tracker.AdvanceTx(ctx, tx, cur, ev, nil)
		if err != nil {
			return err
		}
		h = *next
		return nil
	})
	if errors.Is(err, errSkipped) {
		return id, nil
	}
	if err != nil {
		return id, err
	}

	e.logger.Debug(ctx, "dispatch", "op", op, "highlight_id", id, "overlaps", remoteIDs)
	resp, callErr := call(op, func() (*models.Highlight, error) {
		if op == opMerge {
			return e.remote.MergeHighlights(ctx, h, remoteIDs)
		}
		return e.remote.CreateHighlight(ctx, h, pos)
	})
	return e.finishNew(ctx, id, op, resp, callErr)
}

func (e *Engine) finishNew(ctx context.Context, id, op string, resp *models.Highlight, callErr error) (string, error) {
	failure := client.Classify(callErr)
	mergeNote, hasMergeNote := e.takeMergeNote(id)
	if failure != client.FailureNone && hasMergeNote {
		e.mu.Lock()
		e.mergeNotes[id] = mergeNote
		e.mu.Unlock()
	}

	finalID := id
	var (
		conflict   bool
		needUpdate bool
		documentID string
	)
	err := e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := tx.Highlight(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return errSkipped
			}
			return err
		}
		documentID = cur.DocumentID
		switch cur.Status {
		case models.StatusPendingCreate, models.StatusPendingMerge, models.StatusPendingDelete:
		default:
			return errSkipped
		}
		sources, err := collectSources(ctx, id, tx.MergeSources)
		if err != nil {
			return err
		}
		e.touch(append([]string{id}, idsOf(sources)...)...)

		// A delete was requested while the call was in flight; record what
		// the remote now holds so the pending delete knows whether to call out.
		if cur.Status == models.StatusPendingDelete {
			switch failure {
			case client.FailureNone:
				cur.PriorStatus = models.StatusSynced
				if err := tx.DeleteHighlights(ctx, idsOf(sources)...); err != nil {
					return err
				}
			case client.FailureNetwork:
				cur.PriorStatus = models.StatusLocalOnly
			default:
				cur.PriorStatus = models.StatusConflictUnresolved
			}
			return tx.UpsertHighlights(ctx, *cur)
		}

		switch failure {
		case client.FailureNone:
			if err := tx.DeleteHighlights(ctx, idsOf(sources)...); err != nil {
				return err
			}
			local := cur.Note
			if local == "" && hasMergeNote {
				local = mergeNote
			}
			next, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventSucceeded, func(h *models.Highlight) {
				applyResponse(h, resp)
				h.Note = local
			})
			if err != nil {
				return err
			}
			if resp != nil && resp.Note != local && next.MergeTarget == "" {
				if _, err := e.tracker.AdvanceTx(ctx, tx, next, syncstate.EventEdit, nil); err != nil {
					return err
				}
				needUpdate = true
			}
			if resp != nil && resp.ID != "" && resp.ID != id {
				finalID = resp.ID
				e.touch(finalID)
				moved := *next
				moved.ID = resp.ID
				if err := tx.DeleteHighlights(ctx, id); err != nil {
					return err
				}
				return tx.UpsertHighlights(ctx, moved)
			}
			return nil
		case client.FailureNetwork:
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventNetworkFailed, nil)
			return err
		default:
			conflict = true
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventValidationFailed, nil)
			return err
		}
	})
	if errors.Is(err, errSkipped) {
		return id, callErr
	}
	if err != nil {
		return id, err
	}

	switch {
	case failure == client.FailureNetwork:
		e.logger.Warn(ctx, "remote unreachable, highlight kept local", "op", op, "highlight_id", id, "error", callErr)
		return id, callErr
	case conflict:
		e.logger.Error(ctx, "remote rejected highlight", "op", op, "highlight_id", id, "error", callErr)
		e.notify(Notice{Kind: NoticeConflict, HighlightID: id, DocumentID: documentID, Err: callErr})
		return id, callErr
	case failure != client.FailureNone:
		return id, callErr
	}

	if finalID != id {
		e.rekey(id, finalID)
	}
	e.logger.Info(ctx, "highlight synced", "op", op, "highlight_id", finalID)
	if needUpdate {
		if err := e.sendUpdate(ctx, finalID); err != nil {
			return finalID, err
		}
	}
	return finalID, nil
}

// pushUpdate sends the note of id unless a newer edit has superseded gen.
func (e *Engine) pushUpdate(ctx context.Context, id string, gen uint64) (string, error) {
	unlock := e.locks.Lock(id)

	if gen != e.generation(id) {
		unlock()
		e.logger.Debug(ctx, "update superseded", "highlight_id", id, "generation", gen)
		return id, nil
	}

	h, err := e.store.Highlight(ctx, id)
	if err != nil {
		unlock()
		if store.IsNotFound(err) {
			return id, nil
		}
		return id, err
	}

	switch {
	case h.Status == models.StatusLocalOnly:
		// Never sent: the create carries the note.
		unlock()
		return e.pushNew(ctx, id, nil)
	case h.Status == models.StatusPendingUpdate && h.MergeTarget == "":
		defer unlock()
		return id, e.sendUpdate(ctx, id)
	default:
		unlock()
		return id, nil
	}
}

// sendUpdate pushes the current local note of id. Callers hold the id lock.
func (e *Engine) sendUpdate(ctx context.Context, id string) error {
	h, err := e.store.Highlight(ctx, id)
	if err != nil {
		return err
	}
	note := h.Note

	resp, callErr := call(opUpdate, func() (*models.Highlight, error) {
		return e.remote.UpdateHighlight(ctx, id, &note)
	})
	failure := client.Classify(callErr)

	var notice *Notice
	err = e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := tx.Highlight(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return errSkipped
			}
			return err
		}
		e.touch(id)

		if cur.Status == models.StatusPendingDelete {
			switch {
			case failure == client.FailureNone && cur.PriorStatus == models.StatusPendingUpdate && cur.Note == note:
				cur.PriorStatus = models.StatusSynced
				return tx.UpsertHighlights(ctx, *cur)
			case failure == client.FailureNotFound:
				return tx.DeleteHighlights(ctx, id)
			}
			return nil
		}
		if cur.Status != models.StatusPendingUpdate {
			return nil
		}

		switch failure {
		case client.FailureNone:
			if cur.Note != note {
				// Edited again while in flight; the newer note goes out next.
				return nil
			}
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventSucceeded, func(h *models.Highlight) {
				if resp != nil && !resp.UpdatedAt.IsZero() {
					h.UpdatedAt = resp.UpdatedAt
				}
			})
			return err
		case client.FailureNetwork:
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventNetworkFailed, nil)
			return err
		case client.FailureNotFound:
			notice = &Notice{Kind: NoticeRemovedRemotely, HighlightID: id, DocumentID: cur.DocumentID, Err: callErr}
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventGone, nil)
			return err
		default:
			notice = &Notice{Kind: NoticeConflict, HighlightID: id, DocumentID: cur.DocumentID, Err: callErr}
			_, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventValidationFailed, nil)
			return err
		}
	})
	if err != nil && !errors.Is(err, errSkipped) {
		return err
	}

	if notice != nil {
		e.logger.Warn(ctx, "note update not applied", "highlight_id", id, "kind", notice.Kind.String(), "error", callErr)
		e.notify(*notice)
	}
	if failure == client.FailureNetwork {
		e.logger.Warn(ctx, "remote unreachable, note update pending", "highlight_id", id, "error", callErr)
	}
	return callErr
}

// pushDelete removes ids remotely, then locally. Rows the remote never saw
// need no call, but they are only dropped together with the rest of the
// batch, so a failed call restores every row as it was.
func (e *Engine) pushDelete(ctx context.Context, ids []string) error {
	unlock := e.locks.Lock(ids...)
	defer unlock()

	var (
		remoteIDs []string
		rows      []models.Highlight
	)
	err := e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		for _, id := range ids {
			h, err := tx.Highlight(ctx, id)
			if err != nil {
				if store.IsNotFound(err) {
					continue
				}
				return err
			}
			if h.Status != models.StatusPendingDelete {
				continue
			}
			rows = append(rows, *h)
			if h.MayExistRemotely() {
				remoteIDs = append(remoteIDs, h.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var callErr error
	if len(remoteIDs) > 0 {
		_, callErr = call(opDelete, func() (struct{}, error) {
			return struct{}{}, e.remote.DeleteHighlights(ctx, remoteIDs)
		})
	}
	failure := client.Classify(callErr)

	if failure == client.FailureNone || failure == client.FailureNotFound {
		return e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
			deleted := idsOf(rows)
			e.touch(deleted...)
			if err := tx.DeleteHighlights(ctx, deleted...); err != nil {
				return err
			}
			return releaseSources(ctx, tx, deleted)
		})
	}

	var restored []models.Highlight
	err = e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		restored = restored[:0]
		e.touch(idsOf(rows)...)
		for i := range rows {
			cur, err := tx.Highlight(ctx, rows[i].ID)
			if err != nil {
				if store.IsNotFound(err) {
					continue
				}
				return err
			}
			if cur.Status != models.StatusPendingDelete {
				continue
			}
			next, err := e.tracker.AdvanceTx(ctx, tx, cur, syncstate.EventNetworkFailed, nil)
			if err != nil {
				return err
			}
			if next.MergeTarget == "" {
				restored = append(restored, *next)
				continue
			}
			// Absorbed by a merge that is still unsent: hide it again.
			if _, err := tx.Highlight(ctx, next.MergeTarget); err != nil {
				if !store.IsNotFound(err) {
					return err
				}
				next.MergeTarget = ""
				restored = append(restored, *next)
			} else {
				next.MarkedForDeletion = true
			}
			if err := tx.UpsertHighlights(ctx, *next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Warn(ctx, "delete failed, highlights restored", "highlight_ids", idsOf(rows), "error", callErr)
	for _, r := range restored {
		e.notify(Notice{Kind: NoticeDeleteRolledBack, HighlightID: r.ID, DocumentID: r.DocumentID, Err: callErr})
	}
	return callErr
}

// releaseSources makes rows absorbed by the deleted targets visible again.
// Only rows the remote rejected are still linked at this point.
func releaseSources(ctx context.Context, tx *store.Tx, targets []string) error {
	for _, id := range targets {
		sources, err := tx.MergeSources(ctx, id)
		if err != nil {
			return err
		}
		for i := range sources {
			sources[i].MergeTarget = ""
			sources[i].MarkedForDeletion = false
		}
		if err := tx.UpsertHighlights(ctx, sources...); err != nil {
			return err
		}
	}
	return nil
}

// applyResponse copies the authoritative fields of a create or merge response.
func applyResponse(h *models.Highlight, resp *models.Highlight) {
	if resp == nil {
		return
	}
	if resp.ShortID != "" {
		h.ShortID = resp.ShortID
	}
	if resp.Quote != "" {
		h.Quote = resp.Quote
	}
	if resp.Patch != "" {
		h.Patch = resp.Patch
	}
	if !resp.UpdatedAt.IsZero() {
		h.UpdatedAt = resp.UpdatedAt
	}
}
