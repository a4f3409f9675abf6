package reconcile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/client/syncstate"
)

// RefetchKey is the metadata key holding the time of the last refetch of a document.
func RefetchKey(documentID string) string {
	return "last_refetch:" + documentID
}

// SyncPending retries every highlight that still owes the remote a call. It
// runs the retries with bounded parallelism and returns the first failure
// after all of them have finished.
func (e *Engine) SyncPending(ctx context.Context) error {
	pending, err := e.store.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	e.logger.Info(ctx, "syncing pending highlights", "count", len(pending))

	var (
		g       errgroup.Group
		deletes []string
	)
	g.SetLimit(e.syncParallelism)

	for _, h := range pending {
		switch {
		case h.Status == models.StatusLocalOnly && h.MergeTarget == "":
			id := h.ID
			g.Go(func() error {
				_, err := e.pushNew(ctx, id, nil)
				return err
			})
		case h.Status == models.StatusPendingUpdate:
			id := h.ID
			gen := e.generation(id)
			g.Go(func() error {
				_, err := e.pushUpdate(ctx, id, gen)
				return err
			})
		case h.Status == models.StatusPendingDelete:
			deletes = append(deletes, h.ID)
		}
	}
	if len(deletes) > 0 {
		g.Go(func() error {
			return e.pushDelete(ctx, deletes)
		})
	}
	return g.Wait()
}

// Refetch replaces the local copy of a document and its highlights with the
// remote's. Highlights with local work still pending survive, as do the rows
// absorbed by a merge that has not landed yet and the rows a remote result
// rewrote while the fetch was in flight. A reading position whose push has
// not gone through is kept and pushed again.
func (e *Engine) Refetch(ctx context.Context, documentID string) error {
	type fetched struct {
		doc        *models.Document
		highlights []models.Highlight
	}

	since := e.beginRefetch()
	defer e.endRefetch()

	res, err := call("refetch", func() (fetched, error) {
		d, hs, err := e.remote.FetchDocument(ctx, documentID)
		return fetched{d, hs}, err
	})
	if err != nil {
		return fmt.Errorf("fetch document %s: %w", documentID, err)
	}

	unlock := e.locks.Lock(progressLockKey(documentID))
	unpushed, err := e.progressUnpushed(ctx, documentID)
	if err != nil {
		unlock()
		return err
	}

	doc, remote := res.doc, res.highlights
	var keep *models.Document
	err = e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		if unpushed {
			if local, err := tx.Document(ctx, documentID); err == nil {
				doc.ProgressPercent, doc.ProgressAnchor = local.ProgressPercent, local.ProgressAnchor
				keep = local
			} else if !store.IsNotFound(err) {
				return err
			}
		}
		if err := tx.UpsertDocument(ctx, doc); err != nil {
			return err
		}

		local, err := tx.Highlights(ctx, documentID, true)
		if err != nil {
			return err
		}
		byID := make(map[string]models.Highlight, len(local))
		for _, h := range local {
			byID[h.ID] = h
		}

		recent := e.touchedSince(since)
		preserved := make(map[string]bool)
		for _, h := range local {
			if isPending(h.Status) || recent[h.ID] {
				preserved[h.ID] = true
				continue
			}
			if t, ok := byID[h.MergeTarget]; ok && isUnsentMerge(t.Status) {
				preserved[h.ID] = true
			}
		}

		remoteIDs := make(map[string]bool, len(remote))
		for _, h := range remote {
			remoteIDs[h.ID] = true
		}

		var gone []string
		for _, h := range local {
			if !preserved[h.ID] && !remoteIDs[h.ID] {
				gone = append(gone, h.ID)
			}
		}
		if err := tx.DeleteHighlights(ctx, gone...); err != nil {
			return err
		}

		for i := range remote {
			h := remote[i]
			// A row rewritten after the snapshot was taken is newer than
			// the snapshot, including one deleted locally since.
			if preserved[h.ID] || recent[h.ID] {
				continue
			}
			h.DocumentID = documentID
			if old, ok := byID[h.ID]; ok {
				h.CreatedByMe = old.CreatedByMe
			}
			if _, err := syncstate.Apply(&h, syncstate.EventResynced); err != nil {
				return err
			}
			if err := tx.UpsertHighlights(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return err
	}

	if err := e.store.Metadata().SetTime(ctx, RefetchKey(documentID), e.now()); err != nil {
		e.logger.Warn(ctx, "record refetch time", "document_id", documentID, "error", err)
	}
	e.logger.Info(ctx, "document refetched", "document_id", documentID, "highlights", len(remote))

	if keep != nil {
		if err := e.UpdateProgress(ctx, documentID, keep.ProgressPercent, keep.ProgressAnchor); err != nil {
			e.logger.Warn(ctx, "progress push after refetch failed", "document_id", documentID, "error", err)
		}
	}
	return nil
}

// UpdateProgress stores the reading position and pushes it to the remote as
// a forced (last writer wins) update. The local write stands even when the
// push fails; the position is then marked unpushed so a refetch does not
// replace it with the remote's.
func (e *Engine) UpdateProgress(ctx context.Context, documentID string, percent float64, anchorIndex int) error {
	unlock := e.locks.Lock(progressLockKey(documentID))
	defer unlock()

	if err := e.store.SetDocumentProgress(ctx, documentID, percent, anchorIndex); err != nil {
		return err
	}

	_, err := call("progress", func() (struct{}, error) {
		return struct{}{}, e.remote.UpdateReadingProgress(ctx, documentID, percent, anchorIndex, true)
	})
	metrics.ProgressPushes.WithLabelValues(client.Classify(err).String()).Inc()

	md := e.store.Metadata()
	if err != nil {
		e.logger.Warn(ctx, "progress push failed", "document_id", documentID, "percent", percent, "error", err)
		if mdErr := md.SetString(ctx, ProgressUnpushedKey(documentID), "1"); mdErr != nil {
			e.logger.Warn(ctx, "mark progress unpushed", "document_id", documentID, "error", mdErr)
		}
		return err
	}
	if mdErr := md.Delete(ctx, ProgressUnpushedKey(documentID)); mdErr != nil {
		e.logger.Warn(ctx, "clear progress unpushed mark", "document_id", documentID, "error", mdErr)
	}
	return nil
}

// ProgressUnpushedKey is the metadata key set while the stored reading
// position of a document has not reached the remote.
func ProgressUnpushedKey(documentID string) string {
	return "progress_unpushed:" + documentID
}

func (e *Engine) progressUnpushed(ctx context.Context, documentID string) (bool, error) {
	v, err := e.store.Metadata().GetString(ctx, ProgressUnpushedKey(documentID))
	if err != nil {
		return false, fmt.Errorf("read progress mark: %w", err)
	}
	return v != "", nil
}

func progressLockKey(documentID string) string {
	return "document:" + documentID
}

func isPending(s models.SyncStatus) bool {
	for _, p := range store.PendingStatuses {
		if s == p {
			return true
		}
	}
	return false
}

func isUnsentMerge(s models.SyncStatus) bool {
	return s == models.StatusLocalOnly || s == models.StatusPendingCreate || s == models.StatusPendingMerge
}
