package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/overlap"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
	"github.com/dmitrijs2005/readkeeper/internal/task"
)

const defaultSyncParallelism = 4

type Engine struct {
	store   *store.Store
	remote  client.Remote
	tracker *syncstate.Tracker
	logger  logging.Logger
	locks   *keyedMutex
	now     func() time.Time

	syncParallelism int

	mu         sync.Mutex
	updateGen  map[string]uint64
	mergeNotes map[string]string
	subs       map[int]chan Notice
	nextSub    int

	// Rows rewritten by reconciliation while a refetch is running, keyed by
	// id with the sequence number of the rewrite.
	refetches int
	touchSeq  uint64
	touched   map[string]uint64

	inflight sync.WaitGroup
}

type Option func(*Engine)

// WithSyncParallelism bounds concurrent calls during SyncPending.
func WithSyncParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.syncParallelism = n
		}
	}
}

// WithClock overrides time.Now for timestamps written by the engine.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(st *store.Store, remote client.Remote, logger logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	e := &Engine{
		store:           st,
		remote:          remote,
		tracker:         syncstate.NewTracker(st, logger),
		logger:          logger.With("module", "reconcile"),
		locks:           newKeyedMutex(),
		now:             func() time.Time { return time.Now().UTC() },
		syncParallelism: defaultSyncParallelism,
		updateGen:       make(map[string]uint64),
		mergeNotes:      make(map[string]string),
		subs:            make(map[int]chan Notice),
		touched:         make(map[string]uint64),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewAnnotation is a highlight freshly drawn in the renderer.
type NewAnnotation struct {
	DocumentID string
	Patch      string
	Quote      string
	Prefix     string
	Suffix     string
	Note       string

	// Position is forwarded with the first create attempt when known.
	Position *client.Position
}

// RecordNewAnnotation stores a new highlight and dispatches a create, or a
// merge when it overlaps visible highlights of the same document. Overlapped
// highlights are hidden at once and removed when the merge lands.
func (e *Engine) RecordNewAnnotation(ctx context.Context, in NewAnnotation) (*models.Highlight, *task.Task[string], error) {
	geom, geomErr := models.DecodePatch(in.Patch)
	if geomErr != nil {
		metrics.GeometryDecodeFailures.Inc()
		e.logger.Warn(ctx, "new annotation geometry not decodable, skipping overlap check",
			"document_id", in.DocumentID, "error", geomErr)
	}

	now := e.now()
	h := models.Highlight{
		ID:          common.NewHighlightID(),
		ShortID:     common.NewShortID(),
		DocumentID:  in.DocumentID,
		Quote:       in.Quote,
		Prefix:      in.Prefix,
		Suffix:      in.Suffix,
		Patch:       in.Patch,
		Note:        in.Note,
		CreatedByMe: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      models.StatusLocalOnly,
	}

	var overlapped []string
	err := e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.Document(ctx, in.DocumentID); err != nil {
			if store.IsNotFound(err) {
				return fmt.Errorf("%w: %s", common.ErrDocumentNotFound, in.DocumentID)
			}
			return err
		}
		if geomErr != nil {
			return tx.UpsertHighlights(ctx, h)
		}

		existing, err := tx.Highlights(ctx, in.DocumentID, false)
		if err != nil {
			return err
		}
		ids, skipped := overlap.Resolve(geom, existing)
		for _, id := range skipped {
			metrics.GeometryDecodeFailures.Inc()
			e.logger.Warn(ctx, "stored highlight geometry not decodable, treated as non-overlapping", "highlight_id", id)
		}
		overlapped = ids

		if len(ids) > 0 {
			absorbed := make([]models.Highlight, 0, len(ids))
			var notes []string
			for _, x := range existing {
				if !contains(ids, x.ID) {
					continue
				}
				if x.Note != "" {
					notes = append(notes, x.Note)
				}
				x.MarkedForDeletion = true
				x.MergeTarget = h.ID
				absorbed = append(absorbed, x)
			}
			if h.Note == "" {
				h.Note = strings.Join(notes, "\n")
			}
			if err := tx.UpsertHighlights(ctx, absorbed...); err != nil {
				return err
			}
		}
		return tx.UpsertHighlights(ctx, h)
	})
	if err != nil {
		return nil, nil, err
	}

	if geomErr != nil {
		e.notify(Notice{Kind: NoticeGeometryDecode, HighlightID: h.ID, DocumentID: h.DocumentID, Err: geomErr})
	}
	if len(overlapped) > 0 {
		e.mu.Lock()
		e.mergeNotes[h.ID] = h.Note
		e.mu.Unlock()
		e.logger.Info(ctx, "new annotation overlaps existing highlights", "highlight_id", h.ID, "overlaps", overlapped)
	}

	pos := in.Position
	t := e.spawn(ctx, func(ctx context.Context) (string, error) {
		return e.pushNew(ctx, h.ID, pos)
	})
	return &h, t, nil
}

// UpdateNote stores note locally and dispatches an update. Edits supersede
// earlier updates still waiting for their turn.
func (e *Engine) UpdateNote(ctx context.Context, id, note string) (*task.Task[string], error) {
	err := e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		h, err := tx.Highlight(ctx, id)
		if err != nil {
			return err
		}
		if h.MarkedForDeletion {
			return fmt.Errorf("%w: highlight %s is being removed", common.ErrNotFound, id)
		}
		_, err = e.tracker.AdvanceTx(ctx, tx, h, syncstate.EventEdit, func(h *models.Highlight) {
			h.Note = note
			h.UpdatedAt = e.now()
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, ok := e.mergeNotes[id]; ok {
		e.mergeNotes[id] = note
	}
	e.mu.Unlock()

	gen := e.bumpGeneration(id)
	return e.spawn(ctx, func(ctx context.Context) (string, error) {
		return e.pushUpdate(ctx, id, gen)
	}), nil
}

// DeleteHighlight hides the highlight at once and dispatches the delete. A
// highlight the remote never saw is removed locally without a call. Failure
// restores visibility and the prior state.
func (e *Engine) DeleteHighlight(ctx context.Context, id string) (*task.Task[string], error) {
	var targets []string
	err := e.store.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
		h, err := tx.Highlight(ctx, id)
		if err != nil {
			return err
		}
		if h.Status == models.StatusPendingDelete {
			return nil
		}
		if h.MarkedForDeletion {
			return fmt.Errorf("%w: highlight %s is merged away", common.ErrNotFound, id)
		}
		if _, err := e.tracker.AdvanceTx(ctx, tx, h, syncstate.EventRequestDelete, nil); err != nil {
			return err
		}
		targets = append(targets, id)

		sources, err := collectSources(ctx, id, tx.MergeSources)
		if err != nil {
			return err
		}
		// Sources stay linked to the target so a failed delete can put the
		// unsent merge back together. Rejected sources are released only
		// once the delete lands.
		for i := range sources {
			src := &sources[i]
			if src.Status == models.StatusConflictUnresolved || src.Status == models.StatusPendingDelete {
				continue
			}
			if _, err := e.tracker.AdvanceTx(ctx, tx, src, syncstate.EventRequestDelete, nil); err != nil {
				return err
			}
			targets = append(targets, src.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return task.Done(id, nil), nil
	}

	return e.spawn(ctx, func(ctx context.Context) (string, error) {
		return id, e.pushDelete(ctx, targets)
	}), nil
}

// ExtractHighlightID returns the highlight id behind a rendered annotation,
// falling back to a short-id lookup when the payload carries no id.
func (e *Engine) ExtractHighlightID(ctx context.Context, ann models.RenderedAnnotation) (string, bool) {
	if ann.Kind != models.KindHighlight || ann.Payload == nil {
		return "", false
	}
	if ann.Payload.ID != "" {
		return ann.Payload.ID, true
	}
	if ann.Payload.ShortID == "" || ann.Payload.DocumentID == "" {
		return "", false
	}
	h, err := e.store.FindByShortID(ctx, ann.Payload.DocumentID, ann.Payload.ShortID)
	if err != nil {
		return "", false
	}
	return h.ID, true
}

// ExtractExistingNote returns the note to prefill an editor with: a note
// edited in this session wins over the stored one.
func (e *Engine) ExtractExistingNote(ctx context.Context, ann models.RenderedAnnotation) (string, bool) {
	if ann.Kind != models.KindHighlight || ann.Payload == nil {
		return "", false
	}
	if ann.Payload.EditedNote != nil {
		return *ann.Payload.EditedNote, true
	}

	if ann.Payload.ID != "" {
		if h, err := e.store.Highlight(ctx, ann.Payload.ID); err == nil {
			return h.Note, true
		}
	}
	if ann.Payload.ShortID != "" && ann.Payload.DocumentID != "" {
		if h, err := e.store.FindByShortID(ctx, ann.Payload.DocumentID, ann.Payload.ShortID); err == nil {
			return h.Note, true
		}
	}
	return "", false
}

// Wait blocks until every dispatched call has finished or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for in-flight calls and detaches all notice subscribers.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Wait(ctx)
	e.mu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()
	return err
}

func (e *Engine) spawn(ctx context.Context, fn func(ctx context.Context) (string, error)) *task.Task[string] {
	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	return task.Go(func() (string, error) {
		defer e.inflight.Done()
		return fn(ctx)
	})
}

func (e *Engine) bumpGeneration(id string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateGen[id]++
	return e.updateGen[id]
}

func (e *Engine) generation(id string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateGen[id]
}

// rekey moves the per-highlight bookkeeping of from to to after the remote
// assigned a different canonical id.
func (e *Engine) rekey(from, to string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen, ok := e.updateGen[from]; ok {
		e.updateGen[to] += gen
		delete(e.updateGen, from)
	}
	if note, ok := e.mergeNotes[from]; ok {
		e.mergeNotes[to] = note
		delete(e.mergeNotes, from)
	}
}

// touch records that ids were rewritten from a remote result. Callers touch
// inside the store transaction, so a refetch applying its snapshot later
// sees the mark.
func (e *Engine) touch(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refetches == 0 {
		return
	}
	e.touchSeq++
	for _, id := range ids {
		e.touched[id] = e.touchSeq
	}
}

func (e *Engine) beginRefetch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refetches++
	return e.touchSeq
}

func (e *Engine) endRefetch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refetches--
	if e.refetches == 0 {
		clear(e.touched)
	}
}

// touchedSince returns the ids rewritten after sequence number seq.
func (e *Engine) touchedSince(seq uint64) map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool)
	for id, n := range e.touched {
		if n > seq {
			out[id] = true
		}
	}
	return out
}

func (e *Engine) takeMergeNote(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	note, ok := e.mergeNotes[id]
	delete(e.mergeNotes, id)
	return note, ok
}

// collectSources walks merge targets transitively: a pending merge may absorb
// another pending merge.
func collectSources(ctx context.Context, id string, list func(ctx context.Context, id string) ([]models.Highlight, error)) ([]models.Highlight, error) {
	var out []models.Highlight
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		hs, err := list(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			out = append(out, h)
			queue = append(queue, h.ID)
		}
	}
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func idsOf(hs []models.Highlight) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.ID)
	}
	return out
}

// errSkipped aborts a store transaction when a dispatch turns out to be moot.
var errSkipped = errors.New("skipped")
