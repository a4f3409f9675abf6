// Package clienttest provides an in-memory client.Remote for tests. It keeps
// the remote state in maps, treats highlight ids as natural keys like the real
// service does, and lets tests inject failures and hold calls in flight.
package clienttest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
)

// Op names a Remote method.
type Op string

const (
	OpSaveDocument   Op = "save_document"
	OpFetchDocument  Op = "fetch_document"
	OpContentURL     Op = "content_url"
	OpCreate         Op = "create"
	OpMerge          Op = "merge"
	OpUpdate         Op = "update"
	OpDelete         Op = "delete"
	OpUpdateProgress Op = "update_progress"
)

// Call records one invocation.
type Call struct {
	Op         Op
	ID         string
	OverlapIDs []string
	Note       *string
	Position   *client.Position
	Percent    float64
	Anchor     int
	Force      bool
	Err        error
}

type Remote struct {
	mu sync.Mutex

	documents  map[string]models.Document
	highlights map[string]models.Highlight
	progress   map[string]float64
	contentURL string

	calls   []Call
	errs    map[Op][]error
	gates   map[Op]chan struct{}
	entered chan Op
}

func NewRemote() *Remote {
	return &Remote{
		documents:  make(map[string]models.Document),
		highlights: make(map[string]models.Highlight),
		progress:   make(map[string]float64),
		errs:       make(map[Op][]error),
		gates:      make(map[Op]chan struct{}),
		entered:    make(chan Op, 64),
	}
}

// FailNext queues err for the next call of op. Queued errors are consumed in order.
func (r *Remote) FailNext(op Op, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[op] = append(r.errs[op], errs...)
}

// Hold makes calls of op block until the returned func is called. Entered
// reports every call that reached the hold.
func (r *Remote) Hold(op Op) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[op] = ch
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.gates, op)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Entered receives op each time a held call starts waiting.
func (r *Remote) Entered() <-chan Op {
	return r.entered
}

func (r *Remote) PutDocument(d models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[d.ID] = d
}

func (r *Remote) PutHighlight(h models.Highlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.Status = models.StatusSynced
	r.highlights[h.ID] = h
}

func (r *Remote) Highlight(id string) (models.Highlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.highlights[id]
	return h, ok
}

func (r *Remote) Progress(documentID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress[documentID]
}

func (r *Remote) SetContentURL(u string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentURL = u
}

// Calls returns the recorded calls, optionally filtered by op.
func (r *Remote) Calls(ops ...Op) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if len(ops) == 0 || slices.Contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// enter records c, waits on the op's hold and pops a queued failure.
func (r *Remote) enter(ctx context.Context, c Call) error {
	r.mu.Lock()
	gate := r.gates[c.Op]
	r.mu.Unlock()

	if gate != nil {
		r.entered <- c.Op
		select {
		case <-gate:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", client.ErrNetwork, ctx.Err())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if q := r.errs[c.Op]; len(q) > 0 {
		c.Err = q[0]
		r.errs[c.Op] = q[1:]
	}
	r.calls = append(r.calls, c)
	return c.Err
}

func (r *Remote) Ping(ctx context.Context) error { return nil }

func (r *Remote) SaveDocument(ctx context.Context, d models.Document) (*models.Document, error) {
	if err := r.enter(ctx, Call{Op: OpSaveDocument, ID: d.ID}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = fmt.Sprintf("doc-%d", len(r.documents)+1)
	}
	d.UpdatedAt = time.Now().UTC()
	r.documents[d.ID] = d
	return &d, nil
}

func (r *Remote) FetchDocument(ctx context.Context, documentID string) (*models.Document, []models.Highlight, error) {
	if err := r.enter(ctx, Call{Op: OpFetchDocument, ID: documentID}); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.documents[documentID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: document %s", client.ErrNotFound, documentID)
	}
	var hs []models.Highlight
	for _, h := range r.highlights {
		if h.DocumentID == documentID {
			hs = append(hs, h)
		}
	}
	slices.SortFunc(hs, func(a, b models.Highlight) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return &d, hs, nil
}

func (r *Remote) ContentURL(ctx context.Context, documentID string) (string, error) {
	if err := r.enter(ctx, Call{Op: OpContentURL, ID: documentID}); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contentURL, nil
}

// CreateHighlight is idempotent on h.ID and echoes the stored row.
func (r *Remote) CreateHighlight(ctx context.Context, h models.Highlight, pos *client.Position) (*models.Highlight, error) {
	note := h.Note
	if err := r.enter(ctx, Call{Op: OpCreate, ID: h.ID, Note: &note, Position: pos}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.highlights[h.ID]; ok {
		return &existing, nil
	}
	h.Status = models.StatusSynced
	h.PriorStatus = ""
	h.MergeTarget = ""
	h.MarkedForDeletion = false
	h.UpdatedAt = time.Now().UTC()
	r.highlights[h.ID] = h
	return &h, nil
}

// MergeHighlights drops the overlapped rows and stores h without a note, the
// way the service does.
func (r *Remote) MergeHighlights(ctx context.Context, h models.Highlight, overlapIDs []string) (*models.Highlight, error) {
	if err := r.enter(ctx, Call{Op: OpMerge, ID: h.ID, OverlapIDs: slices.Clone(overlapIDs)}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range overlapIDs {
		delete(r.highlights, id)
	}
	if existing, ok := r.highlights[h.ID]; ok {
		return &existing, nil
	}
	h.Note = ""
	h.Status = models.StatusSynced
	h.PriorStatus = ""
	h.MergeTarget = ""
	h.MarkedForDeletion = false
	h.UpdatedAt = time.Now().UTC()
	r.highlights[h.ID] = h
	return &h, nil
}

func (r *Remote) UpdateHighlight(ctx context.Context, id string, note *string) (*models.Highlight, error) {
	if err := r.enter(ctx, Call{Op: OpUpdate, ID: id, Note: note}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.highlights[id]
	if !ok {
		return nil, fmt.Errorf("%w: highlight %s", client.ErrNotFound, id)
	}
	if note != nil {
		h.Note = *note
	} else {
		h.Note = ""
	}
	h.UpdatedAt = time.Now().UTC()
	r.highlights[id] = h
	return &h, nil
}

func (r *Remote) DeleteHighlights(ctx context.Context, ids []string) error {
	if err := r.enter(ctx, Call{Op: OpDelete, OverlapIDs: slices.Clone(ids)}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.highlights, id)
	}
	return nil
}

func (r *Remote) UpdateReadingProgress(ctx context.Context, documentID string, percent float64, anchorIndex int, force bool) error {
	if err := r.enter(ctx, Call{Op: OpUpdateProgress, ID: documentID, Percent: percent, Anchor: anchorIndex, Force: force}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if force || percent > r.progress[documentID] {
		r.progress[documentID] = percent
	}
	return nil
}

func (r *Remote) Close() error { return nil }

var _ client.Remote = (*Remote)(nil)
