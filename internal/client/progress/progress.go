// Package progress turns renderer positions into a reading-progress
// percentage and pushes changes to the remote at a bounded rate.
package progress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/readkeeper/internal/logging"
)

// Percent is clamp((index+1)/total*100, 0, 100); a non-positive total yields 0.
func Percent(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(index+1) * 100 / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Pusher stores and forwards a reading position. The reconcile engine's
// UpdateProgress satisfies it.
type Pusher interface {
	UpdateProgress(ctx context.Context, documentID string, percent float64, anchorIndex int) error
}

// Position is a reported reading position.
type Position struct {
	Percent float64
	Anchor  int
}

// Tracker owns the progress state of one open document. Positions that do
// not change the stored value are never pushed; the rest are coalesced and
// pushed no more often than the configured interval allows.
type Tracker struct {
	documentID string
	pusher     Pusher
	logger     logging.Logger
	limiter    *rate.Limiter

	mu     sync.Mutex
	last   Position
	pushed Position

	pushMu sync.Mutex

	wake     chan struct{}
	stop     chan struct{}
	stopped  chan struct{}
	startOne sync.Once
	stopOne  sync.Once
}

// NewTracker starts from the stored position start. An interval of zero
// pushes every change immediately.
func NewTracker(documentID string, start Position, pusher Pusher, logger logging.Logger, interval time.Duration) *Tracker {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Tracker{
		documentID: documentID,
		pusher:     pusher,
		logger:     logger.With("module", "progress", "document_id", documentID),
		limiter:    rate.NewLimiter(limit, 1),
		last:       start,
		pushed:     start,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start runs the push loop until Close. ctx is used for the pushes.
func (t *Tracker) Start(ctx context.Context) {
	t.startOne.Do(func() {
		go t.loop(ctx)
	})
}

// Report records the renderer position and returns the resulting percent.
func (t *Tracker) Report(index, total int) float64 {
	p := Position{Percent: Percent(index, total), Anchor: index}

	t.mu.Lock()
	changed := p != t.last
	t.last = p
	t.mu.Unlock()

	if changed {
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
	return p.Percent
}

// Last returns the most recently reported position.
func (t *Tracker) Last() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Flush pushes the last position now if it has not been pushed yet.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.push(ctx)
}

// Close stops the push loop and flushes. It is safe to call more than once.
func (t *Tracker) Close(ctx context.Context) error {
	t.stopOne.Do(func() {
		close(t.stop)
	})
	t.startOne.Do(func() {
		close(t.stopped)
	})
	select {
	case <-t.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return t.Flush(ctx)
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.stopped)

	for {
		select {
		case <-t.stop:
			return
		case <-ctx.Done():
			return
		case <-t.wake:
		}

		if err := t.waitLimiter(ctx); err != nil {
			return
		}
		if err := t.push(ctx); err != nil {
			t.logger.Warn(ctx, "progress push failed, will retry on next change", "error", err)
		}
	}
}

// waitLimiter waits for a push slot, giving up when the tracker is closed.
func (t *Tracker) waitLimiter(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return t.limiter.Wait(ctx)
}

func (t *Tracker) push(ctx context.Context) error {
	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	t.mu.Lock()
	p := t.last
	if p == t.pushed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.pusher.UpdateProgress(ctx, t.documentID, p.Percent, p.Anchor); err != nil {
		return err
	}

	t.mu.Lock()
	t.pushed = p
	t.mu.Unlock()
	t.logger.Debug(ctx, "progress pushed", "percent", p.Percent, "anchor", p.Anchor)
	return nil
}
