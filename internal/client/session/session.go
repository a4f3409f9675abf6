// Package session adapts renderer callbacks for the open document to the
// reconcile engine and owns the document's reading-progress state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/client"
	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/progress"
	"github.com/dmitrijs2005/readkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/readkeeper/internal/client/store"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
	"github.com/dmitrijs2005/readkeeper/internal/task"
)

// Session is one open document. Closing it stops observation only; calls
// already dispatched to the remote run to completion.
type Session struct {
	engine   *reconcile.Engine
	store    *store.Store
	document models.Document
	progress *progress.Tracker
	logger   logging.Logger

	notices chan reconcile.Notice
	changes chan struct{}

	stopNotices func()
	stopWatch   func()
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// Open loads documentID and starts tracking its progress. progressInterval
// bounds how often position changes are pushed.
func Open(ctx context.Context, engine *reconcile.Engine, st *store.Store, documentID string, progressInterval time.Duration, logger logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	doc, err := st.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		engine:   engine,
		store:    st,
		document: *doc,
		logger:   logger.With("module", "session", "document_id", documentID),
		notices:  make(chan reconcile.Notice, 16),
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.progress = progress.NewTracker(documentID,
		progress.Position{Percent: doc.ProgressPercent, Anchor: doc.ProgressAnchor},
		engine, logger, progressInterval)
	s.progress.Start(context.WithoutCancel(ctx))

	notices, stopNotices := engine.Subscribe()
	watch, stopWatch := st.Watch()
	s.stopNotices = stopNotices
	s.stopWatch = stopWatch

	s.wg.Add(2)
	go s.forwardNotices(notices)
	go s.forwardChanges(watch)

	s.logger.Info(ctx, "document opened", "title", doc.Title)
	return s, nil
}

func (s *Session) Document() models.Document {
	return s.document
}

// Notices delivers engine notices about this document. Closed by Close.
func (s *Session) Notices() <-chan reconcile.Notice {
	return s.notices
}

// Changes signals that highlights or progress of this document changed in
// the store. Signals coalesce. Closed by Close.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Highlights returns the visible highlights of the document.
func (s *Session) Highlights(ctx context.Context) ([]models.Highlight, error) {
	return s.store.Highlights(ctx, s.document.ID, false)
}

// OnNewAnnotation records a highlight drawn by the renderer.
func (s *Session) OnNewAnnotation(ctx context.Context, patch, quote, note string) (*models.Highlight, *task.Task[string], error) {
	last := s.progress.Last()
	return s.engine.RecordNewAnnotation(ctx, reconcile.NewAnnotation{
		DocumentID: s.document.ID,
		Patch:      patch,
		Quote:      quote,
		Note:       note,
		Position:   &client.Position{Percent: last.Percent, AnchorIndex: last.Anchor},
	})
}

// OnPositionChanged reports the renderer position and returns the percent.
func (s *Session) OnPositionChanged(index, total int) float64 {
	return s.progress.Report(index, total)
}

// OnNoteRequested returns the note to prefill for a tapped annotation.
func (s *Session) OnNoteRequested(ctx context.Context, ann models.RenderedAnnotation) (string, bool) {
	return s.engine.ExtractExistingNote(ctx, ann)
}

// HighlightID resolves the highlight behind a rendered annotation.
func (s *Session) HighlightID(ctx context.Context, ann models.RenderedAnnotation) (string, bool) {
	return s.engine.ExtractHighlightID(ctx, ann)
}

func (s *Session) UpdateNote(ctx context.Context, highlightID, note string) (*task.Task[string], error) {
	return s.engine.UpdateNote(ctx, highlightID, note)
}

func (s *Session) DeleteHighlight(ctx context.Context, highlightID string) (*task.Task[string], error) {
	return s.engine.DeleteHighlight(ctx, highlightID)
}

// Close flushes progress and detaches the session's observers.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.progress.Close(ctx)
		if err != nil {
			s.logger.Warn(ctx, "final progress push failed", "error", err)
		}
		close(s.done)
		s.stopNotices()
		s.stopWatch()
		s.wg.Wait()
		close(s.notices)
		close(s.changes)
		s.logger.Info(ctx, "document closed")
	})
	return err
}

func (s *Session) forwardNotices(in <-chan reconcile.Notice) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			if n.DocumentID != "" && n.DocumentID != s.document.ID {
				continue
			}
			select {
			case s.notices <- n:
			default:
			}
		}
	}
}

func (s *Session) forwardChanges(in <-chan string) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case id, ok := <-in:
			if !ok {
				return
			}
			if id != s.document.ID {
				continue
			}
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}
}
