package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/client/repositories/documents"
	"github.com/dmitrijs2005/readkeeper/internal/client/repositories/highlights"
	"github.com/dmitrijs2005/readkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	"github.com/dmitrijs2005/readkeeper/internal/logging"
)

// PendingStatuses are the statuses that still owe the remote a call.
var PendingStatuses = []models.SyncStatus{
	models.StatusLocalOnly,
	models.StatusPendingCreate,
	models.StatusPendingMerge,
	models.StatusPendingUpdate,
	models.StatusPendingDelete,
}

type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger logging.Logger

	documents  documents.Repository
	highlights highlights.Repository
	metadata   *metadata.SQLiteRepository

	watchMu  sync.Mutex
	watchers map[int]chan string
	nextID   int
}

// New wraps an already migrated database.
func New(db *sql.DB, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Store{
		db:         db,
		logger:     logger.With("module", "store"),
		documents:  documents.NewSQLiteRepository(db),
		highlights: highlights.NewSQLiteRepository(db),
		metadata:   metadata.NewSQLiteRepository(db),
		watchers:   make(map[int]chan string),
	}
}

// Open opens (creating if needed) the database at path and resets highlights
// whose remote call was interrupted by a previous shutdown.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}

	s := New(db, logger)
	if err := s.recoverInterrupted(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.watchMu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.watchMu.Unlock()
	return s.db.Close()
}

// Metadata exposes the key/value settings table.
func (s *Store) Metadata() metadata.Repository {
	return s.metadata
}

// Update runs fn inside one write transaction. Returning an error rolls back
// every write fn made.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.mu.Lock()
	var touched map[string]struct{}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, db dbx.DBTX) error {
		tx := newTx(db)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		touched = tx.touched
		return nil
	})
	s.mu.Unlock()

	if err == nil {
		s.broadcast(touched)
	}
	return err
}

// Get returns the document or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, documentID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents.GetByID(ctx, documentID)
}

// GetWithHighlights returns the document together with its visible highlights.
func (s *Store) GetWithHighlights(ctx context.Context, documentID string) (*models.Document, []models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	hs, err := s.highlights.ListByDocument(ctx, documentID, false)
	if err != nil {
		return nil, nil, err
	}
	return d, hs, nil
}

func (s *Store) Documents(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents.List(ctx)
}

func (s *Store) Highlight(ctx context.Context, id string) (*models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlights.GetByID(ctx, id)
}

func (s *Store) Highlights(ctx context.Context, documentID string, includeHidden bool) ([]models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlights.ListByDocument(ctx, documentID, includeHidden)
}

func (s *Store) FindByShortID(ctx context.Context, documentID, shortID string) (*models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlights.FindByShortID(ctx, documentID, shortID)
}

// MergeSources returns the hidden rows absorbed by the pending merge into targetID.
func (s *Store) MergeSources(ctx context.Context, targetID string) ([]models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlights.ListByMergeTarget(ctx, targetID)
}

// Pending lists every highlight that still owes the remote a call.
func (s *Store) Pending(ctx context.Context) ([]models.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlights.ListByStatus(ctx, PendingStatuses...)
}

func (s *Store) UpsertDocument(ctx context.Context, d *models.Document) error {
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.UpsertDocument(ctx, d)
	})
}

// UpsertHighlights writes all highlights or none.
func (s *Store) UpsertHighlights(ctx context.Context, hs []models.Highlight) error {
	if len(hs) == 0 {
		return nil
	}
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.UpsertHighlights(ctx, hs...)
	})
}

// DeleteHighlights hard-deletes all ids or none.
func (s *Store) DeleteHighlights(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.DeleteHighlights(ctx, ids...)
	})
}

func (s *Store) SetDocumentProgress(ctx context.Context, id string, percent float64, anchor int) error {
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.SetDocumentProgress(ctx, id, percent, anchor)
	})
}

func (s *Store) SetDocumentLocalPath(ctx context.Context, id, path string) error {
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.SetDocumentLocalPath(ctx, id, path)
	})
}

// Watch subscribes to committed writes. The channel receives the id of every
// document touched by a write; slow watchers miss notifications rather than
// stall writers. The returned func unsubscribes.
func (s *Store) Watch() (<-chan string, func()) {
	ch := make(chan string, 16)

	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	return ch, func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if c, ok := s.watchers[id]; ok {
			close(c)
			delete(s.watchers, id)
		}
	}
}

func (s *Store) broadcast(documentIDs map[string]struct{}) {
	if len(documentIDs) == 0 {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for docID := range documentIDs {
		for _, ch := range s.watchers {
			select {
			case ch <- docID:
			default:
			}
		}
	}
}

// recoverInterrupted moves highlights stuck in an in-flight create or merge
// back to LocalOnly; no call survives a restart. Pending deletes keep their
// in-flight PriorStatus: it marks a row the remote may hold (see
// Highlight.MayExistRemotely), so the delete is still sent.
func (s *Store) recoverInterrupted(ctx context.Context) error {
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		stuck, err := tx.HighlightsByStatus(ctx, models.StatusPendingCreate, models.StatusPendingMerge)
		if err != nil {
			return err
		}
		for i := range stuck {
			stuck[i].Status = models.StatusLocalOnly
			s.logger.Info(ctx, "recovered interrupted highlight", "highlight_id", stuck[i].ID)
		}
		return tx.UpsertHighlights(ctx, stuck...)
	})
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
