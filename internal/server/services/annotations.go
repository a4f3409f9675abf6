// Package services implements the annotation service behind the gRPC
// transport: request validation, per-user document and highlight storage,
// and presigned content URLs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/dbx"
	sc "github.com/dmitrijs2005/readkeeper/internal/server/config"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
	"github.com/dmitrijs2005/readkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"github.com/go-playground/validator/v10"
)

type AnnotationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	validate    *validator.Validate
	now         func() time.Time
}

func NewAnnotationService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *AnnotationService {
	return &AnnotationService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

func (s *AnnotationService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

// SaveDocument creates or renames a document and replaces its labels.
func (s *AnnotationService) SaveDocument(ctx context.Context, userID string, req *wire.SaveDocumentRequest) (*models.Document, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	labels := make([]models.Label, 0, len(req.Labels))
	for _, l := range req.Labels {
		labels = append(labels, models.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}

	var out *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)
		d := &models.Document{ID: req.ID, UserID: userID, Title: req.Title, ContentRef: req.ContentRef}
		if err := docs.Upsert(ctx, d); err != nil {
			return err
		}
		if err := docs.ReplaceLabels(ctx, userID, req.ID, labels); err != nil {
			return err
		}
		var err error
		out, err = docs.Get(ctx, userID, req.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return out, nil
}

// FetchDocument returns the document and all of its highlights.
func (s *AnnotationService) FetchDocument(ctx context.Context, userID string, req *wire.FetchDocumentRequest) (*models.Document, []*models.Highlight, error) {
	if err := s.check(req); err != nil {
		return nil, nil, err
	}

	d, err := s.repomanager.Documents(s.db).Get(ctx, userID, req.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	hs, err := s.repomanager.Highlights(s.db).ListByDocument(ctx, userID, req.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	return d, hs, nil
}

// CreateHighlight stores a new highlight. Repeating the call with the same id
// returns the stored row unchanged.
func (s *AnnotationService) CreateHighlight(ctx context.Context, userID string, req *wire.CreateHighlightRequest) (*models.Highlight, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := s.requireDocument(ctx, s.db, userID, req.DocumentID); err != nil {
		return nil, err
	}

	h := &models.Highlight{
		ID:              req.ID,
		UserID:          userID,
		DocumentID:      req.DocumentID,
		ShortID:         req.ShortID,
		Quote:           req.Quote,
		Prefix:          req.Prefix,
		Suffix:          req.Suffix,
		Patch:           req.Patch,
		Note:            normalizeNote(req.Note),
		PositionPercent: req.HighlightPositionPercent,
		PositionAnchor:  req.HighlightPositionAnchorIndex,
	}
	return s.insertOrGet(ctx, s.repomanager.Highlights(s.db), h)
}

// MergeHighlights stores the merged highlight without a note and removes the
// overlapped ones in a single transaction. Overlap ids that no longer exist
// are ignored.
func (s *AnnotationService) MergeHighlights(ctx context.Context, userID string, req *wire.MergeHighlightsRequest) (*models.Highlight, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if slices.Contains(req.OverlapIDs, req.ID) {
		return nil, fmt.Errorf("%w: highlight %s overlaps itself", common.ErrValidation, req.ID)
	}

	var out *models.Highlight
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireDocument(ctx, tx, userID, req.DocumentID); err != nil {
			return err
		}

		hs := s.repomanager.Highlights(tx)
		h, err := s.insertOrGet(ctx, hs, &models.Highlight{
			ID:         req.ID,
			UserID:     userID,
			DocumentID: req.DocumentID,
			ShortID:    req.ShortID,
			Quote:      req.Quote,
			Prefix:     req.Prefix,
			Suffix:     req.Suffix,
			Patch:      req.Patch,
		})
		if err != nil {
			return err
		}
		if _, err := hs.DeleteInDocument(ctx, userID, req.DocumentID, req.OverlapIDs); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateHighlight replaces the note. Unknown ids fail with common.ErrNotFound.
func (s *AnnotationService) UpdateHighlight(ctx context.Context, userID string, req *wire.UpdateHighlightRequest) (*models.Highlight, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.repomanager.Highlights(s.db).UpdateNote(ctx, userID, req.ID, normalizeNote(req.Note))
}

// DeleteHighlights removes the listed highlights and reports how many existed.
func (s *AnnotationService) DeleteHighlights(ctx context.Context, userID string, req *wire.DeleteHighlightsRequest) (int64, error) {
	if err := s.check(req); err != nil {
		return 0, err
	}
	return s.repomanager.Highlights(s.db).Delete(ctx, userID, req.IDs)
}

// UpdateReadingProgress stores the reading position. Forced updates always
// win; otherwise the stored position only moves forward. The stored document
// is returned either way.
func (s *AnnotationService) UpdateReadingProgress(ctx context.Context, userID string, req *wire.UpdateReadingProgressRequest) (*models.Document, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	docs := s.repomanager.Documents(s.db)
	if _, err := docs.UpdateProgress(ctx, userID, req.DocumentID, req.Percent, req.AnchorIndex, req.Force); err != nil {
		return nil, err
	}
	return docs.Get(ctx, userID, req.DocumentID)
}

// ContentURL presigns a download URL for the document's stored content.
func (s *AnnotationService) ContentURL(ctx context.Context, userID string, req *wire.ContentURLRequest) (string, time.Time, error) {
	if err := s.check(req); err != nil {
		return "", time.Time{}, err
	}

	d, err := s.repomanager.Documents(s.db).Get(ctx, userID, req.DocumentID)
	if err != nil {
		return "", time.Time{}, err
	}
	if d.ContentRef == "" {
		return "", time.Time{}, fmt.Errorf("%w: document %s has no content", common.ErrValidation, d.ID)
	}

	ttl := s.config.PresignValidityDuration
	url, err := s.presignGet(ctx, d.ContentRef, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign content: %w", err)
	}
	return url, s.now().Add(ttl), nil
}

func (s *AnnotationService) requireDocument(ctx context.Context, db dbx.DBTX, userID, documentID string) error {
	_, err := s.repomanager.Documents(db).Get(ctx, userID, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: %s", common.ErrDocumentNotFound, documentID)
	}
	return err
}

type highlightStore interface {
	Insert(ctx context.Context, h *models.Highlight) (bool, error)
	Get(ctx context.Context, userID, id string) (*models.Highlight, error)
}

// insertOrGet inserts h and returns the stored row. An id held by another
// user surfaces as common.ErrAlreadyExists.
func (s *AnnotationService) insertOrGet(ctx context.Context, hs highlightStore, h *models.Highlight) (*models.Highlight, error) {
	if _, err := hs.Insert(ctx, h); err != nil {
		return nil, err
	}
	stored, err := hs.Get(ctx, h.UserID, h.ID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: highlight %s", common.ErrAlreadyExists, h.ID)
	}
	return stored, err
}

func normalizeNote(note *string) *string {
	if note == nil || *note == "" {
		return nil
	}
	return note
}
