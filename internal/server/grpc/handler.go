package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *wire.PingRequest) (*wire.PingResponse, error) {
	return &wire.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) SaveDocument(ctx context.Context, req *wire.SaveDocumentRequest) (*wire.SaveDocumentResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.annotations.SaveDocument(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "SaveDocument", err)
	}

	s.logger.Info(ctx, "Document saved", "document_id", d.ID)
	return &wire.SaveDocumentResponse{Document: toWireDocument(d)}, nil
}

func (s *GRPCServer) FetchDocument(ctx context.Context, req *wire.FetchDocumentRequest) (*wire.FetchDocumentResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	d, hs, err := s.annotations.FetchDocument(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "FetchDocument", err)
	}

	resp := &wire.FetchDocumentResponse{Document: toWireDocument(d), Highlights: make([]wire.Highlight, 0, len(hs))}
	for _, h := range hs {
		resp.Highlights = append(resp.Highlights, toWireHighlight(h))
	}
	return resp, nil
}

func (s *GRPCServer) CreateHighlight(ctx context.Context, req *wire.CreateHighlightRequest) (*wire.HighlightResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	h, err := s.annotations.CreateHighlight(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "CreateHighlight", err)
	}

	s.logger.Debug(ctx, "Highlight created", "highlight_id", h.ID)
	return &wire.HighlightResponse{Highlight: toWireHighlight(h)}, nil
}

func (s *GRPCServer) MergeHighlights(ctx context.Context, req *wire.MergeHighlightsRequest) (*wire.HighlightResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	h, err := s.annotations.MergeHighlights(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "MergeHighlights", err)
	}

	s.logger.Debug(ctx, "Highlights merged", "highlight_id", h.ID, "overlaps", len(req.OverlapIDs))
	return &wire.HighlightResponse{Highlight: toWireHighlight(h)}, nil
}

func (s *GRPCServer) UpdateHighlight(ctx context.Context, req *wire.UpdateHighlightRequest) (*wire.HighlightResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	h, err := s.annotations.UpdateHighlight(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "UpdateHighlight", err)
	}
	return &wire.HighlightResponse{Highlight: toWireHighlight(h)}, nil
}

func (s *GRPCServer) DeleteHighlights(ctx context.Context, req *wire.DeleteHighlightsRequest) (*wire.DeleteHighlightsResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.annotations.DeleteHighlights(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "DeleteHighlights", err)
	}
	return &wire.DeleteHighlightsResponse{Deleted: int(n)}, nil
}

func (s *GRPCServer) UpdateReadingProgress(ctx context.Context, req *wire.UpdateReadingProgressRequest) (*wire.UpdateReadingProgressResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.annotations.UpdateReadingProgress(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "UpdateReadingProgress", err)
	}
	return &wire.UpdateReadingProgressResponse{Percent: d.ProgressPercent, AnchorIndex: d.ProgressAnchor}, nil
}

func (s *GRPCServer) ContentURL(ctx context.Context, req *wire.ContentURLRequest) (*wire.ContentURLResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	url, expires, err := s.annotations.ContentURL(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, "ContentURL", err)
	}
	return &wire.ContentURLResponse{URL: url, ExpiresAt: expires}, nil
}

// toStatus maps service errors onto the status codes the client classifies.
// Unexpected errors are logged and hidden behind codes.Internal.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrDocumentNotFound):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.Error(ctx, "request failed", "method", method, "error", err)
	return status.Error(codes.Internal, common.ErrInternal.Error())
}

func toWireDocument(d *models.Document) wire.Document {
	out := wire.Document{
		ID:              d.ID,
		Title:           d.Title,
		ContentRef:      d.ContentRef,
		ProgressPercent: d.ProgressPercent,
		ProgressAnchor:  d.ProgressAnchor,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, l := range d.Labels {
		out.Labels = append(out.Labels, wire.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return out
}

// toWireHighlight converts a stored row. Every stored highlight belongs to the
// caller, so CreatedByMe is always set.
func toWireHighlight(h *models.Highlight) wire.Highlight {
	return wire.Highlight{
		ID:          h.ID,
		ShortID:     h.ShortID,
		DocumentID:  h.DocumentID,
		Quote:       h.Quote,
		Prefix:      h.Prefix,
		Suffix:      h.Suffix,
		Patch:       h.Patch,
		Note:        h.Note,
		CreatedByMe: true,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}
