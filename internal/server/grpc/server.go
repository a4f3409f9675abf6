// Package grpc exposes the annotation service over gRPC. Messages are the
// plain structs of package wire carried by its JSON codec, so the service is
// described by a hand-written grpc.ServiceDesc instead of generated stubs.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/logging"
	"github.com/dmitrijs2005/readkeeper/internal/server/models"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"google.golang.org/grpc"
)

type annotationService interface {
	SaveDocument(ctx context.Context, userID string, req *wire.SaveDocumentRequest) (*models.Document, error)
	FetchDocument(ctx context.Context, userID string, req *wire.FetchDocumentRequest) (*models.Document, []*models.Highlight, error)
	CreateHighlight(ctx context.Context, userID string, req *wire.CreateHighlightRequest) (*models.Highlight, error)
	MergeHighlights(ctx context.Context, userID string, req *wire.MergeHighlightsRequest) (*models.Highlight, error)
	UpdateHighlight(ctx context.Context, userID string, req *wire.UpdateHighlightRequest) (*models.Highlight, error)
	DeleteHighlights(ctx context.Context, userID string, req *wire.DeleteHighlightsRequest) (int64, error)
	UpdateReadingProgress(ctx context.Context, userID string, req *wire.UpdateReadingProgressRequest) (*models.Document, error)
	ContentURL(ctx context.Context, userID string, req *wire.ContentURLRequest) (string, time.Time, error)
}

type GRPCServer struct {
	address     string
	annotations annotationService
	logger      logging.Logger
	jwtSecret   []byte
}

func NewGRPCServer(a string, l logging.Logger, as annotationService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		annotations: as,
		jwtSecret:   []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv.RegisterService(&serviceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
