package grpc

import (
	"context"

	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"google.golang.org/grpc"
)

// AnnotationsServer lists the RPCs registered under wire.ServiceName.
type AnnotationsServer interface {
	Ping(context.Context, *wire.PingRequest) (*wire.PingResponse, error)
	SaveDocument(context.Context, *wire.SaveDocumentRequest) (*wire.SaveDocumentResponse, error)
	FetchDocument(context.Context, *wire.FetchDocumentRequest) (*wire.FetchDocumentResponse, error)
	CreateHighlight(context.Context, *wire.CreateHighlightRequest) (*wire.HighlightResponse, error)
	MergeHighlights(context.Context, *wire.MergeHighlightsRequest) (*wire.HighlightResponse, error)
	UpdateHighlight(context.Context, *wire.UpdateHighlightRequest) (*wire.HighlightResponse, error)
	DeleteHighlights(context.Context, *wire.DeleteHighlightsRequest) (*wire.DeleteHighlightsResponse, error)
	UpdateReadingProgress(context.Context, *wire.UpdateReadingProgressRequest) (*wire.UpdateReadingProgressResponse, error)
	ContentURL(context.Context, *wire.ContentURLRequest) (*wire.ContentURLResponse, error)
}

var _ AnnotationsServer = (*GRPCServer)(nil)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*AnnotationsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", AnnotationsServer.Ping),
		unary("SaveDocument", AnnotationsServer.SaveDocument),
		unary("FetchDocument", AnnotationsServer.FetchDocument),
		unary("CreateHighlight", AnnotationsServer.CreateHighlight),
		unary("MergeHighlights", AnnotationsServer.MergeHighlights),
		unary("UpdateHighlight", AnnotationsServer.UpdateHighlight),
		unary("DeleteHighlights", AnnotationsServer.DeleteHighlights),
		unary("UpdateReadingProgress", AnnotationsServer.UpdateReadingProgress),
		unary("ContentURL", AnnotationsServer.ContentURL),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "readkeeper/v1/annotations",
}

// unary adapts a typed RPC method to grpc.MethodDesc, decoding the request
// and routing it through the server's interceptor chain.
func unary[Req, Resp any](name string, call func(AnnotationsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + wire.ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, r any) (any, error) {
				resp, err := call(srv.(AnnotationsServer), ctx, r.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}
