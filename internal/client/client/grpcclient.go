package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/client/models"
	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultCallTimeout = 15 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	callTimeout time.Duration

	mu          sync.RWMutex
	accessToken string
}

type Option func(*GRPCClient)

// WithCallTimeout bounds every individual call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *GRPCClient) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithAccessToken sets the initial access token.
func WithAccessToken(token string) Option {
	return func(c *GRPCClient) { c.accessToken = token }
}

// NewGRPCClient creates a client for endpointURL. Extra dial options are
// appended after the defaults (insecure transport, token interceptor, JSON
// codec), which lets tests dial a bufconn listener.
func NewGRPCClient(endpointURL string, opts []Option, dialOpts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, callTimeout: defaultCallTimeout}
	for _, o := range opts {
		o(c)
	}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
	}
	conn, err := grpc.NewClient(endpointURL, append(base, dialOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpointURL, err)
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *GRPCClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := c.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return mapError(c.conn.Invoke(ctx, method, req, resp))
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp wire.PingResponse
	if err := c.invoke(ctx, wire.MethodPing, &wire.PingRequest{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return fmt.Errorf("%w: status %q", ErrNetwork, resp.Status)
	}
	return nil
}

func (c *GRPCClient) SaveDocument(ctx context.Context, d models.Document) (*models.Document, error) {
	req := &wire.SaveDocumentRequest{ID: d.ID, Title: d.Title, ContentRef: d.ContentRef, Labels: toWireLabels(d.Labels)}
	var resp wire.SaveDocumentResponse
	if err := c.invoke(ctx, wire.MethodSaveDocument, req, &resp); err != nil {
		return nil, err
	}
	return FromWireDocument(resp.Document), nil
}

func (c *GRPCClient) FetchDocument(ctx context.Context, documentID string) (*models.Document, []models.Highlight, error) {
	var resp wire.FetchDocumentResponse
	if err := c.invoke(ctx, wire.MethodFetchDocument, &wire.FetchDocumentRequest{DocumentID: documentID}, &resp); err != nil {
		return nil, nil, err
	}

	hs := make([]models.Highlight, 0, len(resp.Highlights))
	for _, h := range resp.Highlights {
		hs = append(hs, *FromWireHighlight(h))
	}
	return FromWireDocument(resp.Document), hs, nil
}

func (c *GRPCClient) ContentURL(ctx context.Context, documentID string) (string, error) {
	var resp wire.ContentURLResponse
	if err := c.invoke(ctx, wire.MethodContentURL, &wire.ContentURLRequest{DocumentID: documentID}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *GRPCClient) CreateHighlight(ctx context.Context, h models.Highlight, pos *Position) (*models.Highlight, error) {
	req := &wire.CreateHighlightRequest{
		ID:         h.ID,
		ShortID:    h.ShortID,
		DocumentID: h.DocumentID,
		Quote:      h.Quote,
		Prefix:     h.Prefix,
		Suffix:     h.Suffix,
		Patch:      h.Patch,
		Note:       optionalNote(h.Note),
	}
	if pos != nil {
		percent, index := pos.Percent, pos.AnchorIndex
		req.HighlightPositionPercent = &percent
		req.HighlightPositionAnchorIndex = &index
	}

	var resp wire.HighlightResponse
	if err := c.invoke(ctx, wire.MethodCreateHighlight, req, &resp); err != nil {
		return nil, err
	}
	return FromWireHighlight(resp.Highlight), nil
}

func (c *GRPCClient) MergeHighlights(ctx context.Context, h models.Highlight, overlapIDs []string) (*models.Highlight, error) {
	req := &wire.MergeHighlightsRequest{
		ID:         h.ID,
		ShortID:    h.ShortID,
		DocumentID: h.DocumentID,
		Quote:      h.Quote,
		Prefix:     h.Prefix,
		Suffix:     h.Suffix,
		Patch:      h.Patch,
		OverlapIDs: overlapIDs,
	}
	var resp wire.HighlightResponse
	if err := c.invoke(ctx, wire.MethodMergeHighlights, req, &resp); err != nil {
		return nil, err
	}
	return FromWireHighlight(resp.Highlight), nil
}

func (c *GRPCClient) UpdateHighlight(ctx context.Context, id string, note *string) (*models.Highlight, error) {
	var resp wire.HighlightResponse
	if err := c.invoke(ctx, wire.MethodUpdateHighlight, &wire.UpdateHighlightRequest{ID: id, Note: note}, &resp); err != nil {
		return nil, err
	}
	return FromWireHighlight(resp.Highlight), nil
}

func (c *GRPCClient) DeleteHighlights(ctx context.Context, ids []string) error {
	var resp wire.DeleteHighlightsResponse
	return c.invoke(ctx, wire.MethodDeleteHighlights, &wire.DeleteHighlightsRequest{IDs: ids}, &resp)
}

func (c *GRPCClient) UpdateReadingProgress(ctx context.Context, documentID string, percent float64, anchorIndex int, force bool) error {
	req := &wire.UpdateReadingProgressRequest{
		DocumentID:  documentID,
		Percent:     percent,
		AnchorIndex: anchorIndex,
		Force:       force,
	}
	var resp wire.UpdateReadingProgressResponse
	return c.invoke(ctx, wire.MethodUpdateReadingProgress, req, &resp)
}

func optionalNote(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
