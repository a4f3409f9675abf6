package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/dmitrijs2005/readkeeper/internal/server/auth"
	"github.com/dmitrijs2005/readkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_PingAllowedWithoutToken(t *testing.T) {
	s := newServer(nil)
	called := false

	resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: wire.MethodPing},
		func(ctx context.Context, req any) (any, error) {
			called = true
			return "ok", nil
		})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newServer(nil)

	_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: wire.MethodCreateHighlight},
		func(ctx context.Context, req any) (any, error) {
			t.Fatal("handler must not run without a token")
			return nil, nil
		})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
}

func TestInterceptor_InvalidAndExpiredTokens(t *testing.T) {
	s := newServer(nil)
	expired, err := auth.GenerateToken("u1", s.jwtSecret, -time.Minute)
	require.NoError(t, err)

	for _, tok := range []string{"not-a-valid-jwt", expired} {
		_, err := s.accessTokenInterceptor(withToken(tok), nil, &grpc.UnaryServerInfo{FullMethod: wire.MethodFetchDocument},
			func(ctx context.Context, req any) (any, error) {
				t.Fatal("handler must not run")
				return nil, nil
			})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	}
}

func TestInterceptor_ValidTokenSetsUser(t *testing.T) {
	s := newServer(nil)
	tok, err := auth.GenerateToken("user-42", s.jwtSecret, time.Hour)
	require.NoError(t, err)

	var got string
	_, err = s.accessTokenInterceptor(withToken(tok), nil, &grpc.UnaryServerInfo{FullMethod: wire.MethodDeleteHighlights},
		func(ctx context.Context, req any) (any, error) {
			got, err = userIDFromContext(ctx)
			return nil, err
		})
	require.NoError(t, err)
	assert.Equal(t, "user-42", got)
}
