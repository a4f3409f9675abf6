package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/readkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("user-123", secret, time.Hour)
	require.NoError(t, err)

	got, err := GetUserIDFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(tok, secret)
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(tok, []byte("wrong-secret"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetUserIDFromToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := GetUserIDFromToken("not-a-jwt", []byte("k"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetUserIDFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "u3"})
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = GetUserIDFromToken(s, []byte("k"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetUserIDFromToken_MissingUserID(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = GetUserIDFromToken(s, []byte("k"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGenerateToken_UniqueTokenIDs(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		tok, err := GenerateToken("u1", secret, time.Hour)
		require.NoError(t, err)

		claims := &Claims{}
		_, err = jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) { return secret, nil })
		require.NoError(t, err)
		assert.Len(t, claims.ID, 32)
		ids[claims.ID] = true
	}
	assert.Len(t, ids, 3)
}
