package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blog/internal/apperr"
)

func TestCreateVerify(t *testing.T) {
	m := NewManager("secret", time.Hour)
	tok, err := m.Create("user-1")
	require.NoError(t, err)

	uid, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	other := NewManager("other", time.Hour)
	foreign, err := other.Create("user-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"malformed":      "not-a-token",
		"wrong-secret":   foreign,
		"none-algorithm": unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(tok)
			assert.True(t, apperr.IsKind(err, apperr.InvalidToken), "got %v", err)
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.Create("user-1")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok)
	assert.True(t, apperr.IsKind(err, apperr.InvalidToken))
}

func TestUserID(t *testing.T) {
	m := NewManager("secret", time.Hour)
	tok, err := m.Create("user-1")
	require.NoError(t, err)

	uid, err := m.UserID(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, uid)

	_, err = m.UserID(context.Background(), true)
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	uid, err = m.UserID(WithToken(context.Background(), tok), true)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	// A bad credential is fatal even when auth is optional.
	_, err = m.UserID(WithToken(context.Background(), "garbage"), false)
	assert.True(t, apperr.IsKind(err, apperr.InvalidToken))
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/graphql", nil)
	assert.Empty(t, FromRequest(r))

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", FromRequest(r))

	assert.Equal(t, "xyz", BearerToken("bearer xyz"))
	assert.Empty(t, BearerToken("Basic dXNlcjpwYXNz"))
}

func TestPasswords(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("short1"), apperr.ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("longenough"))

	// Length counts characters, not bytes.
	assert.ErrorIs(t, ValidatePassword("éééé"), apperr.ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("éééééééé"))

	assert.NoError(t, ValidatePassword(strings.Repeat("a", MaxPasswordBytes)))
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("a", MaxPasswordBytes+1)), apperr.ErrPasswordTooLong)

	hash, err := HashPassword("longenough", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPassword("longenough", hash))
	assert.False(t, CheckPassword("wrong-password", hash))
}
