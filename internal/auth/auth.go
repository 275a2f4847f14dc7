package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"blog/internal/apperr"
)

const bearerPrefix = "Bearer "

type tokenKey struct{}

// Claims is the payload of an issued token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewManager(secret string, maxAge time.Duration) *Manager {
	return &Manager{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Create issues a signed token for userID.
func (m *Manager) Create(userID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", apperr.Wrap(errors.Wrap(err, "signing token"), "create token")
	}
	return s, nil
}

// Verify checks signature, algorithm and expiry and returns the user id.
func (m *Manager) Verify(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", &apperr.Error{Kind: apperr.InvalidToken, Msg: apperr.ErrInvalidToken.Msg, Err: err}
	}
	if claims.UserID == "" {
		return "", apperr.ErrInvalidToken
	}
	return claims.UserID, nil
}

// UserID identifies the caller of the operation running under ctx. An absent
// credential yields "" unless requireAuth is set. A present credential that
// fails verification is always an error.
func (m *Manager) UserID(ctx context.Context, requireAuth bool) (string, error) {
	token := TokenFrom(ctx)
	if token == "" {
		if requireAuth {
			return "", apperr.ErrAuthRequired
		}
		return "", nil
	}
	return m.Verify(token)
}

// WithToken attaches the raw bearer credential of the current operation.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}

// FromRequest returns the bearer credential of r, if any.
func FromRequest(r *http.Request) string {
	return BearerToken(r.Header.Get("Authorization"))
}
