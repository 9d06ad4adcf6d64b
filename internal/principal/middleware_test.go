package principal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/printworks/storefront-api/internal/common"
)

var testJWTSecret = []byte("test-secret")

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Subject(sub).
		IssuedAt(time.Now()).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, testJWTSecret))
	require.NoError(t, err)
	return string(signed)
}

func capturePrincipal(t *testing.T, decorate func(*http.Request)) (userID, sid string) {
	t.Helper()
	m := &Middleware{JWTSecret: testJWTSecret, Log: zerolog.Nop()}
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = common.UserID(r.Context())
		sid, _ = common.SID(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	decorate(r)
	handler.ServeHTTP(httptest.NewRecorder(), r)
	return userID, sid
}

func TestBearerTokenResolvesUser(t *testing.T) {
	token := signToken(t, "user-1", time.Now().Add(time.Hour))

	userID, _ := capturePrincipal(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, "user-1", userID)
}

func TestExpiredTokenIsAnonymous(t *testing.T) {
	token := signToken(t, "user-1", time.Now().Add(-time.Hour))

	userID, _ := capturePrincipal(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Empty(t, userID)
}

func TestGarbageTokenIsAnonymous(t *testing.T) {
	userID, _ := capturePrincipal(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not.a.token")
	})
	require.Empty(t, userID)
}

func TestSessionCookiePreferredOverHeader(t *testing.T) {
	_, sid := capturePrincipal(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: sidCookie, Value: "cookie-sid"})
		r.Header.Set(sidHeader, "header-sid")
	})
	require.Equal(t, "cookie-sid", sid)
}

func TestSessionHeaderFallback(t *testing.T) {
	_, sid := capturePrincipal(t, func(r *http.Request) {
		r.Header.Set(sidHeader, "header-sid")
	})
	require.Equal(t, "header-sid", sid)
}

func TestUserAndSessionCoexist(t *testing.T) {
	token := signToken(t, "user-1", time.Now().Add(time.Hour))

	userID, sid := capturePrincipal(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set(sidHeader, "sid-1")
	})
	require.Equal(t, "user-1", userID)
	require.Equal(t, "sid-1", sid)
}
