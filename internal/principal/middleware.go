// Package principal resolves the caller's identity: an authenticated user
// from a bearer token, or an anonymous session key from cookie or header.
// Both can be present; the user wins wherever one identity is needed.
package principal

import (
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
)

const (
	sidCookie = "storefront_sid"
	sidHeader = "X-Session-Key"
)

// Middleware parses identity onto the request context. Invalid tokens are
// treated as anonymous rather than rejected; routes that need a user check
// for one themselves.
type Middleware struct {
	JWTSecret []byte
	Log       zerolog.Logger
}

// Handler wraps next with principal resolution.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			raw := strings.TrimPrefix(auth, "Bearer ")
			token, err := jwt.Parse([]byte(raw),
				jwt.WithKey(jwa.HS256, m.JWTSecret),
				jwt.WithValidate(true),
			)
			if err == nil && token.Subject() != "" {
				ctx = common.WithUserID(ctx, token.Subject())
			} else if err != nil {
				m.Log.Debug().Err(err).Msg("bearer token rejected")
			}
		}

		if sid := sessionKey(r); sid != "" {
			ctx = common.WithSID(ctx, sid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionKey(r *http.Request) string {
	if c, err := r.Cookie(sidCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get(sidHeader))
}
