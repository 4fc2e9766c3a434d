package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/session"
)

// unexported, collision-proof context key
type principalContextKeyType struct{}

var principalKey = principalContextKeyType{}

// Principal is the authenticated identity attached to a request. Subject
// is the external subject every data operation is scoped by.
type Principal struct {
	UserID  string
	Subject string
}

// PrincipalFromContext extracts the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// ContextWithPrincipal attaches a principal, as RequireAuth does for
// requests that pass it.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

type AuthMiddleware struct {
	Codec *session.Codec
	Store session.Store
}

func NewAuthMiddleware(codec *session.Codec, store session.Store) *AuthMiddleware {
	return &AuthMiddleware{Codec: codec, Store: store}
}

// RequireAuth rejects any request whose session is not AUTHENTICATED.
// A missing cookie, a bad signature, an unknown session id and an
// expired session all get the same 401.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := a.Codec.ReadCookie(r)
		if !ok {
			unauthorized(w)
			return
		}

		sess, err := a.Store.Get(r.Context(), sid)
		if err != nil || sess == nil {
			unauthorized(w)
			return
		}

		if time.Now().After(sess.ExpiresAt) {
			_ = a.Store.Clear(r.Context(), sid)
			unauthorized(w)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), Principal{
			UserID:  sess.UserID,
			Subject: sess.ExternalSubject,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication_required"}`))
}
