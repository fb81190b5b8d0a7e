// Package authz guards routes. Middleware validates the bearer token and
// stows its claims in the request context; RequireRole and RequireOwnerOrRole
// are pure predicates over those already-validated claims, composed per route
// in the router.
package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"creatorfund/internal/lib/api/response"
	"creatorfund/internal/lib/jwt"
	sl "creatorfund/internal/lib/logger"

	"github.com/go-chi/render"
)

type ctxKey struct{}

// Claims is what downstream handlers see of the caller.
type Claims struct {
	UserID    int64
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// Denylist reports whether an access token id has been revoked before its
// expiry (logout, password change).
type Denylist interface {
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// ClaimsFromContext returns the caller's claims, if the request passed the
// middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(Claims)
	return claims, ok
}

// Middleware validates the Authorization bearer token (signature, expiry,
// issuer, audience) and rejects denylisted token ids. Requests without a
// valid token are refused with 401.
func Middleware(log *slog.Logger, secret, issuer, audience string, denylist Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "authz.Middleware"

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthenticated(w, r)
				return
			}

			claims, err := jwt.ParseAccessToken(strings.TrimPrefix(header, "Bearer "), secret, issuer, audience)
			if err != nil {
				unauthenticated(w, r)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				unauthenticated(w, r)
				return
			}

			denied, err := denylist.IsDenied(r.Context(), claims.ID)
			if err != nil {
				log.Error("denylist lookup failed", slog.String("op", op), sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			if denied {
				unauthenticated(w, r)
				return
			}

			var expiresAt time.Time
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, Claims{
				UserID:    userID,
				Role:      claims.Role,
				TokenID:   claims.ID,
				ExpiresAt: expiresAt,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole refuses callers whose role claim does not match.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}

			if claims.Role != role {
				forbidden(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OwnerResolver resolves the owning user id of the resource a request
// targets. It may consult the database when ownership is not in the claims.
type OwnerResolver func(ctx context.Context, r *http.Request) (int64, error)

// RequireOwnerOrRole lets a request through when the caller owns the target
// resource or holds the given role.
func RequireOwnerOrRole(resolve OwnerResolver, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}

			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}

			ownerID, err := resolve(r.Context(), r)
			if err != nil {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("not found"))
				return
			}

			if ownerID != claims.UserID {
				forbidden(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error("unauthorized"))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, response.Error("insufficient privileges"))
}
