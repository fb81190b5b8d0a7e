package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/http_server/cookies"
	"creatorfund/internal/http_server/middleware/authz"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SessionEnder interface {
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
}

// Denier revokes an access token id until the token would have expired on
// its own.
type Denier interface {
	Deny(ctx context.Context, jti string, ttl time.Duration) error
}

// New ends the current session: the refresh token is revoked and the access
// token id is denylisted for the remainder of its lifetime.
func New(log *slog.Logger, sessions SessionEnder, denier Denier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := authz.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if token := cookies.RefreshToken(r); token != "" {
			if err := sessions.Logout(ctx, token); err != nil {
				log.Error("failed to revoke refresh token", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))

				return
			}
		}

		if err := denier.Deny(ctx, claims.TokenID, time.Until(claims.ExpiresAt)); err != nil {
			log.Error("failed to denylist access token", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("user logged out", slog.Int64("user_id", claims.UserID))

		cookies.ClearRefreshToken(w)

		render.JSON(w, r, resp.OK())
	}
}

// NewAll ends every session of the caller at once.
func NewAll(log *slog.Logger, sessions SessionEnder, denier Denier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.NewAll"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := authz.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := sessions.LogoutAll(ctx, claims.UserID); err != nil {
			log.Error("failed to revoke refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		if err := denier.Deny(ctx, claims.TokenID, time.Until(claims.ExpiresAt)); err != nil {
			log.Error("failed to denylist access token", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("user logged out everywhere", slog.Int64("user_id", claims.UserID))

		cookies.ClearRefreshToken(w)

		render.JSON(w, r, resp.OK())
	}
}
