package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	"creatorfund/internal/http_server/cookies"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Rotator interface {
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

type Request struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type Response struct {
	resp.Response
	AccessToken        string    `json:"access_token"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
}

func New(log *slog.Logger, rotator Rotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// The cookie is the primary carrier; the body is a fallback for
		// clients that cannot send cookies.
		token := cookies.RefreshToken(r)
		if token == "" {
			var req Request

			err := render.DecodeJSON(r.Body, &req)
			if err != nil && !errors.Is(err, io.EOF) {
				log.Error("failed to decode request body", sl.Err(err))

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("failed to decode request"))

				return
			}

			token = req.RefreshToken
		}

		if token == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("refresh token is missing"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := rotator.Refresh(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid refresh token"))
			case errors.Is(err, auth.ErrTokenExpired):
				cookies.ClearRefreshToken(w)

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("refresh token expired"))
			case errors.Is(err, auth.ErrTokenRevoked):
				cookies.ClearRefreshToken(w)

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("refresh token revoked"))
			default:
				log.Error("failed to refresh tokens", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("tokens refreshed")

		cookies.SetRefreshToken(w, pair.RefreshToken, pair.RefreshExpiresAt)

		render.JSON(w, r, Response{
			Response:           resp.OK(),
			AccessToken:        pair.AccessToken,
			AccessTokenExpiry:  pair.AccessExpiresAt,
			RefreshToken:       pair.RefreshToken,
			RefreshTokenExpiry: pair.RefreshExpiresAt,
		})
	}
}
