package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	"creatorfund/internal/http_server/cookies"
	"creatorfund/internal/http_server/views"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, models.User, error)
}

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	AccessToken        string         `json:"access_token"`
	AccessTokenExpiry  time.Time      `json:"access_token_expiry"`
	RefreshToken       string         `json:"refresh_token"`
	RefreshTokenExpiry time.Time      `json:"refresh_token_expiry"`
	User               views.UserView `json:"user"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authenticator Authenticator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Warn("invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, user, err := authenticator.Login(ctx, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))
			case errors.Is(err, auth.ErrEmailNotVerified):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("email is not verified"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("user logged in")

		// Refresh token travels in the cookie; the access token only in the
		// body.
		cookies.SetRefreshToken(w, pair.RefreshToken, pair.RefreshExpiresAt)

		render.JSON(w, r, Response{
			Response:           resp.OK(),
			AccessToken:        pair.AccessToken,
			AccessTokenExpiry:  pair.AccessExpiresAt,
			RefreshToken:       pair.RefreshToken,
			RefreshTokenExpiry: pair.RefreshExpiresAt,
			User:               views.FromUser(user),
		})
	}
}
