package resetPassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Resetter interface {
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// New consumes a reset token and replaces the password. Every session of the
// account is revoked in the same call.
func New(log *slog.Logger, validate *validator.Validate, resetter Resetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetPassword.New"

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

		if err := resetter.ResetPassword(ctx, req.Token, req.Password); err != nil {
			switch {
			case errors.Is(err, auth.ErrVerificationNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("reset token is invalid"))
			case errors.Is(err, auth.ErrVerificationExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, resp.Error("reset token expired, request a new one"))
			default:
				log.Error("failed to reset password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("password reset completed")

		render.JSON(w, r, resp.OK())
	}
}
