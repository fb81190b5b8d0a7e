package resendEmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	resp "creatorfund/internal/lib/api/response"
	"creatorfund/internal/lib/email"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Reissuer interface {
	ResendVerification(ctx context.Context, email string) (models.User, string, error)
}

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// New re-issues the email verification link. The previous token stops
// working the moment a new one is issued.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	reissuer Reissuer,
	msgSender email.Publisher,
	publicURL string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resendVerificationEmail.New"

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

		user, token, err := reissuer.ResendVerification(ctx, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			case errors.Is(err, auth.ErrAlreadyVerified):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("email is already verified"))
			default:
				log.Error("failed to reissue verification token", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		if err := email.SendVerificationLink(ctx, log, msgSender, publicURL, user.Email, token); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to send verification email"))

			return
		}

		log.Info("verification email reissued", slog.Int64("user_id", user.ID))

		render.JSON(w, r, resp.OK())
	}
}
