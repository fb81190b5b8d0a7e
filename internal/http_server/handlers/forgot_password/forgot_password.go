package forgotPassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "creatorfund/internal/lib/api/response"
	"creatorfund/internal/lib/email"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type ResetRequester interface {
	RequestPasswordReset(ctx context.Context, email string) (models.User, string, error)
}

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// New issues a password reset link. The response is the same whether or not
// the address belongs to an account, so the endpoint cannot be used to probe
// for registered emails.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	requester ResetRequester,
	msgSender email.Publisher,
	publicURL string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgotPassword.New"

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

		user, token, err := requester.RequestPasswordReset(ctx, req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				log.Info("password reset requested for unknown email")

				render.JSON(w, r, resp.OK())

				return
			}

			log.Error("failed to issue reset token", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		if err := email.SendPasswordResetLink(ctx, log, msgSender, publicURL, user.Email, token); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to send reset email"))

			return
		}

		log.Info("password reset email sent", slog.Int64("user_id", user.ID))

		render.JSON(w, r, resp.OK())
	}
}
