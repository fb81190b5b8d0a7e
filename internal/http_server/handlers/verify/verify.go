package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Verifier interface {
	VerifyAccount(ctx context.Context, token string) (models.User, error)
}

// New consumes an email verification token from the query string and marks
// the account verified.
func New(log *slog.Logger, verifier Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("token is missing"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := verifier.VerifyAccount(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrVerificationNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("verification token is invalid"))
			case errors.Is(err, auth.ErrVerificationExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, resp.Error("verification token expired, request a new one"))
			default:
				log.Error("failed to verify account", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("email verified", slog.Int64("user_id", user.ID))

		render.JSON(w, r, resp.OK())
	}
}
