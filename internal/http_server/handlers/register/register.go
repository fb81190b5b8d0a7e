package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/auth"
	"creatorfund/internal/http_server/views"
	resp "creatorfund/internal/lib/api/response"
	"creatorfund/internal/lib/email"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Registrar interface {
	Register(ctx context.Context, email, username, firstName, lastName, password string) (models.User, string, error)
}

type Request struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
}

type Response struct {
	resp.Response
	User    views.UserView `json:"user"`
	Warning string         `json:"warning,omitempty"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registrar Registrar,
	msgSender email.Publisher,
	publicURL string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

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

		user, token, err := registrar.Register(ctx, req.Email, req.Username, req.FirstName, req.LastName, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("user with this email or username already exists"))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("user registered", slog.Int64("uid", user.ID))

		// A failed publish never rolls back registration; the client is told
		// so it can offer a resend.
		warning := ""
		if err := email.SendVerificationLink(ctx, log, msgSender, publicURL, user.Email, token); err != nil {
			warning = "verification email could not be sent, use resend"
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     views.FromUser(user),
			Warning:  warning,
		})
	}
}
