package membership

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/http_server/middleware/authz"
	"creatorfund/internal/http_server/views"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/payment"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Enroller interface {
	InitiateMembership(ctx context.Context, userID, membershipID int64, kind payment.Kind) (payment.ChargeRef, error)
	VerifyMembership(ctx context.Context, pidx string, userID, membershipID int64, kind payment.Kind) (models.EnrolledMembership, error)
}

type InitiateRequest struct {
	MembershipID int64  `json:"membership_id" validate:"required,gt=0"`
	Kind         string `json:"kind" validate:"required,oneof=enroll change"`
}

type InitiateResponse struct {
	resp.Response
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

type VerifyRequest struct {
	Pidx         string `json:"pidx" validate:"required"`
	MembershipID int64  `json:"membership_id" validate:"required,gt=0"`
	Kind         string `json:"kind" validate:"required,oneof=enroll change"`
}

type VerifyResponse struct {
	resp.Response
	Enrollment views.EnrollmentView `json:"enrollment"`
}

// NewInitiate starts a membership charge for the authenticated caller. Fresh
// enrollments and tier changes go through the same flow; the kind decides
// which checks apply when the payment is verified.
func NewInitiate(log *slog.Logger, validate *validator.Validate, enroller Enroller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.membership.NewInitiate"

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

		var req InitiateRequest

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

		ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
		defer cancel()

		ref, err := enroller.InitiateMembership(ctx, claims.UserID, req.MembershipID, payment.Kind(req.Kind))
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		log.Info("membership charge initiated",
			slog.Int64("membership_id", req.MembershipID),
			slog.String("pidx", ref.Pidx),
		)

		render.JSON(w, r, InitiateResponse{
			Response:   resp.OK(),
			Pidx:       ref.Pidx,
			PaymentURL: ref.PaymentURL,
		})
	}
}

func NewVerify(log *slog.Logger, validate *validator.Validate, enroller Enroller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.membership.NewVerify"

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

		var req VerifyRequest

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

		ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
		defer cancel()

		enrollment, err := enroller.VerifyMembership(ctx, req.Pidx, claims.UserID, req.MembershipID, payment.Kind(req.Kind))
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		log.Info("membership enrolled",
			slog.Int64("enrollment_id", enrollment.ID),
			slog.Int64("membership_id", enrollment.MembershipID),
		)

		render.JSON(w, r, VerifyResponse{
			Response:   resp.OK(),
			Enrollment: views.FromEnrollment(enrollment),
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, payment.ErrMembershipNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("membership not found"))
	case errors.Is(err, payment.ErrNotEnrolled):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("no active enrollment to change"))
	case errors.Is(err, payment.ErrAlreadyEnrolled):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("an active enrollment already exists"))
	case errors.Is(err, payment.ErrDowngradeWhileActive):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("cannot change to a lower tier while enrolled"))
	case errors.Is(err, payment.ErrPaymentNotCompleted):
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, resp.Error("payment is not completed"))
	case errors.Is(err, payment.ErrAlreadyProcessed):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("payment already processed"))
	case errors.Is(err, payment.ErrGatewayTimeout):
		render.Status(r, http.StatusGatewayTimeout)
		render.JSON(w, r, resp.Error("payment gateway timed out"))
	case errors.Is(err, payment.ErrGateway):
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, resp.Error("payment gateway error"))
	default:
		log.Error("membership request failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("internal error"))
	}
}
