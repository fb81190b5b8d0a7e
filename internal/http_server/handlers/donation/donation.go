package donation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creatorfund/internal/http_server/views"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/payment"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Donator interface {
	InitiateDonation(ctx context.Context, userID *int64, creatorID, amount int64, message string) (payment.ChargeRef, error)
	VerifyDonation(ctx context.Context, pidx string, userID *int64, creatorID int64, message string) (models.Donation, error)
}

// InitiateRequest starts a donation charge. UserID is nil for anonymous
// donations.
type InitiateRequest struct {
	CreatorID int64  `json:"creator_id" validate:"required,gt=0"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Message   string `json:"message,omitempty"`
	UserID    *int64 `json:"user_id,omitempty"`
}

type InitiateResponse struct {
	resp.Response
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

type VerifyRequest struct {
	Pidx      string `json:"pidx" validate:"required"`
	CreatorID int64  `json:"creator_id" validate:"required,gt=0"`
	Message   string `json:"message,omitempty"`
	UserID    *int64 `json:"user_id,omitempty"`
}

type VerifyResponse struct {
	resp.Response
	Donation views.DonationView `json:"donation"`
}

func NewInitiate(log *slog.Logger, validate *validator.Validate, donator Donator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.donation.NewInitiate"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		ref, err := donator.InitiateDonation(ctx, req.UserID, req.CreatorID, req.Amount, req.Message)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		log.Info("donation initiated",
			slog.Int64("creator_id", req.CreatorID),
			slog.String("pidx", ref.Pidx),
		)

		render.JSON(w, r, InitiateResponse{
			Response:   resp.OK(),
			Pidx:       ref.Pidx,
			PaymentURL: ref.PaymentURL,
		})
	}
}

func NewVerify(log *slog.Logger, validate *validator.Validate, donator Donator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.donation.NewVerify"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		don, err := donator.VerifyDonation(ctx, req.Pidx, req.UserID, req.CreatorID, req.Message)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		log.Info("donation recorded",
			slog.Int64("donation_id", don.ID),
			slog.Int64("creator_id", don.CreatorID),
		)

		render.JSON(w, r, VerifyResponse{
			Response: resp.OK(),
			Donation: views.FromDonation(don),
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("amount must be positive"))
	case errors.Is(err, payment.ErrAmountTooLarge):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("amount exceeds the donation limit"))
	case errors.Is(err, payment.ErrCreatorNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("creator not found"))
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
		log.Error("donation request failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("internal error"))
	}
}
