// Package payment reconciles external gateway charges with domain state.
// The protocol is two-phase: Initiate builds a charge at the gateway, and
// Verify confirms the charge status with the gateway exactly once before
// applying the resulting mutation atomically. Nothing in this package
// creates a donation or enrollment without a confirmed payment row.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/payment/khalti"
	"creatorfund/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrAmountTooLarge       = errors.New("amount exceeds the single-donation ceiling")
	ErrCreatorNotFound      = errors.New("creator not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrNotEnrolled          = errors.New("no active enrollment to change")
	ErrAlreadyEnrolled      = errors.New("already enrolled with this creator")
	ErrDowngradeWhileActive = errors.New("cannot downgrade while the current enrollment is active")
	ErrAlreadyProcessed     = errors.New("payment already processed")
	ErrPaymentNotCompleted  = errors.New("payment not completed at the gateway")
	ErrGatewayTimeout       = errors.New("payment gateway timed out")
	ErrGateway              = errors.New("payment gateway error")
)

// Kind of membership charge being initiated or verified.
type Kind string

const (
	KindEnroll Kind = "enroll"
	KindChange Kind = "change"
)

type Gateway interface {
	InitiateCharge(ctx context.Context, req khalti.InitiateRequest) (khalti.InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (khalti.LookupResponse, error)
}

type Store interface {
	CreatorByID(ctx context.Context, id int64) (models.Creator, error)
	MembershipByID(ctx context.Context, id int64) (models.Membership, error)
	ApplyDonation(ctx context.Context, a storage.DonationApply) (models.Donation, error)
	ApplyEnrollment(ctx context.Context, a storage.EnrollmentApply) (models.EnrolledMembership, error)
}

// ChargeRef is the gateway handle handed back to the client after Initiate.
type ChargeRef struct {
	Pidx       string
	PaymentURL string
}

type Config struct {
	ReturnURL  string
	WebsiteURL string
	MaxAmount  int64
}

type Service struct {
	log     *slog.Logger
	gateway Gateway
	store   Store
	cfg     Config
}

func New(log *slog.Logger, gateway Gateway, store Store, cfg Config) *Service {
	return &Service{
		log:     log,
		gateway: gateway,
		store:   store,
		cfg:     cfg,
	}
}

// InitiateDonation builds a gateway charge for a donation. Anonymous donors
// are allowed (nil userID). The order id encodes payer, payee, purpose and a
// nonce so intent is reconstructable without a pending-transaction table.
func (s *Service) InitiateDonation(ctx context.Context, userID *int64, creatorID, amount int64, message string) (ChargeRef, error) {
	const op = "payment.InitiateDonation"

	log := s.log.With(slog.String("op", op))

	if amount <= 0 {
		return ChargeRef{}, ErrInvalidAmount
	}
	if amount > s.cfg.MaxAmount {
		return ChargeRef{}, ErrAmountTooLarge
	}

	if _, err := s.store.CreatorByID(ctx, creatorID); err != nil {
		if errors.Is(err, storage.ErrCreatorNotFound) {
			return ChargeRef{}, ErrCreatorNotFound
		}
		return ChargeRef{}, fmt.Errorf("%s: %w", op, err)
	}

	var payer int64
	if userID != nil {
		payer = *userID
	}

	req := khalti.InitiateRequest{
		ReturnURL:         s.cfg.ReturnURL,
		WebsiteURL:        s.cfg.WebsiteURL,
		Amount:            toMinorUnit(amount),
		PurchaseOrderID:   fmt.Sprintf("don:%d:%d:%s", payer, creatorID, uuid.NewString()),
		PurchaseOrderName: fmt.Sprintf("donation to creator %d", creatorID),
	}

	resp, err := s.gateway.InitiateCharge(ctx, req)
	if err != nil {
		log.Error("gateway initiate failed", sl.Err(err))
		return ChargeRef{}, gatewayErr(err)
	}

	log.Info("donation charge initiated", slog.String("pidx", resp.Pidx))

	return ChargeRef{Pidx: resp.Pidx, PaymentURL: resp.PaymentURL}, nil
}

// VerifyDonation confirms a donation charge with the gateway and applies the
// payment, donation and goal update as one atomic unit. A repeated call for
// the same gateway payment id fails with ErrAlreadyProcessed and writes
// nothing.
func (s *Service) VerifyDonation(ctx context.Context, pidx string, userID *int64, creatorID int64, message string) (models.Donation, error) {
	const op = "payment.VerifyDonation"

	log := s.log.With(slog.String("op", op), slog.String("pidx", pidx))

	lookup, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		log.Error("gateway lookup failed", sl.Err(err))
		return models.Donation{}, gatewayErr(err)
	}

	if lookup.Status != khalti.StatusCompleted {
		log.Warn("payment not completed", slog.String("status", lookup.Status))
		return models.Donation{}, ErrPaymentNotCompleted
	}

	donation, err := s.store.ApplyDonation(ctx, storage.DonationApply{
		GatewayID: gatewayID(lookup, pidx),
		Amount:    fromMinorUnit(lookup.TotalAmount),
		CreatorID: creatorID,
		UserID:    userID,
		Message:   message,
	})
	if err != nil {
		if errors.Is(err, storage.ErrPaymentExists) {
			log.Warn("duplicate donation verification")
			return models.Donation{}, ErrAlreadyProcessed
		}

		log.Error("failed to apply donation", sl.Err(err))
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("donation applied",
		slog.Int64("donation_id", donation.ID),
		slog.Int64("creator_id", creatorID),
	)

	return donation, nil
}

// InitiateMembership builds a gateway charge for a membership enroll or tier
// change. The charge amount is the membership price, not caller input.
func (s *Service) InitiateMembership(ctx context.Context, userID, membershipID int64, kind Kind) (ChargeRef, error) {
	const op = "payment.InitiateMembership"

	log := s.log.With(slog.String("op", op))

	membership, err := s.store.MembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, storage.ErrMembershipNotFound) {
			return ChargeRef{}, ErrMembershipNotFound
		}
		return ChargeRef{}, fmt.Errorf("%s: %w", op, err)
	}

	req := khalti.InitiateRequest{
		ReturnURL:         s.cfg.ReturnURL,
		WebsiteURL:        s.cfg.WebsiteURL,
		Amount:            toMinorUnit(membership.Amount),
		PurchaseOrderID:   fmt.Sprintf("mem:%d:%d:%s:%s", userID, membershipID, kind, uuid.NewString()),
		PurchaseOrderName: fmt.Sprintf("membership %q", membership.Name),
	}

	resp, err := s.gateway.InitiateCharge(ctx, req)
	if err != nil {
		log.Error("gateway initiate failed", sl.Err(err))
		return ChargeRef{}, gatewayErr(err)
	}

	log.Info("membership charge initiated", slog.String("pidx", resp.Pidx))

	return ChargeRef{Pidx: resp.Pidx, PaymentURL: resp.PaymentURL}, nil
}

// VerifyMembership confirms a membership charge and applies the enrollment
// mutation atomically. A tier change ends the current enrollment; a
// downgrade against a still-active enrollment is refused untouched.
func (s *Service) VerifyMembership(ctx context.Context, pidx string, userID, membershipID int64, kind Kind) (models.EnrolledMembership, error) {
	const op = "payment.VerifyMembership"

	log := s.log.With(slog.String("op", op), slog.String("pidx", pidx))

	lookup, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		log.Error("gateway lookup failed", sl.Err(err))
		return models.EnrolledMembership{}, gatewayErr(err)
	}

	if lookup.Status != khalti.StatusCompleted {
		log.Warn("payment not completed", slog.String("status", lookup.Status))
		return models.EnrolledMembership{}, ErrPaymentNotCompleted
	}

	enrollment, err := s.store.ApplyEnrollment(ctx, storage.EnrollmentApply{
		GatewayID:    gatewayID(lookup, pidx),
		Amount:       fromMinorUnit(lookup.TotalAmount),
		UserID:       userID,
		MembershipID: membershipID,
		Change:       kind == KindChange,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPaymentExists):
			log.Warn("duplicate membership verification")
			return models.EnrolledMembership{}, ErrAlreadyProcessed
		case errors.Is(err, storage.ErrMembershipNotFound):
			return models.EnrolledMembership{}, ErrMembershipNotFound
		case errors.Is(err, storage.ErrAlreadyEnrolled):
			return models.EnrolledMembership{}, ErrAlreadyEnrolled
		case errors.Is(err, storage.ErrEnrollmentNotFound):
			return models.EnrolledMembership{}, ErrNotEnrolled
		case errors.Is(err, storage.ErrDowngradeWhileActive):
			return models.EnrolledMembership{}, ErrDowngradeWhileActive
		}

		log.Error("failed to apply enrollment", sl.Err(err))
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("enrollment applied",
		slog.Int64("enrollment_id", enrollment.ID),
		slog.Int64("user_id", userID),
	)

	return enrollment, nil
}

// gatewayID picks the idempotency key for a confirmed charge. The lookup's
// transaction id can be empty, in which case the payment reference itself is
// unique per charge.
func gatewayID(lookup khalti.LookupResponse, pidx string) string {
	if lookup.TransactionID != "" {
		return lookup.TransactionID
	}
	return pidx
}

func gatewayErr(err error) error {
	switch {
	case errors.Is(err, khalti.ErrTimeout):
		return ErrGatewayTimeout
	default:
		return ErrGateway
	}
}

// The gateway bills in the minor currency unit (paisa).
func toMinorUnit(amount int64) int64   { return amount * 100 }
func fromMinorUnit(amount int64) int64 { return amount / 100 }
