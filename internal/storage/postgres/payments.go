package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/jackc/pgx/v5"
)

// advanceGoal adds a confirmed donation to an open goal. Progress only ever
// grows; reached flips true once progress meets the target. Goals already
// marked reached are never selected for update, so reached cannot flip back.
func advanceGoal(progress, target, amount int64) (int64, bool) {
	progress += amount
	return progress, progress >= target
}

// decideEnrollment applies the membership transition rules before any row is
// written. A fresh enroll requires no active enrollment with the creator; a
// change requires one and must not move to a lower tier while it is active.
func decideEnrollment(change, hasActive bool, currentTier, newTier int) error {
	if !change {
		if hasActive {
			return storage.ErrAlreadyEnrolled
		}
		return nil
	}

	if !hasActive {
		return storage.ErrEnrollmentNotFound
	}
	if newTier < currentTier {
		return storage.ErrDowngradeWhileActive
	}

	return nil
}

// insertPayment records the confirmed charge inside tx. The unique index on
// gateway_id is the concurrency guard: a duplicate insert racing past the
// existence check surfaces as a unique violation and is reported as
// ErrPaymentExists, same as the fast path.
func insertPayment(ctx context.Context, tx pgx.Tx, gatewayID string, amount int64) (int64, error) {
	var exists bool

	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE gateway_id = $1);`,
		gatewayID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, storage.ErrPaymentExists
	}

	var id int64

	err = tx.QueryRow(ctx,
		`INSERT INTO payments (gateway_id, amount, status) VALUES ($1, $2, 'completed') RETURNING id;`,
		gatewayID, amount,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrPaymentExists
		}
		return 0, err
	}

	return id, nil
}

// ApplyDonation persists the payment row, the donation it funds and the
// creator's goal progress as one transaction. Either all three land or none
// do.
func (r *Repo) ApplyDonation(ctx context.Context, a storage.DonationApply) (models.Donation, error) {
	const op = "storage.postgres.ApplyDonation"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	paymentID, err := insertPayment(ctx, tx, a.GatewayID, a.Amount)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentExists) {
			return models.Donation{}, storage.ErrPaymentExists
		}
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	}

	donation := models.Donation{
		CreatorID: a.CreatorID,
		UserID:    a.UserID,
		Amount:    a.Amount,
		Message:   a.Message,
		PaymentID: &paymentID,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO donations (creator_id, user_id, amount, message, payment_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at;`,
		a.CreatorID, a.UserID, a.Amount, a.Message, paymentID,
	).Scan(&donation.ID, &donation.CreatedAt)
	if err != nil {
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	}

	// At most one active-and-not-reached goal per creator. Progress only ever
	// grows; reached never flips back.
	var (
		goalID   int64
		target   int64
		progress int64
	)

	err = tx.QueryRow(ctx,
		`SELECT id, target, progress
		 FROM donation_goals
		 WHERE creator_id = $1 AND active AND NOT reached
		 LIMIT 1
		 FOR UPDATE;`,
		a.CreatorID,
	).Scan(&goalID, &target, &progress)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// no open goal, nothing to update
	case err != nil:
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	default:
		progress, reached := advanceGoal(progress, target, a.Amount)
		_, err = tx.Exec(ctx,
			`UPDATE donation_goals SET progress = $1, reached = $2 WHERE id = $3;`,
			progress, reached, goalID,
		)
		if err != nil {
			return models.Donation{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Donation{}, fmt.Errorf("%s: %w", op, err)
	}

	return donation, nil
}

// ApplyEnrollment persists the payment row and the resulting enrollment
// mutation atomically. A tier change ends the old enrollment in the same
// transaction; a downgrade against a still-active enrollment is refused with
// no writes.
func (r *Repo) ApplyEnrollment(ctx context.Context, a storage.EnrollmentApply) (models.EnrolledMembership, error) {
	const op = "storage.postgres.ApplyEnrollment"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var (
		creatorID int64
		newTier   int
	)

	err = tx.QueryRow(ctx,
		`SELECT creator_id, tier FROM memberships WHERE id = $1 AND NOT is_deleted;`,
		a.MembershipID,
	).Scan(&creatorID, &newTier)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.EnrolledMembership{}, storage.ErrMembershipNotFound
	}
	if err != nil {
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		currentID   int64
		currentTier int
	)

	err = tx.QueryRow(ctx,
		`SELECT em.id, m.tier
		 FROM enrolled_memberships em
		 JOIN memberships m ON m.id = em.membership_id
		 WHERE em.user_id = $1 AND m.creator_id = $2 AND em.active
		 FOR UPDATE OF em;`,
		a.UserID, creatorID,
	).Scan(&currentID, &currentTier)

	hasActive := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := decideEnrollment(a.Change, hasActive, currentTier, newTier); err != nil {
		return models.EnrolledMembership{}, err
	}

	paymentID, err := insertPayment(ctx, tx, a.GatewayID, a.Amount)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentExists) {
			return models.EnrolledMembership{}, storage.ErrPaymentExists
		}
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	if a.Change {
		_, err = tx.Exec(ctx,
			`UPDATE enrolled_memberships SET active = FALSE, expires_at = NOW() WHERE id = $1;`,
			currentID,
		)
		if err != nil {
			return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	enrollment := models.EnrolledMembership{
		MembershipID: a.MembershipID,
		UserID:       a.UserID,
		Active:       true,
		PaidAmount:   a.Amount,
		PaymentID:    &paymentID,
		EnrolledAt:   time.Now(),
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO enrolled_memberships (membership_id, user_id, enrolled_at, expires_at, active, paid_amount, payment_id)
		 VALUES ($1, $2, NOW(), NOW() + INTERVAL '1 month', TRUE, $3, $4)
		 RETURNING id, enrolled_at, expires_at;`,
		a.MembershipID, a.UserID, a.Amount, paymentID,
	).Scan(&enrollment.ID, &enrollment.EnrolledAt, &enrollment.ExpiresAt)
	if err != nil {
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.EnrolledMembership{}, fmt.Errorf("%s: %w", op, err)
	}

	return enrollment, nil
}
