package postgres

import (
	"context"
	"errors"
	"fmt"

	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/jackc/pgx/v5"
)

func (r *Repo) CreatorByID(ctx context.Context, id int64) (models.Creator, error) {
	query := `
		SELECT id, user_id, bio, description
		FROM creators
		WHERE id = $1;
	`

	var c models.Creator

	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Bio, &c.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Creator{}, storage.ErrCreatorNotFound
	}

	return c, err
}

func (r *Repo) MembershipByID(ctx context.Context, id int64) (models.Membership, error) {
	query := `
		SELECT id, creator_id, tier, name, amount, benefits
		FROM memberships
		WHERE id = $1 AND NOT is_deleted;
	`

	var m models.Membership

	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.CreatorID, &m.Tier, &m.Name, &m.Amount, &m.Benefits)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Membership{}, storage.ErrMembershipNotFound
	}

	return m, err
}

func (r *Repo) DonationsByCreator(ctx context.Context, creatorID int64) ([]models.Donation, error) {
	const op = "storage.postgres.DonationsByCreator"

	query := `
		SELECT id, creator_id, user_id, amount, message, payment_id, created_at
		FROM donations
		WHERE creator_id = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var donations []models.Donation

	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(&d.ID, &d.CreatorID, &d.UserID, &d.Amount, &d.Message, &d.PaymentID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		donations = append(donations, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return donations, nil
}
