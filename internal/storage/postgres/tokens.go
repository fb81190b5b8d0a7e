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

func (r *Repo) SaveRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked)
		VALUES ($1, $2, $3, FALSE);
	`

	if _, err := r.pool.Exec(ctx, query, token, userID, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repo) RefreshToken(ctx context.Context, token string) (models.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, revoked
		FROM refresh_tokens
		WHERE token = $1;
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, token).Scan(
		&rt.ID,
		&rt.Token,
		&rt.UserID,
		&rt.ExpiresAt,
		&rt.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, err
}

// RevokeRefreshToken flips the revoked flag and reports whether this call won
// the transition. Two rotations racing on the same token resolve here: the
// loser sees false and must treat the token as already revoked. Rows are
// never deleted, so issuance history stays auditable.
func (r *Repo) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token = $1 AND revoked = FALSE;
	`

	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *Repo) RevokeAllRefreshTokens(ctx context.Context, userID int64) error {
	const op = "storage.postgres.RevokeAllRefreshTokens"

	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE;
	`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
