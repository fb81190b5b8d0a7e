package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorfund/internal/config"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised on a unique-index
// conflict. For payments it is the serialization point for concurrent
// duplicate verifications.
const uniqueViolation = "23505"

type Repo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*Repo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const userColumns = `id, email, username, first_name, last_name, password_hash, role, is_verified, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PassHash,
		&u.Role,
		&u.IsVerified,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

func (r *Repo) SaveUser(ctx context.Context, email, username, firstName, lastName, passHash string) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, username, first_name, last_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, 'user')
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, username, firstName, lastName, passHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *Repo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1;`

	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *Repo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`

	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repo) SetVerified(ctx context.Context, userID int64) error {
	query := `UPDATE users SET is_verified = TRUE WHERE id = $1;`

	_, err := r.pool.Exec(ctx, query, userID)

	return err
}

func (r *Repo) UpdatePassword(ctx context.Context, userID int64, passHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2;`

	_, err := r.pool.Exec(ctx, query, passHash, userID)

	return err
}

// SetVerificationToken overwrites any outstanding verification token for the
// user; only one is valid at a time.
func (r *Repo) SetVerificationToken(ctx context.Context, userID int64, token, purpose string, expiresAt time.Time) error {
	const op = "storage.postgres.SetVerificationToken"

	query := `
		UPDATE users
		SET verification_token = $1, verification_purpose = $2, verification_expires_at = $3
		WHERE id = $4;
	`

	tag, err := r.pool.Exec(ctx, query, token, purpose, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *Repo) UserByVerificationToken(ctx context.Context, token string) (models.User, models.VerificationToken, error) {
	query := `
		SELECT ` + userColumns + `, verification_token, verification_purpose, verification_expires_at
		FROM users
		WHERE verification_token = $1;
	`

	row := r.pool.QueryRow(ctx, query, token)

	var (
		u  models.User
		vt models.VerificationToken
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PassHash,
		&u.Role,
		&u.IsVerified,
		&u.CreatedAt,
		&vt.Token,
		&vt.Purpose,
		&vt.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, models.VerificationToken{}, storage.ErrUserNotFound
	}

	return u, vt, err
}

// ClearVerificationToken removes the token fields so the same value cannot be
// consumed twice.
func (r *Repo) ClearVerificationToken(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET verification_token = NULL, verification_purpose = NULL, verification_expires_at = NULL
		WHERE id = $1;
	`

	_, err := r.pool.Exec(ctx, query, userID)

	return err
}
