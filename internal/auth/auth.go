package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creatorfund/internal/lib/jwt"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/lib/passhash"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserExists           = errors.New("user already exists")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrTokenExpired         = errors.New("refresh token expired")
	ErrTokenRevoked         = errors.New("refresh token revoked")
	ErrVerificationExpired  = errors.New("verification token expired")
	ErrVerificationNotFound = errors.New("verification token not found")
)

type UserStore interface {
	SaveUser(ctx context.Context, email, username, firstName, lastName, passHash string) (int64, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passHash string) error
	SetVerified(ctx context.Context, userID int64) error
	SetVerificationToken(ctx context.Context, userID int64, token, purpose string, expiresAt time.Time) error
	UserByVerificationToken(ctx context.Context, token string) (models.User, models.VerificationToken, error)
	ClearVerificationToken(ctx context.Context, userID int64) error
}

type SessionStore interface {
	SaveRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	RefreshToken(ctx context.Context, token string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID int64) error
}

// TokenPair is what login and refresh hand back to the HTTP layer. The
// refresh token goes into an HTTP-only cookie; the access token only ever
// travels in the response body.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Outcome of consuming a verification token.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeExpired
	OutcomeNotFound
)

type Config struct {
	JWTSecret       string
	Issuer          string
	Audience        string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
}

type Auth struct {
	log      *slog.Logger
	users    UserStore
	sessions SessionStore
	cfg      Config
}

func New(log *slog.Logger, users UserStore, sessions SessionStore, cfg Config) *Auth {
	return &Auth{
		log:      log,
		users:    users,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Login verifies the credentials and, for verified accounts, mints an
// access/refresh pair and persists the refresh token.
func (a *Auth) Login(ctx context.Context, email, password string) (TokenPair, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return TokenPair{}, models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return TokenPair{}, models.User{}, err
	}

	ok, err := passhash.Verify(password, user.PassHash)
	if err != nil {
		log.Error("failed to verify password", sl.Err(err))
		return TokenPair{}, models.User{}, ErrInvalidCredentials
	}
	if !ok {
		log.Info("invalid credentials")
		return TokenPair{}, models.User{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return TokenPair{}, models.User{}, ErrEmailNotVerified
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return TokenPair{}, models.User{}, err
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return pair, user, nil
}

// Register creates an unverified user and issues an email-verification token
// for it. The caller publishes the verification email.
func (a *Auth) Register(ctx context.Context, email, username, firstName, lastName, password string) (models.User, string, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := passhash.Hash(password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.users.SaveUser(ctx, email, username, firstName, lastName, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, "", ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.UserByID(ctx, id)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.IssueVerificationToken(ctx, id, models.PurposeVerifyEmail)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", id))

	return user, token, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a brand
// new pair is issued. A second use of the same token lands on the revoked
// branch, which is how replay of a stolen token gets detected.
func (a *Auth) Refresh(ctx context.Context, tokenValue string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	rt, err := a.sessions.RefreshToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Warn("refresh token not found")
			return TokenPair{}, ErrInvalidCredentials
		}

		log.Error("failed to load refresh token", sl.Err(err))
		return TokenPair{}, err
	}

	// Expiry wins over the revoked flag.
	if time.Now().After(rt.ExpiresAt) {
		if _, err := a.sessions.RevokeRefreshToken(ctx, tokenValue); err != nil {
			log.Error("failed to revoke expired token", sl.Err(err))
		}
		return TokenPair{}, ErrTokenExpired
	}

	if rt.Revoked {
		log.Warn("revoked refresh token presented, possible replay", slog.Int64("uid", rt.UserID))
		return TokenPair{}, ErrTokenRevoked
	}

	// The conditional update is the serialization point: of two rotations
	// racing on the same token, exactly one wins.
	won, err := a.sessions.RevokeRefreshToken(ctx, tokenValue)
	if err != nil {
		log.Error("failed to revoke refresh token", sl.Err(err))
		return TokenPair{}, err
	}
	if !won {
		log.Warn("lost rotation race, token already revoked", slog.Int64("uid", rt.UserID))
		return TokenPair{}, ErrTokenRevoked
	}

	user, err := a.users.UserByID(ctx, rt.UserID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return TokenPair{}, err
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return pair, nil
}

// Logout revokes the presented refresh token.
func (a *Auth) Logout(ctx context.Context, tokenValue string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	rt, err := a.sessions.RefreshToken(ctx, tokenValue)
	if err != nil {
		log.Warn("refresh token not found", sl.Err(err))
		return ErrInvalidCredentials
	}

	if _, err := a.sessions.RevokeRefreshToken(ctx, rt.Token); err != nil {
		log.Error("failed to revoke refresh token", sl.Err(err))
		return err
	}

	log.Info("logout successful", slog.Int64("uid", rt.UserID))

	return nil
}

// LogoutAll revokes every refresh token of the user. Used for
// logout-everywhere and after a password reset.
func (a *Auth) LogoutAll(ctx context.Context, userID int64) error {
	const op = "auth.LogoutAll"

	if err := a.sessions.RevokeAllRefreshTokens(ctx, userID); err != nil {
		a.log.With(slog.String("op", op)).Error("failed to revoke tokens", sl.Err(err))
		return err
	}

	return nil
}

func (a *Auth) issuePair(ctx context.Context, user models.User) (TokenPair, error) {
	accessToken, accessExpiresAt, err := jwt.NewAccessToken(
		user.ID, user.Role,
		a.cfg.JWTSecret, a.cfg.Issuer, a.cfg.Audience,
		a.cfg.AccessTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := jwt.NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	refreshExpiresAt := time.Now().Add(a.cfg.RefreshTTL)

	if err := a.sessions.SaveRefreshToken(ctx, user.ID, refreshToken, refreshExpiresAt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// IssueVerificationToken stores a fresh single-use token on the user row,
// overwriting any outstanding one.
func (a *Auth) IssueVerificationToken(ctx context.Context, userID int64, purpose string) (string, error) {
	const op = "auth.IssueVerificationToken"

	token := uuid.NewString()
	expiresAt := time.Now().Add(a.cfg.VerificationTTL)

	if err := a.users.SetVerificationToken(ctx, userID, token, purpose, expiresAt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// ConsumeVerificationToken resolves a token and clears it regardless of
// outcome, so a value can never be presented twice. An expired token still
// resolves the user, letting callers offer a resend.
func (a *Auth) ConsumeVerificationToken(ctx context.Context, token, purpose string) (models.User, Outcome, error) {
	const op = "auth.ConsumeVerificationToken"

	log := a.log.With(slog.String("op", op))

	user, vt, err := a.users.UserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, OutcomeNotFound, nil
		}

		log.Error("failed to resolve verification token", sl.Err(err))
		return models.User{}, OutcomeNotFound, err
	}

	if err := a.users.ClearVerificationToken(ctx, user.ID); err != nil {
		log.Error("failed to clear verification token", sl.Err(err))
		return models.User{}, OutcomeNotFound, err
	}

	if vt.Purpose != purpose {
		log.Warn("verification token purpose mismatch", slog.String("purpose", vt.Purpose))
		return models.User{}, OutcomeNotFound, nil
	}

	if time.Now().After(vt.ExpiresAt) {
		return user, OutcomeExpired, nil
	}

	return user, OutcomeValid, nil
}

// VerifyAccount consumes an email-verification token and marks the account
// verified. On expiry the resolved user is still returned so the caller can
// offer a resend.
func (a *Auth) VerifyAccount(ctx context.Context, token string) (models.User, error) {
	const op = "auth.VerifyAccount"

	user, outcome, err := a.ConsumeVerificationToken(ctx, token, models.PurposeVerifyEmail)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	switch outcome {
	case OutcomeNotFound:
		return models.User{}, ErrVerificationNotFound
	case OutcomeExpired:
		return user, ErrVerificationExpired
	}

	if err := a.users.SetVerified(ctx, user.ID); err != nil {
		a.log.Error("failed to mark user verified", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("email verified", slog.Int64("uid", user.ID))

	return user, nil
}

// ResendVerification re-issues the email-verification token for an
// unverified account, invalidating the previous one.
func (a *Auth) ResendVerification(ctx context.Context, email string) (models.User, string, error) {
	const op = "auth.ResendVerification"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, "", storage.ErrUserNotFound
		}
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return models.User{}, "", ErrAlreadyVerified
	}

	token, err := a.IssueVerificationToken(ctx, user.ID, models.PurposeVerifyEmail)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return user, token, nil
}

// RequestPasswordReset issues a reset token for the account, if one exists.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) (models.User, string, error) {
	const op = "auth.RequestPasswordReset"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, "", storage.ErrUserNotFound
		}
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.IssueVerificationToken(ctx, user.ID, models.PurposeResetPassword)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return user, token, nil
}

// ResetPassword consumes a reset token and replaces the credential wholesale.
// Every live session of the user is revoked.
func (a *Auth) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	user, outcome, err := a.ConsumeVerificationToken(ctx, token, models.PurposeResetPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch outcome {
	case OutcomeNotFound:
		return ErrVerificationNotFound
	case OutcomeExpired:
		return ErrVerificationExpired
	}

	passHash, err := passhash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.UpdatePassword(ctx, user.ID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sessions.RevokeAllRefreshTokens(ctx, user.ID); err != nil {
		log.Error("failed to revoke sessions after reset", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.Int64("uid", user.ID))

	return nil
}
