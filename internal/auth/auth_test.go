package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"creatorfund/internal/lib/passhash"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	nextID   int64
	users    map[int64]*models.User
	tokens   map[int64]models.VerificationToken
	sessions map[string]*models.RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		users:    make(map[int64]*models.User),
		tokens:   make(map[int64]models.VerificationToken),
		sessions: make(map[string]*models.RefreshToken),
	}
}

func (f *fakeStore) SaveUser(_ context.Context, email, username, firstName, lastName, passHash string) (int64, error) {
	for _, u := range f.users {
		if u.Email == email || u.Username == username {
			return 0, storage.ErrUserExists
		}
	}

	id := f.nextID
	f.nextID++

	f.users[id] = &models.User{
		ID:        id,
		Email:     email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		PassHash:  passHash,
		Role:      "user",
		CreatedAt: time.Now(),
	}

	return id, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID int64, passHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	return nil
}

func (f *fakeStore) SetVerified(_ context.Context, userID int64) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *fakeStore) SetVerificationToken(_ context.Context, userID int64, token, purpose string, expiresAt time.Time) error {
	if _, ok := f.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	f.tokens[userID] = models.VerificationToken{Token: token, Purpose: purpose, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeStore) UserByVerificationToken(_ context.Context, token string) (models.User, models.VerificationToken, error) {
	for id, vt := range f.tokens {
		if vt.Token == token {
			return *f.users[id], vt, nil
		}
	}
	return models.User{}, models.VerificationToken{}, storage.ErrUserNotFound
}

func (f *fakeStore) ClearVerificationToken(_ context.Context, userID int64) error {
	delete(f.tokens, userID)
	return nil
}

func (f *fakeStore) SaveRefreshToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	f.sessions[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeStore) RefreshToken(_ context.Context, token string) (models.RefreshToken, error) {
	rt, ok := f.sessions[token]
	if !ok {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}
	return *rt, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, token string) (bool, error) {
	rt, ok := f.sessions[token]
	if !ok || rt.Revoked {
		return false, nil
	}
	rt.Revoked = true
	return true, nil
}

func (f *fakeStore) RevokeAllRefreshTokens(_ context.Context, userID int64) error {
	for _, rt := range f.sessions {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

func newTestAuth(store *fakeStore) *Auth {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, store, store, Config{
		JWTSecret:       "test-secret",
		Issuer:          "test",
		Audience:        "test-web",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		VerificationTTL: time.Hour,
	})
}

func registerVerified(t *testing.T, a *Auth, email, password string) models.User {
	t.Helper()

	ctx := context.Background()

	_, token, err := a.Register(ctx, email, "user_"+email, "Test", "User", password)
	require.NoError(t, err)

	user, err := a.VerifyAccount(ctx, token)
	require.NoError(t, err)

	return user
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	user, token, err := a.Register(ctx, "alice@example.com", "alice", "Alice", "A", "password123")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, token)

	// Unverified accounts cannot log in.
	_, _, err = a.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = a.VerifyAccount(ctx, token)
	require.NoError(t, err)

	pair, loggedIn, err := a.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	registerVerified(t, a, "bob@example.com", "password123")

	_, _, err := a.Login(ctx, "bob@example.com", "not the password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	_, _, err := a.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	_, _, err := a.Register(ctx, "carol@example.com", "carol", "Carol", "C", "password123")
	require.NoError(t, err)

	_, _, err = a.Register(ctx, "carol@example.com", "carol2", "Carol", "C", "password123")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	registerVerified(t, a, "dave@example.com", "password123")

	pair, _, err := a.Login(ctx, "dave@example.com", "password123")
	require.NoError(t, err)

	rotated, err := a.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the already-rotated token must fail.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// The fresh token still works.
	_, err = a.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshExpiryWinsOverRevoked(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	user := registerVerified(t, a, "erin@example.com", "password123")

	store.sessions["stale"] = &models.RefreshToken{
		Token:     "stale",
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
		Revoked:   true,
	}

	_, err := a.Refresh(ctx, "stale")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshUnknownToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	_, err := a.Refresh(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	registerVerified(t, a, "frank@example.com", "password123")

	pair, _, err := a.Login(ctx, "frank@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, pair.RefreshToken))

	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	user := registerVerified(t, a, "grace@example.com", "password123")

	first, _, err := a.Login(ctx, "grace@example.com", "password123")
	require.NoError(t, err)
	second, _, err := a.Login(ctx, "grace@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, a.LogoutAll(ctx, user.ID))

	_, err = a.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = a.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestVerificationTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	_, token, err := a.Register(ctx, "heidi@example.com", "heidi", "Heidi", "H", "password123")
	require.NoError(t, err)

	_, err = a.VerifyAccount(ctx, token)
	require.NoError(t, err)

	_, err = a.VerifyAccount(ctx, token)
	assert.ErrorIs(t, err, ErrVerificationNotFound)
}

func TestVerifyExpiredTokenStillResolvesUser(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	registered, token, err := a.Register(ctx, "ivan@example.com", "ivan", "Ivan", "I", "password123")
	require.NoError(t, err)

	vt := store.tokens[registered.ID]
	vt.ExpiresAt = time.Now().Add(-time.Minute)
	store.tokens[registered.ID] = vt

	user, err := a.VerifyAccount(ctx, token)
	assert.ErrorIs(t, err, ErrVerificationExpired)
	assert.Equal(t, registered.ID, user.ID)

	// Expired consumption still burns the token.
	_, err = a.VerifyAccount(ctx, token)
	assert.ErrorIs(t, err, ErrVerificationNotFound)
}

func TestResendInvalidatesPreviousToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	_, oldToken, err := a.Register(ctx, "judy@example.com", "judy", "Judy", "J", "password123")
	require.NoError(t, err)

	_, newToken, err := a.ResendVerification(ctx, "judy@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)

	_, err = a.VerifyAccount(ctx, oldToken)
	assert.ErrorIs(t, err, ErrVerificationNotFound)

	_, err = a.VerifyAccount(ctx, newToken)
	require.NoError(t, err)
}

func TestResendForVerifiedAccount(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	registerVerified(t, a, "kate@example.com", "password123")

	_, _, err := a.ResendVerification(ctx, "kate@example.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestResetTokenRejectedForVerification(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(newFakeStore())

	user := registerVerified(t, a, "mallory@example.com", "password123")

	_, resetToken, err := a.RequestPasswordReset(ctx, "mallory@example.com")
	require.NoError(t, err)
	assert.Equal(t, "mallory@example.com", user.Email)

	// A reset token must not verify an email, and the attempt burns it.
	_, err = a.VerifyAccount(ctx, resetToken)
	assert.ErrorIs(t, err, ErrVerificationNotFound)

	err = a.ResetPassword(ctx, resetToken, "newpassword123")
	assert.ErrorIs(t, err, ErrVerificationNotFound)
}

func TestResetPasswordFlow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	registerVerified(t, a, "nina@example.com", "oldpassword1")

	pair, _, err := a.Login(ctx, "nina@example.com", "oldpassword1")
	require.NoError(t, err)

	_, token, err := a.RequestPasswordReset(ctx, "nina@example.com")
	require.NoError(t, err)

	require.NoError(t, a.ResetPassword(ctx, token, "newpassword1"))

	_, _, err = a.Login(ctx, "nina@example.com", "oldpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login(ctx, "nina@example.com", "newpassword1")
	require.NoError(t, err)

	// Every session from before the reset is dead.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestPasswordHashNeverStoredInClear(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newTestAuth(store)

	user, _, err := a.Register(ctx, "oscar@example.com", "oscar", "Oscar", "O", "password123")
	require.NoError(t, err)

	stored := store.users[user.ID]
	assert.NotEqual(t, "password123", stored.PassHash)

	ok, err := passhash.Verify("password123", stored.PassHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
