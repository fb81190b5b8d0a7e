package refresh

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creatorfund/internal/auth"
	"creatorfund/internal/http_server/cookies"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRotator struct {
	pair auth.TokenPair
	err  error

	gotToken string
}

func (f *fakeRotator) Refresh(_ context.Context, token string) (auth.TokenPair, error) {
	f.gotToken = token
	return f.pair, f.err
}

func newHandler(fake *fakeRotator) http.HandlerFunc {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, fake)
}

func TestRefreshFromCookie(t *testing.T) {
	fake := &fakeRotator{
		pair: auth.TokenPair{
			AccessToken:      "new-access",
			RefreshToken:     "new-refresh",
			RefreshExpiresAt: time.Now().Add(time.Hour),
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: cookies.RefreshCookie, Value: "old-refresh"})

	rec := httptest.NewRecorder()
	newHandler(fake)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old-refresh", fake.gotToken)

	var rotated *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookies.RefreshCookie {
			rotated = c
		}
	}
	require.NotNil(t, rotated)
	assert.Equal(t, "new-refresh", rotated.Value)
}

func TestRefreshFromBodyFallback(t *testing.T) {
	fake := &fakeRotator{
		pair: auth.TokenPair{RefreshToken: "new-refresh", RefreshExpiresAt: time.Now().Add(time.Hour)},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		bytes.NewBufferString(`{"refresh_token":"body-refresh"}`))

	rec := httptest.NewRecorder()
	newHandler(fake)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body-refresh", fake.gotToken)
}

func TestRefreshMissingToken(t *testing.T) {
	fake := &fakeRotator{}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)

	rec := httptest.NewRecorder()
	newHandler(fake)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fake.gotToken)
}

func TestRefreshErrorMapping(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantCode    int
		wantCleared bool
	}{
		{"unknown token", auth.ErrInvalidCredentials, http.StatusUnauthorized, false},
		{"expired token", auth.ErrTokenExpired, http.StatusUnauthorized, true},
		{"revoked token", auth.ErrTokenRevoked, http.StatusUnauthorized, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeRotator{err: tc.err}

			req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
			req.AddCookie(&http.Cookie{Name: cookies.RefreshCookie, Value: "stale"})

			rec := httptest.NewRecorder()
			newHandler(fake)(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == cookies.RefreshCookie && c.MaxAge < 0 {
					cleared = true
				}
			}
			assert.Equal(t, tc.wantCleared, cleared)
		})
	}
}
