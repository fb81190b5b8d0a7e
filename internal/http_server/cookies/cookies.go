package cookies

import (
	"net/http"
	"time"
)

// RefreshCookie holds the refresh token between calls. HTTP-only keeps it
// away from scripts; SameSite=None lets the SPA on another origin send it.
const RefreshCookie = "refreshToken"

func SetRefreshToken(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func ClearRefreshToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// RefreshToken reads the refresh token cookie, returning "" when absent.
func RefreshToken(r *http.Request) string {
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
