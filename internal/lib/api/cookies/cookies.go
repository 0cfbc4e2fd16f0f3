package cookies

import (
	"net/http"

	"user_service/internal/models"
)

const (
	AccessToken  = "accessToken"
	RefreshToken = "refreshToken"
)

// Set writes both session cookies. No explicit expiry: the cookies are
// session-scoped, httpOnly and restricted to secure transport.
func Set(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessToken,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshToken,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	})
}

func Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessToken, RefreshToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
		})
	}
}
