package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"user_service/internal/lib/api/cookies"
	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/jwt"
	sl "user_service/internal/lib/logger"

	"github.com/go-chi/render"
)

type ctxKey struct{}

// New authenticates the request by access token, read from the accessToken
// cookie or the Authorization Bearer header. On success the user id is placed
// in the request context.
func New(log *slog.Logger, accessTokenSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.New"

			token := tokenFromRequest(r)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("unauthorized request"))

				return
			}

			claims, err := jwt.ParseToken(token, accessTokenSecret)
			if err != nil {
				log.Warn("invalid access token", slog.String("op", op), sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid access token"))

				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id placed by New.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(cookies.AccessToken); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}

	return ""
}
