package httpserver

import (
	"log/slog"

	"user_service/internal/auth"
	"user_service/internal/http_server/handlers/login"
	"user_service/internal/http_server/handlers/logout"
	"user_service/internal/http_server/handlers/refresh"
	"user_service/internal/http_server/handlers/register"
	"user_service/internal/http_server/middleware/authn"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

func NewRouter(
	log *slog.Logger,
	authService *auth.Auth,
	accessTokenSecret string,
	corsOrigin string,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	validate := validator.New()

	r.Post("/register",
		register.New(log, validate, authService),
	)
	r.Post("/login",
		login.New(log, validate, authService),
	)
	r.Post("/refresh-token",
		refresh.New(log, authService),
	)
	r.With(authn.New(log, accessTokenSecret)).Post("/logout",
		logout.New(log, authService),
	)

	return r
}
