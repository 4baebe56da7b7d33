package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quizly-backend/internal/handlers"
	"quizly-backend/internal/middleware"
)

func New(
	cookieAuth *middleware.CookieAuth,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// Optional authentication is resolved for every API request;
		// RequireAuth gates the endpoints that demand a principal.
		r.Use(cookieAuth.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/token/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/createQuiz", quizHandler.Create)
			r.Get("/quizzes", quizHandler.List)
			r.Get("/quizzes/{id}", quizHandler.Get)
			r.Patch("/quizzes/{id}", quizHandler.Update)
			r.Delete("/quizzes/{id}", quizHandler.Delete)
		})
	})

	return r
}
