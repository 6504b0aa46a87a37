package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyhub-backend/internal/handlers"
	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	resolver middleware.UserResolver,
	userHandler *handlers.UserHandler,
	documentHandler *handlers.DocumentHandler,
	sessionHandler *handlers.StudySessionHandler,
	roomHandler *handlers.StudyRoomHandler,
	quizHandler *handlers.QuizHandler,
	chatHandler *handlers.ChatHandler,
	billingHandler *handlers.BillingHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Write-heavy endpoints share a per-IP limiter (30 req/min).
	writeLimiter := middleware.NewRateLimiter(30, time.Minute)

	userContext := middleware.UserContext(resolver)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── User Routes ────
		r.Route("/users", func(r chi.Router) {
			// Sync runs before the local profile exists, so it sits behind
			// token verification only.
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/sync", userHandler.Sync)
			})

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware, userContext)
				r.Get("/me", userHandler.GetMe)
				r.Get("/me/stats", userHandler.GetMyStats)
				r.Get("/{id}", userHandler.GetUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.Get("/leaderboard", userHandler.Leaderboard)
		})

		// ──── Document Routes ────
		r.Route("/documents", func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.With(writeLimiter.Middleware).Post("/upload", documentHandler.Upload)
			r.Get("/", documentHandler.List)
			r.Get("/public", documentHandler.Public)
			r.Get("/recent", documentHandler.Recent)
			r.Get("/search", documentHandler.Search)
			r.Get("/{id}", documentHandler.Get)
			r.Put("/{id}", documentHandler.UpdateMetadata)
			r.Put("/{id}/progress", documentHandler.UpdateProgress)
			r.Delete("/{id}", documentHandler.Delete)
			r.Get("/{id}/quizzes", quizHandler.DocumentQuizzes)
		})

		// ──── Study Session Routes ────
		r.Route("/study-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.Post("/start", sessionHandler.Start)
			r.Get("/", sessionHandler.List)
			r.Get("/active", sessionHandler.Active)
			r.Get("/stats", sessionHandler.Stats)
			r.Get("/{id}", sessionHandler.Details)
			r.Post("/{id}/pomodoro", sessionHandler.Pomodoro)
			r.Post("/{id}/end", sessionHandler.End)
			r.Get("/{id}/pending-quiz", quizHandler.PendingQuiz)
		})

		// ──── Study Room Routes ────
		r.Route("/study-rooms", func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.With(writeLimiter.Middleware).Post("/", roomHandler.Create)
			r.Get("/public", roomHandler.Public)
			r.Get("/mine", roomHandler.Mine)
			r.Get("/{id}", roomHandler.Details)
			r.Post("/{id}/join", roomHandler.Join)
			r.Post("/{id}/leave", roomHandler.Leave)
			r.Put("/{id}/document", roomHandler.SetDocument)
			r.Put("/{id}/status", roomHandler.UpdateStatus)
		})

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.Post("/", quizHandler.Create)
			r.With(writeLimiter.Middleware).Post("/generate", quizHandler.Generate)
			r.Get("/", quizHandler.List)
			r.Get("/stats", quizHandler.Stats)
			r.Get("/{id}", quizHandler.Get)
			r.Post("/{id}/submit", quizHandler.Submit)
		})

		// ──── AI Chat ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.With(writeLimiter.Middleware).Post("/chat", chatHandler.Chat)
		})

		// ──── Billing Routes ────
		r.Route("/billing", func(r chi.Router) {
			// The provider calls the webhook; it authenticates by signature.
			r.Post("/webhook", billingHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/checkout", billingHandler.Checkout)
				r.Post("/cancel", billingHandler.Cancel)
				r.Get("/subscription", billingHandler.GetSubscription)
			})
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware, userContext)
			r.Get("/{id}", jobHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
