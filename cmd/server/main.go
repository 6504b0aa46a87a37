package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyhub-backend/internal/config"
	"studyhub-backend/internal/database"
	"studyhub-backend/internal/handlers"
	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/router"
	"studyhub-backend/internal/services"
	"studyhub-backend/internal/websocket"
	"studyhub-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting StudyHub Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	docRepo := repository.NewDocumentRepo(pool)
	sessionRepo := repository.NewStudySessionRepo(pool)
	roomRepo := repository.NewStudyRoomRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	leaderboardRepo := repository.NewLeaderboardRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.AuthJWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	fileExtractService := services.NewFileExtractService()
	eventService := services.NewEventService(redisClients.PubSub)
	billingService := services.NewBillingService(cfg.BillingAPIURL, cfg.BillingAPIKey, cfg.BillingWebhookSecret)

	// ──── Initialize Handlers ────
	userHandler := handlers.NewUserHandler(userRepo, leaderboardRepo)
	documentHandler := handlers.NewDocumentHandler(docRepo, jobRepo, redisClients.Queue, cfg.StoragePath)
	sessionHandler := handlers.NewStudySessionHandler(sessionRepo, userRepo, quizRepo, docRepo, roomRepo)
	roomHandler := handlers.NewStudyRoomHandler(roomRepo, docRepo, eventService)
	quizHandler := handlers.NewQuizHandler(quizRepo, sessionRepo, userRepo, docRepo, jobRepo, redisClients.Queue)
	chatHandler := handlers.NewChatHandler(geminiService, docRepo, userRepo)
	billingHandler := handlers.NewBillingHandler(billingService, userRepo, cfg.FrontendURL)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		geminiService,
		fileExtractService,
		eventService,
		jobRepo,
		docRepo,
		quizRepo,
		cfg.StoragePath,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start Background Scheduler ────
	scheduler := services.NewScheduler(
		leaderboardRepo,
		userRepo,
		emailService,
		redisClients.Queue,
		time.Duration(cfg.LeaderboardIntervalM)*time.Minute,
	)
	scheduler.Start()
	log.Println("✓ Scheduler started")

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, userRepo)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		userRepo,
		userHandler,
		documentHandler,
		sessionHandler,
		roomHandler,
		quizHandler,
		chatHandler,
		billingHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ StudyHub Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
