package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binsight-backend/internal/config"
	"binsight-backend/internal/database"
	"binsight-backend/internal/handlers"
	"binsight-backend/internal/metrics"
	"binsight-backend/internal/middleware"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 BINSIGHT TELEMETRY SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("❌ FATAL ERROR: %v", err)
		log.Println("   Please set them in the environment, .env or CONFIG_FILE")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		os.Exit(1)
	}

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: Database migrations failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: User seeding failed: %v", err)
	}
	if err := database.SeedBins(db, 0); err != nil {
		log.Fatalf("❌ FATAL ERROR: Bins seeding failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Critical fill push alerts. Base64 credentials win over a file path.
	var notifier services.Notifier
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		alerts, err := services.NewAlertServiceFromBase64(ctx, cfg.FirebaseCredentialsBase64, cfg.AlertTopic)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (alerts disabled)", err)
		} else {
			notifier = alerts
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	case cfg.FirebaseCredentialsFile != "":
		alerts, err := services.NewAlertService(ctx, cfg.FirebaseCredentialsFile, cfg.AlertTopic)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (alerts disabled)", err)
		} else {
			notifier = alerts
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	default:
		log.Println("ℹ️  No Firebase credentials, critical alerts disabled")
	}

	limiter := services.NewIngestLimiter(cfg.IngestRatePerSecond, cfg.IngestBurst)
	planner := services.NewPriorityPlanner()

	metrics.RegisterDefault()

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.ServerHealth(db))
	r.Handle("/metrics", metrics.Handler())

	// Sensor and dashboard facing routes
	r.Post("/telemetry", handlers.IngestTelemetry(db, limiter, notifier))
	r.Get("/bins", handlers.GetBins(db))
	r.Get("/bins/{id}", handlers.GetBin(db))
	r.Post("/bins/{id}/emptied", handlers.MarkEmptied(db))
	r.Get("/heatmap", handlers.GetHeatmap(db))
	r.Get("/route", handlers.GetPriorityRoute(db, planner))

	r.Post("/api/auth/login", handlers.Login(db, cfg.JWTSecret))

	// Registry management (admin only)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RequireRole(models.RoleAdmin))

		r.Post("/bins/register", handlers.RegisterBin(db))
		r.Delete("/bins/{id}", handlers.DeleteBin(db, limiter))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down telemetry server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Printf("✅ Telemetry server listening on :%s", cfg.Port)
	log.Println("═══════════════════════════════════════════════════════════════════")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
