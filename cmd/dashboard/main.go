package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binsight-backend/internal/config"
	"binsight-backend/internal/events"
	"binsight-backend/internal/handlers"
	"binsight-backend/internal/metrics"
	"binsight-backend/internal/middleware"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
	"binsight-backend/internal/websocket"
	"binsight-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 BINSIGHT DASHBOARD STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: %v", err)
	}
	if err := cfg.ValidateDashboard(); err != nil {
		log.Fatalf("❌ FATAL ERROR: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := services.NewTelemetryClient(cfg.TelemetryBaseURL, cfg.HTTPTimeout)
	store := services.NewFleetStore(client, services.WithRefreshInterval(cfg.RefreshInterval))
	session := services.NewRouteSession(store)
	suggested := services.NewCachedRouteFetcher(client, store.Version, services.DefaultRouteCacheTTL, services.DefaultRouteCacheEntries)
	log.Printf("📡 Telemetry source: %s (refresh every %s)", client.BaseURL(), store.Interval())

	// Route commands cross replicas over Redis when configured. Snapshots and
	// plans are pushed only to this replica's own dashboards.
	var broker events.EventBroker = events.NewBroker()
	if cfg.RedisURL != "" {
		rb, err := events.NewRedisBroker(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), using in-memory broker", err)
		} else {
			broker = rb
			log.Println("✅ Redis event broker connected")
		}
	}
	defer broker.Close()

	hub := websocket.NewHub()
	hub.SetWelcome(func() [][]byte {
		return welcomeMessages(store, session)
	})
	go hub.Run()
	defer hub.Stop()

	store.Subscribe(func(snap *services.Snapshot) {
		broadcast(hub, events.TypeFleetSnapshot, handlers.NewFleetResponse(snap, session.StopOrder(), false, time.Now()))
	})
	session.OnChange(func(plan *models.RoutePlan) {
		broadcast(hub, events.TypeRoutePlan, plan)
	})

	routeSync := services.NewRouteSync(session, broker)
	routeSync.Start(ctx)
	log.Printf("🔗 Route sync replica id %s", routeSync.Origin())

	go store.Run(ctx)

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

	r.Get("/health", handlers.DashboardHealth(store))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", websocket.HandleWebSocket(hub, cfg.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			utils.Success(w, map[string]interface{}{
				"maps_api_key":     cfg.MapsAPIKey,
				"refresh_interval": store.Interval().Seconds(),
				"map_center":       services.DefaultMapCenter,
			})
		})

		r.Get("/fleet", handlers.GetFleet(store, session))
		r.Get("/fleet/stats", handlers.GetFleetStats(store))
		r.Post("/fleet/refresh", handlers.RefreshFleet(store))

		r.Post("/route", handlers.BuildRoutePlan(routeSync))
		r.Get("/route", handlers.GetRoutePlan(session))
		r.Delete("/route", handlers.ClearRoutePlan(routeSync))
		r.Get("/route/suggested", handlers.GetSuggestedRoute(suggested))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.DashboardPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down dashboard...")
		store.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Printf("✅ Dashboard listening on :%s", cfg.DashboardPort)
	log.Println("═══════════════════════════════════════════════════════════════════")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func broadcast(hub *websocket.Hub, eventType string, v any) {
	evt, err := events.NewEvent(eventType, v)
	if err != nil {
		log.Printf("❌ %v", err)
		return
	}
	hub.BroadcastJSON(evt)
}

// welcomeMessages replays the current snapshot and plan to a new dashboard
func welcomeMessages(store *services.FleetStore, session *services.RouteSession) [][]byte {
	var out [][]byte
	if evt, err := events.NewEvent(events.TypeFleetSnapshot,
		handlers.NewFleetResponse(store.Snapshot(), session.StopOrder(), false, time.Now())); err == nil {
		if b, err := json.Marshal(evt); err == nil {
			out = append(out, b)
		}
	}
	if plan, err := session.Current(); err == nil {
		if evt, err := events.NewEvent(events.TypeRoutePlan, plan); err == nil {
			if b, err := json.Marshal(evt); err == nil {
				out = append(out, b)
			}
		}
	}
	return out
}
