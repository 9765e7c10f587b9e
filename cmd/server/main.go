package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/api"
	"github.com/dennisdiepolder/callcrm/backend/internal/assignment"
	"github.com/dennisdiepolder/callcrm/backend/internal/auth"
	"github.com/dennisdiepolder/callcrm/backend/internal/config"
	"github.com/dennisdiepolder/callcrm/backend/internal/lease"
	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/performance"
	"github.com/dennisdiepolder/callcrm/backend/internal/pool"
	"github.com/dennisdiepolder/callcrm/backend/internal/progress"
	"github.com/dennisdiepolder/callcrm/backend/internal/storage"
	"github.com/dennisdiepolder/callcrm/backend/internal/websocket"
	"github.com/dennisdiepolder/callcrm/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("day_key_timezone", cfg.DayKeyTimezone.String()).
		Msg("starting callcrm backend server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create persistence store (DynamoDB or noop, depending on DYNAMODB_MODE)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Core engine
	recordPool := pool.NewPool(cfg.ReservationTTL, store, log.Logger)

	leases := lease.NewManager(cfg.LeaseTTL, log.Logger)
	go leases.Start(ctx, cfg.SweepInterval)

	tracker := progress.NewTracker(cfg.DayKeyTimezone, store, log.Logger)
	go tracker.Start(ctx, cfg.ResetCheckInterval)

	distributor := assignment.NewDistributor(recordPool, leases, tracker, store, log.Logger)

	aggregator := performance.NewAggregator(distributor, tracker, cfg.DailyCallTarget, cfg.DayKeyTimezone)

	// Dashboard stream
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	broadcaster := websocket.NewBroadcaster(hub, aggregator, cfg.BroadcastInterval, log.Logger)
	go broadcaster.Start(ctx)

	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// HTTP handlers
	recordsHandler := api.NewRecordsHandler(recordPool, log.Logger)
	leasesHandler := api.NewLeasesHandler(leases, log.Logger)
	assignmentsHandler := api.NewAssignmentsHandler(distributor, log.Logger)
	progressHandler := api.NewProgressHandler(tracker, store, log.Logger)
	performanceHandler := api.NewPerformanceHandler(aggregator, store, log.Logger)
	adminHandler := api.NewAdminHandler(store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws/dashboard", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Route("/records", func(r chi.Router) {
				r.Get("/available", recordsHandler.FetchAvailable)
				r.Get("/counts", recordsHandler.Counts)

				r.Route("/{recordId}/lease", func(r chi.Router) {
					r.Post("/", leasesHandler.Acquire)
					r.Put("/", leasesHandler.Renew)
					r.Delete("/", leasesHandler.Release)
					r.Get("/", leasesHandler.ClaimInfo)
				})

				r.With(api.RequireManager).Post("/import", recordsHandler.Import)
			})

			r.With(api.RequireManager).Get("/leases", leasesHandler.Snapshot)

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", assignmentsHandler.ListMine)
				r.With(api.RequireManager).Post("/", assignmentsHandler.Distribute)

				r.Route("/{assignmentId}", func(r chi.Router) {
					r.Get("/", assignmentsHandler.Get)
					r.Post("/claim", assignmentsHandler.Claim)
					r.Post("/called", assignmentsHandler.MarkCalled)
					r.Post("/complete", assignmentsHandler.Complete)
					r.With(api.RequireManager).Delete("/", assignmentsHandler.ForceUnassign)
				})
			})

			r.Route("/progress", func(r chi.Router) {
				r.Get("/", progressHandler.GetMine)
				r.With(api.RequireManager).Get("/all", progressHandler.GetAll)
				r.With(api.RequireManager).Get("/{agentId}", progressHandler.GetAgent)
				r.Get("/{agentId}/history", progressHandler.GetHistory)
			})

			r.Get("/performance/team", performanceHandler.TeamSnapshot)
			r.With(api.RequireManager).Put("/performance/targets/{agentId}", performanceHandler.SetTarget)
			r.With(api.RequireManager).Get("/reports", performanceHandler.Report)
			r.With(api.RequireManager).Get("/reports/history/{dateKey}", performanceHandler.HistoryByDate)

			r.With(api.RequireAdmin).Delete("/admin/storage", adminHandler.WipeStorage)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background loops
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"callcrm-backend"}`)
}
