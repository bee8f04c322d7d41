package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/auth"
	"github.com/CrowdShield/CS-Backend/internal/blob"
	"github.com/CrowdShield/CS-Backend/internal/classify"
	"github.com/CrowdShield/CS-Backend/internal/config"
	"github.com/CrowdShield/CS-Backend/internal/dashboard"
	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/feed"
	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/CrowdShield/CS-Backend/internal/realtime"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/CrowdShield/CS-Backend/internal/webhooks"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Connect(cfg.DatabaseURL); err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	auth.Init()
	reports.Init()

	broker := reports.NewBroker()
	store := reports.NewGormStore(db.DB, broker, cfg.Realtime.PGListen)

	live := feed.New(cfg.Feed.Window)
	initial, err := feed.Load(ctx, store, cfg.Feed.Window, time.Now())
	if err != nil {
		zap.L().Fatal("Failed to load recent reports", zap.Error(err))
	}
	go live.Run(ctx, initial, broker.Subscribe(ctx))

	if cfg.Realtime.PGListen {
		listener := reports.NewListener(cfg.DatabaseURL, store, broker)
		listener.OnReconnect = func(ctx context.Context) {
			missed, err := feed.Load(ctx, store, cfg.Feed.Window, time.Now())
			if err != nil {
				zap.L().Warn("reconciling live feed", zap.Error(err))
				return
			}
			live.Merge(ctx, missed)
		}
		go listener.Run(ctx)
	}

	scheduler := cron.New()
	if _, err := live.SchedulePrune(ctx, scheduler, cfg.Feed.PruneSchedule); err != nil {
		zap.L().Fatal("Invalid feed prune schedule", zap.String("schedule", cfg.Feed.PruneSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	hub := realtime.NewHub()
	go hub.Run(ctx, broker.Subscribe(ctx))

	if cfg.Alerts.WebhookURL != "" {
		alerts := webhooks.NewDispatcher(cfg.Alerts.WebhookURL, cfg.Alerts.Secret, cfg.Alerts.Timeout)
		go alerts.Run(ctx, broker.Subscribe(ctx))
	}

	var backend classify.Backend
	if cfg.Classifier.GeminiAPIKey != "" {
		g, err := classify.NewGemini(ctx, cfg.Classifier.GeminiAPIKey, cfg.Classifier.Model)
		if err != nil {
			zap.L().Fatal("Failed to create Gemini client", zap.Error(err))
		}
		backend = g
	} else {
		zap.L().Warn("GEMINI_API_KEY not set, /analyze will return default suggestions")
	}

	files, err := blob.NewLocal(cfg.Audio.StorageDir, cfg.Audio.PublicBaseURL)
	if err != nil {
		zap.L().Fatal("Failed to prepare audio storage", zap.Error(err))
	}

	sessions := auth.SessionInfo{}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Mount("/auth", auth.SetupRoutes(&auth.Handler{TTL: cfg.SessionTTL, Secure: cfg.CookieSecure}, sessions))
	r.Mount("/reports", reports.SetupRoutes(&reports.Handler{Store: store}, sessions, realtime.Handler(hub, cfg.AllowedOrigins)))
	r.Mount("/audio", blob.SetupRoutes(&blob.Handler{Store: files, MaxBytes: cfg.Audio.MaxBytes}, cfg.Audio.StorageDir, cfg.Classifier.RatePerMinute))
	r.Mount("/analyze", classify.SetupRoutes(&classify.Handler{Backend: backend, Timeout: cfg.Classifier.Timeout}, cfg.Classifier.SharedKey, cfg.Classifier.RatePerMinute))
	r.Mount("/dashboard", dashboard.SetupRoutes(&dashboard.Handler{Feed: live, Location: cfg.Location()}, sessions))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logging.StdLog("http"),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("Server listening", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Fatal("Server failed", zap.Error(err))
	}
}
