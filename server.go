package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"districtfinder/internal/config"
	"districtfinder/internal/nces"
)

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Port          int
	Service       nces.Service
	DB            *DB
	CacheTTL      time.Duration
	PurgeSchedule string
	Debounce      time.Duration
}

// NewRouter wires the HTMX pages and the JSON API over svc
func NewRouter(svc nces.Service, debounce time.Duration) (http.Handler, error) {
	webHandler, err := NewWebHandler(svc, debounce)
	if err != nil {
		return nil, err
	}
	apiHandler := &APIHandler{Service: svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", webHandler.SearchPage)
	r.Get("/districts", webHandler.Districts)
	r.Get("/districts/{leaid}/schools", webHandler.Schools)

	r.Route("/api", func(r chi.Router) {
		r.Get("/districts", apiHandler.SearchDistricts)
		r.Get("/districts/{leaid}/schools", apiHandler.ListSchools)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return r, nil
}

// startPurge schedules removal of expired lookup cache rows
func startPurge(db *DB, schedule string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := db.PurgeLookupCache(ctx, ttl); err != nil && logger != nil {
			logger.Error("Lookup cache purge failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cache purge: %w", err)
	}
	c.Start()
	return c, nil
}

// StartServer initializes and starts the HTTP server. It returns once the
// process is interrupted and in-flight requests have drained.
func StartServer(cfg ServerConfig) error {
	router, err := NewRouter(cfg.Service, cfg.Debounce)
	if err != nil {
		return err
	}

	if cfg.DB != nil && cfg.CacheTTL > 0 {
		c, err := startPurge(cfg.DB, cfg.PurgeSchedule, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer func() {
			<-c.Stop().Done()
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on http://localhost%s", srv.Addr)
		if logger != nil {
			logger.Info("HTTP server listening", "addr", srv.Addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if logger != nil {
		logger.Info("HTTP server shutting down")
	}
	return srv.Shutdown(shutdownCtx)
}

// startServer is the serve command's entry point
func startServer(cfg *config.Config) error {
	if err := setupLogger(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logger: %v\n", err)
	}

	svc, db, err := openService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return StartServer(ServerConfig{
		Port:          cfg.Port,
		Service:       svc,
		DB:            db,
		CacheTTL:      cfg.CacheTTL,
		PurgeSchedule: cfg.PurgeSchedule,
		Debounce:      cfg.Debounce,
	})
}
