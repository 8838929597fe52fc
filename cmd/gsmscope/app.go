package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RMahshie/gsmscope/internal/api"
	"github.com/RMahshie/gsmscope/internal/api/handlers"
	"github.com/RMahshie/gsmscope/internal/bandplan"
	"github.com/RMahshie/gsmscope/internal/config"
	"github.com/RMahshie/gsmscope/internal/export"
	"github.com/RMahshie/gsmscope/internal/metrics"
	"github.com/RMahshie/gsmscope/internal/monitor"
	"github.com/RMahshie/gsmscope/internal/repository"
	"github.com/RMahshie/gsmscope/internal/repository/postgres"
	"github.com/RMahshie/gsmscope/internal/scanner"
	"github.com/RMahshie/gsmscope/internal/storage"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// app holds the wired components shared by the commands
type app struct {
	cfg     *config.Config
	plan    *bandplan.Plan
	monitor *monitor.Monitor
	metrics *metrics.Metrics
	repo    repository.ReadingRepository
	db      *sql.DB
}

// newApp wires the scanner, the refresh loop and every configured cycle observer
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	plan, err := cfg.Bandplan()
	if err != nil {
		return nil, err
	}

	scan, err := scanner.NewRTLPowerScanner(cfg.ScannerConfig())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, plan: plan, metrics: metrics.New()}
	observers := []monitor.Observer{a.metrics}

	if cfg.Export.Path != "" {
		observers = append(observers, export.NewFileExporter(cfg.Export.Path, cfg.Scan.Gain))
		log.Info().Str("path", cfg.Export.Path).Msg("Exporting results file")
	}

	if cfg.AWS.S3Bucket != "" {
		s3Service, err := storage.NewS3Service(ctx, cfg.S3Config())
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 service: %w", err)
		}
		observers = append(observers, export.NewUploadExporter(s3Service, cfg.Export.Prefix, cfg.Scan.Gain, cfg.Export.Retention))
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Str("prefix", cfg.Export.Prefix).Msg("Uploading results")
	}

	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := postgres.NewPostgresReadingRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.repo = repo
		observers = append(observers, postgres.NewHistoryObserver(repo))
		log.Info().Msg("Storing reading history")
	}

	mon, err := monitor.New(cfg.MonitorConfig(plan), scan, plan, observers...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.monitor = mon
	return a, nil
}

// Close releases the database connection
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// startServer serves the status API in the background
func (a *app) startServer() *http.Server {
	h := handlers.NewReadingsHandler(a.monitor, a.plan, a.repo, api.Version)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           api.NewRouter(a.cfg.Server.AllowedOrigins, h, a.metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting gsmscope API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	}()
	return srv
}

// shutdown stops srv gracefully
func shutdown(srv *http.Server) {
	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
