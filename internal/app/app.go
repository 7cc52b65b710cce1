package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trackscan/internal/config"
	"trackscan/internal/logger"
	"trackscan/internal/repository"
	"trackscan/internal/repository/sqlite"
	"trackscan/internal/route"
	"trackscan/internal/service"
	"trackscan/internal/service/ai"
	"trackscan/internal/service/inference"
	"trackscan/internal/service/storage"
	"trackscan/internal/service/websocket"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	detectors *ai.DetectorPool
	hub       *websocket.HubService
	manager   *service.Manager
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.LogDirectory, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := storage.NewStore(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	// Repositories stay untyped nil when history is disabled so the
	// manager's nil checks see a nil interface.
	var (
		db             *sqlite.DB
		predictionRepo repository.PredictionRepository
		detectionRepo  repository.DetectionRepository
	)
	if cfg.DatabasePath != "" {
		db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Close()
			return nil, err
		}
		predictionRepo = sqlite.NewPredictionRepository(db)
		detectionRepo = sqlite.NewDetectionRepository(db)
	} else {
		log.Warning("DB_PATH is empty, prediction history is disabled")
	}

	detectors := ai.NewDetectorPool(cfg, log)
	adapter := inference.NewAdapter(detectors, cfg, log)
	hub := websocket.NewHubService(log)

	return &App{
		config:    cfg,
		logger:    log,
		db:        db,
		detectors: detectors,
		hub:       hub,
		manager:   service.NewManager(store, adapter, hub, predictionRepo, detectionRepo, log),
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.hub, a.detectors, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Track inspection server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Uploads: %s, results: %s", a.config.UploadDirectory, a.config.ResultDirectory)
	a.logger.Info("Model: %s (loaded: %v, workers: %d)", a.config.ModelPath, a.detectors.Loaded(), a.config.DetectorWorkers)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

func (a *App) close() {
	if err := a.detectors.Close(); err != nil {
		a.logger.Error("Error closing detector pool: %v", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
	a.logger.Close()
}
