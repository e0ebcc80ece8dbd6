package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"camwatch/internal/annotation"
	"camwatch/internal/capture"
	"camwatch/internal/config"
	"camwatch/internal/index"
	"camwatch/internal/intake"
	"camwatch/internal/logger"
	"camwatch/internal/notify"
	"camwatch/internal/policy"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/routes"
	"camwatch/internal/service/websocket"
	"camwatch/internal/storage"

	"github.com/emersion/go-smtp"
)

const (
	httpShutdownTimeout = 10 * time.Second
	drainTimeout        = 30 * time.Second
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	index         *index.Index
	filter        *annotation.Filter
	db            *sqlite.DB
	supervisor    *capture.Supervisor
	hubService    *websocket.HubService
	publisher     *notify.NATSPublisher
	retention     *storage.RetentionService
	// retentionDone is closed once the retention loop has returned.
	retentionDone chan struct{}
	smtpServer    *smtp.Server
	httpServer    *http.Server
}

// NewApp builds every component from cfg. Failures here are startup failures.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	filter, err := annotation.NewFilter(cfg.DropScore, cfg.MinScore, cfg.IgnoreAnnotations, cfg.ImportantAnnotations)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	eventRepo := sqlite.NewEventRepository(db)

	idx := index.New()
	hub := websocket.NewHubService(logger)
	observers := []capture.Observer{hub}

	var publisher *notify.NATSPublisher
	if cfg.NATSURL != "" {
		publisher, err = notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		observers = append(observers, publisher)
	}

	notifier := notify.NewNotifier(notify.Config{
		URLTemplate:     cfg.NotifyURLTemplate,
		IncludeMediaURL: cfg.IncludeVideoURL,
	}, logger)
	if !notifier.Enabled() {
		logger.Warning("NOTIFY_URL_TEMPLATE not set, notifications disabled")
	}

	supervisor := capture.NewSupervisor(logger)
	orchestrator := capture.NewOrchestrator(capture.Config{
		DataDirectory:   cfg.DataDirectory,
		CaptureCommand:  cfg.CaptureCommand,
		UploadCommand:   cfg.UploadCommand,
		UploadURLPrefix: cfg.UploadURLPrefix,
	}, capture.ExecRunner{Timeout: cfg.CommandTimeout}, supervisor, filter, idx, eventRepo, notifier, logger, observers...)

	capturePolicy := policy.New(policy.OccupancyFile{Path: cfg.OccupancyFile}, cfg.NightHourBegin, cfg.NightHourEnd, logger)
	backend := intake.NewBackend(cfg.Cameras, idx, capturePolicy, orchestrator, logger)

	a := &App{
		config:        cfg,
		logger:        logger,
		index:         idx,
		filter:        filter,
		db:            db,
		supervisor:    supervisor,
		hubService:    hub,
		publisher:     publisher,
		retentionDone: make(chan struct{}),
		smtpServer:    intake.NewServer(cfg.SMTPAddress, backend),
		httpServer:    &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           routes.SetupRoutes(cfg, idx, eventRepo, hub, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	a.retention = storage.NewRetentionService(cfg.DataDirectory, cfg.RetentionAge(), cfg.RetentionInterval, a.Reindex, eventRepo, logger)
	return a, nil
}

// Reindex rebuilds the tag index from the data directory.
func (a *App) Reindex() error {
	n, err := a.index.Rebuild(a.config.DataDirectory, a.filter.Derive, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("Indexed %d stills from %s", n, a.config.DataDirectory)
	return nil
}

// Run serves SMTP and HTTP until ctx is cancelled or a listener fails, then
// drains in-flight capture tasks.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hubService.Run(ctx)
	go func() {
		defer close(a.retentionDone)
		a.retention.Run(ctx)
	}()

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("SMTP intake listening on %s", a.config.SMTPAddress)
		if err := a.smtpServer.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			errCh <- fmt.Errorf("smtp server: %w", err)
		}
	}()
	go func() {
		a.logger.Info("Web UI listening on %s", a.config.HTTPAddress)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	a.logger.Info("Cameras configured: %d, data directory: %s", len(a.config.Cameras), a.config.DataDirectory)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-errCh:
		a.logger.Error("Shutting down: %v", runErr)
	}
	cancel()

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	if err := a.smtpServer.Close(); err != nil {
		a.logger.Warning("Error closing SMTP server: %v", err)
	}

	httpCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Warning("Error shutting down HTTP server: %v", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := a.supervisor.Wait(drainCtx); err != nil {
		a.logger.Warning("Abandoned %d capture tasks: %v", a.supervisor.Active(), err)
	}

	// A sweep in progress still writes to the journal.
	<-a.retentionDone

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warning("Error closing NATS connection: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Error closing database: %v", err)
	}
}
