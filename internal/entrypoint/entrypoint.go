package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/audit"
	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/database"
	auditrepo "github.com/mrlokans/courseimport/internal/database/audit"
	"github.com/mrlokans/courseimport/internal/database/courses"
	"github.com/mrlokans/courseimport/internal/database/imports"
	"github.com/mrlokans/courseimport/internal/drivewalk"
	http_controllers "github.com/mrlokans/courseimport/internal/http"
	"github.com/mrlokans/courseimport/internal/importers"
	"github.com/mrlokans/courseimport/internal/logging"
	"github.com/mrlokans/courseimport/internal/objectstore/s3store"
	"github.com/mrlokans/courseimport/internal/objectstore/sftpstore"
	"github.com/mrlokans/courseimport/internal/progress"
	"github.com/mrlokans/courseimport/internal/progress/mongosink"
	"github.com/mrlokans/courseimport/internal/progress/redissink"
	"github.com/mrlokans/courseimport/internal/remote"
	"github.com/mrlokans/courseimport/internal/scheduler"
	"github.com/mrlokans/courseimport/internal/storage/providers/gdrive"
	"github.com/mrlokans/courseimport/internal/tasks"
	"github.com/mrlokans/courseimport/internal/transfer"
)

// App holds every long-lived component of one process
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Database *database.Database
	Runs     *imports.Repository
	Audit    *audit.Service
	Importer *importers.Importer

	// Health lists the optional components /health reports on
	Health []http_controllers.Dependency

	closers []func() error
}

// Build opens the database, the Drive client, the object store and the optional progress sinks,
// and wires them into an importer. Close releases everything Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	app := &App{Config: cfg, Logger: logger}

	db, err := database.NewDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.Database = db
	app.closers = append(app.closers, db.Close)

	client, err := gdrive.NewClient(ctx, cfg.Drive.CredentialsFile)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("%w: %v", importers.ErrAuthentication, err)
	}

	exec := remote.NewExecutor(remote.Config{
		RateLimitInterval:   cfg.Remote.RateLimitInterval,
		MaxRateLimitBackoff: cfg.Remote.MaxRateLimitBackoff,
		Retries:             cfg.Remote.Retries,
		BaseDelay:           cfg.Remote.BaseDelay,
		Timeout:             cfg.Remote.CallTimeout,
	}, logger)

	store, err := app.objectStore(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	manager := transfer.NewManager(client, exec, store, transfer.ConfigFrom(cfg.Transfer), logger)
	walker := drivewalk.New(client, exec, manager, drivewalk.ConfigFrom(cfg.Transfer), logger)

	app.Runs = imports.NewRepository(db.DB)
	reporter := app.reporter(ctx, cfg)

	var archive *audit.Auditor
	if cfg.Audit.ReportDir != "" {
		archive = audit.NewAuditor(cfg.Audit.ReportDir)
	}
	app.Audit = audit.NewService(auditrepo.NewRepository(db.DB), archive, logger)

	app.Importer = importers.NewImporter(client, exec, courses.NewRepository(db.DB), walker, reporter, app.Audit, logger)
	return app, nil
}

func (a *App) objectStore(cfg *config.Config) (transfer.ObjectStore, error) {
	switch cfg.ObjectStorage.Backend {
	case config.StorageBackendSFTP:
		store := sftpstore.New(cfg.SFTP, cfg.Transfer.ChunkSize, a.Logger)
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StorageBackendS3, "":
		return s3store.NewFromConfig(cfg.ObjectStorage, cfg.Transfer.ChunkSize, a.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.ObjectStorage.Backend)
	}
}

// reporter fans progress out to the run table and, when configured, to redis and mongo.
// A sink that cannot connect is logged and left out.
func (a *App) reporter(ctx context.Context, cfg *config.Config) progress.Reporter {
	reporters := []progress.Reporter{a.Runs}

	if cfg.Redis.URL != "" {
		client, err := redissink.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			a.Logger.Warn("redis progress publisher disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, client.Close)
			reporters = append(reporters, redissink.New(client, cfg.Redis.Channel))
			a.Health = append(a.Health, http_controllers.Dependency{
				Name: "redis",
				Pinger: http_controllers.PingFunc(func(ctx context.Context) error {
					return client.Ping(ctx).Err()
				}),
			})
		}
	}

	if cfg.Mongo.URI != "" {
		client, collection, err := mongosink.Connect(ctx, cfg.Mongo)
		if err != nil {
			a.Logger.Warn("mongo job log disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() error {
				return client.Disconnect(context.Background())
			})
			reporters = append(reporters, mongosink.New(collection))
			a.Health = append(a.Health, http_controllers.Dependency{
				Name: "mongo",
				Pinger: http_controllers.PingFunc(func(ctx context.Context) error {
					return client.Ping(ctx, nil)
				}),
			})
		}
	}

	return progress.Multi(reporters...)
}

// Close waits for pending audit writes and releases resources in reverse order
func (a *App) Close() {
	if a.Audit != nil {
		a.Audit.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting work before the HTTP server goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logger := logging.MustNew(cfg.Log)
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting course importer", zap.String("version", version))

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer app.Close()

	routerCfg := http_controllers.RouterConfig{
		Database: app.Database,
		Runs:     app.Runs,
		Audit:    app.Audit,
		Version:  version,
		Logger:   logger,
	}

	var taskClient *tasks.Client
	var syncScheduler *scheduler.ImportSyncScheduler

	if cfg.Tasks.Enabled {
		taskCfg := tasks.FromConfig(cfg.Tasks)
		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize task queue", zap.Error(err))
		}
		taskClient.Register(
			tasks.NewImportDriveQueue(app.Importer, taskCfg, logger),
			tasks.NewCleanupHistoryQueue(app.Audit, app.Runs, logger),
		)
		taskClient.Start(ctx)

		syncScheduler = scheduler.NewImportSyncScheduler(scheduler.SettingsFrom(cfg), taskClient, app.Runs, logger)
		if err := syncScheduler.Start(ctx); err != nil {
			logger.Error("failed to start import scheduler", zap.Error(err))
		}

		routerCfg.Queue = taskClient
		routerCfg.TaskStatus = taskClient
		routerCfg.SyncTrigger = syncScheduler
		routerCfg.Dependencies = append(routerCfg.Dependencies, http_controllers.Dependency{Name: "task_queue", Required: true, Pinger: taskClient})
	} else {
		logger.Warn("task queue disabled, imports can only be run from the command line")
		routerCfg.Dependencies = append(routerCfg.Dependencies, http_controllers.Dependency{Name: "task_queue"})
	}
	routerCfg.Dependencies = append(routerCfg.Dependencies, app.Health...)

	router := http_controllers.NewRouter(routerCfg)

	Serve(router, cfg, logger, func(shutdownCtx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil {
			if !taskClient.Stop(shutdownCtx) {
				logger.Warn("task queue did not stop in time")
			}
			if err := taskClient.Close(); err != nil {
				logger.Warn("failed to close task queue", zap.Error(err))
			}
		}
	})
}
