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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/sma-substitute-api/api/swagger"
	"github.com/noah-isme/sma-substitute-api/internal/handler"
	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/cache"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/database"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-substitute-api/pkg/seed"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

// @title Substitute Desk API
// @version 1.0.0
// @description Timetables, teacher availability and the substitute request lifecycle
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	envFile := pflag.String("config", ".env", "path to the env file")
	seedFile := pflag.String("seed", "", "seed YAML (overrides SEED_FILE)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *seedFile != "" {
		cfg.SeedFile = *seedFile
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
	logr.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	data, err := seed.LoadFile(cfg.SeedFile, seed.Options{})
	if err != nil {
		return err
	}

	store := repository.NewTimetableStore(data.Days, data.Periods)
	if err := store.Load(data.Slots); err != nil {
		return fmt.Errorf("load seed timetable: %w", err)
	}
	teachers, err := repository.NewTeacherDirectory(data.Teachers, data.Departments)
	if err != nil {
		return fmt.Errorf("load teachers: %w", err)
	}
	users, err := repository.NewUserDirectory(data.Users)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	absences := repository.NewAbsenceRepository()
	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var journal service.Journal
	var journalQueue *jobs.Queue
	if cfg.Journal.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer db.Close()
		version, err := database.Migrate(ctx, db.DB)
		if err != nil {
			return fmt.Errorf("migrate journal database: %w", err)
		}
		logr.Info("journal schema ready", zap.Int64("version", version))

		journalSvc := service.NewJournalService(repository.NewJournalRepository(db), metrics, logr)
		if err := journalSvc.Replay(ctx, absences, store); err != nil {
			return err
		}
		journalQueue = jobs.NewQueue("journal", journalSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Journal.Workers,
			MaxRetries: cfg.Journal.Retries,
			Logger:     logr,
		})
		journalSvc.Bind(journalQueue)
		journal = journalSvc
		checks["postgres"] = db.PingContext
	}
	teachers.RebuildSubjects(store.Slots())

	var cacheSvc *service.CacheService
	if cfg.Snapshot.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cacheRepo := repository.NewCacheRepository(client, "substitute-desk", logr)
		defer cacheRepo.Close()
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Snapshot.CacheTTL, logr, true)
		checks["redis"] = cacheRepo.Ping
	}

	snapshots := service.NewSnapshotService(store, teachers, absences, cacheSvc, cfg.Snapshot.CacheTTL, logr)

	availabilityOpts := []service.AvailabilityServiceOption{
		service.WithAvailabilityMetrics(metrics),
		service.WithPendingSubstitutes(absences),
	}
	if cfg.AI.Enabled() {
		recommender, err := service.NewGeminiRecommender(ctx, service.GeminiConfig{
			APIKey:     cfg.AI.APIKey,
			Model:      cfg.AI.Model,
			BaseURL:    cfg.AI.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.AI.Timeout},
		}, logr)
		if err != nil {
			return err
		}
		availabilityOpts = append(availabilityOpts, service.WithRecommender(recommender, cfg.AI.Timeout))
		logr.Info("substitute recommender enabled", zap.String("model", cfg.AI.Model))
	}
	availability := service.NewAvailabilityService(store, teachers, logr, availabilityOpts...)

	absenceSvc := service.NewAbsenceService(absences, store, teachers, validate, logr,
		service.WithAbsenceJournal(journal),
		service.WithAbsenceMetrics(metrics),
		service.WithSnapshotInvalidator(snapshots),
	)
	timetableSvc := service.NewTimetableService(store, teachers, absences, journal, snapshots, validate, logr)
	notificationSvc := service.NewNotificationService(absences, logr)
	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return err
	}
	exportSvc := service.NewExportService(absenceSvc, files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Timetable:     handler.NewTimetableHandler(timetableSvc, snapshots),
		Teachers:      handler.NewTeacherHandler(availability),
		Absences:      handler.NewAbsenceHandler(absenceSvc, exportSvc),
		Exports:       handler.NewExportHandler(exportSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Metrics:       handler.NewMetricsHandler(metrics, checks),
	}, authSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if journalQueue != nil {
		// Stop owns the queue's lifetime so pending writes drain on shutdown.
		journalQueue.Start(context.WithoutCancel(ctx))
	}
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return exportSvc.RunCleanup(gctx, cfg.Exports.CleanupInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if journalQueue != nil {
			// Drain pending journal writes before the database closes.
			journalQueue.Stop(shutdownCtx)
		}
		return err
	})
	return g.Wait()
}
