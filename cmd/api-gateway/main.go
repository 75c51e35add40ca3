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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gym-backoffice-api/api/swagger"
	"github.com/noah-isme/gym-backoffice-api/internal/handler"
	"github.com/noah-isme/gym-backoffice-api/internal/repository"
	"github.com/noah-isme/gym-backoffice-api/internal/service"
	"github.com/noah-isme/gym-backoffice-api/pkg/cache"
	"github.com/noah-isme/gym-backoffice-api/pkg/config"
	"github.com/noah-isme/gym-backoffice-api/pkg/database"
	"github.com/noah-isme/gym-backoffice-api/pkg/export"
	"github.com/noah-isme/gym-backoffice-api/pkg/jobs"
	"github.com/noah-isme/gym-backoffice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gym-backoffice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gym-backoffice-api/pkg/middleware/requestid"
)

// @title Gym Back Office API
// @version 1.0.0
// @description Class scheduling, enrollment capacity, attendance rosters and monthly billing.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
		logr.Info("schema applied")
	}

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		redisRepo := repository.NewCacheRepository(client)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr.Named("cache"), cfg.Cache.Enabled)

	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		Logger:     logr.Named("jobs"),
	})
	hooks := service.NewNotificationDispatcher(queue, service.NewLogNotifier(logr.Named("events")), logr)
	queue.Start(ctx)
	defer queue.Stop()

	validate := validator.New()

	registryRepo := repository.NewRegistryRepository(db)
	offeringRepo := repository.NewClassOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	rosterRepo := repository.NewAttendanceRosterRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	offeringSvc := service.NewClassOfferingService(offeringRepo, registryRepo, enrollmentRepo, cacheSvc, metrics, validate, logr.Named("offerings"))
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, offeringRepo, registryRepo, hooks, cacheSvc, metrics, validate, logr.Named("enrollments"))
	rosterSvc := service.NewAttendanceRosterService(rosterRepo, offeringRepo, enrollmentRepo, hooks, cacheSvc, metrics, validate, logr.Named("rosters"), cfg.Rosters.MaxRangeDays)
	markingSvc := service.NewAttendanceMarkingService(rosterRepo, cacheSvc, validate, logr.Named("attendance"))
	billingSvc := service.NewBillingService(billingRepo, metrics, validate, logr.Named("billing"), service.BillingConfig{
		DefaultDueDay:   cfg.Billing.DefaultDueDay,
		DefaultCategory: cfg.Billing.DefaultCategory,
		CurrencyScale:   &cfg.Billing.CurrencyScale,
	})
	exportSvc := service.NewExportService(offeringRepo, rosterRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr.Named("export"))

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	deps := handler.RouterDeps{
		Prefix:      cfg.APIPrefix,
		Logger:      logr,
		Metrics:     metrics,
		Offerings:   handler.NewOfferingHandler(offeringSvc, exportSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Rosters:     handler.NewRosterHandler(rosterSvc, markingSvc, exportSvc),
		Billing:     handler.NewBillingHandler(billingSvc),
		Ops:         handler.NewMetricsHandler(metrics, checks),
	}
	if cfg.JWT.Enabled {
		deps.Auth = service.NewTokenVerifier(cfg.JWT.Secret)
	}
	handler.Register(r, deps)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("auth", cfg.JWT.Enabled), zap.Bool("cache", cfg.Cache.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
}
