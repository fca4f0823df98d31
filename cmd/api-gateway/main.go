package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/amdraipt/timetable-api/api/swagger"
	"github.com/amdraipt/timetable-api/internal/handler"
	"github.com/amdraipt/timetable-api/internal/middleware"
	"github.com/amdraipt/timetable-api/internal/repository"
	"github.com/amdraipt/timetable-api/internal/scheduler"
	"github.com/amdraipt/timetable-api/internal/service"
	"github.com/amdraipt/timetable-api/pkg/cache"
	"github.com/amdraipt/timetable-api/pkg/config"
	"github.com/amdraipt/timetable-api/pkg/database"
	"github.com/amdraipt/timetable-api/pkg/jobs"
	"github.com/amdraipt/timetable-api/pkg/logger"
	corsmiddleware "github.com/amdraipt/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/amdraipt/timetable-api/pkg/middleware/requestid"
	"github.com/amdraipt/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description School timetable generation, analytics and export service
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		cancelSchema()
		logr.Sugar().Fatalw("failed to apply schema", "error", err)
	}
	cancelSchema()

	// Redis is a soft dependency: without it every cached read degrades to
	// a miss and the API stays up.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.AnalyticsTTL, logr)

	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	slotRepo := repository.NewTimeSlotRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	exportRepo := repository.NewExportRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	validate := validator.New()

	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	slotSvc := service.NewTimeSlotService(slotRepo, validate, logr)
	authSvc := service.NewAuthService(validate, logr, cfg.Auth)

	timetableSvc := service.NewTimetableService(
		teacherRepo, subjectRepo, roomRepo, slotRepo, timetableRepo,
		cacheSvc, metricsSvc, logr,
		service.TimetableConfig{
			Weights: scheduler.Weights{
				SubjectSpread: cfg.Scheduler.WeightSubjectSpread,
				TeacherSpread: cfg.Scheduler.WeightTeacherSpread,
				Consecutive:   cfg.Scheduler.WeightConsecutive,
				PeriodRepeat:  cfg.Scheduler.WeightPeriodRepeat,
			},
			CacheTTL: cfg.Cache.TimetableTTL,
		},
	)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	exportWorker := service.NewExportWorker(
		exportRepo, timetableSvc, exportStore, nil, nil,
		metricsSvc, logr, cfg.Exports.WorkerRetries,
	)
	exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		BufferSize: cfg.Exports.QueueSize,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc := service.NewExportJobService(
		exportRepo, exportQueue, exportStore, signer,
		metricsSvc, logr,
		service.ExportJobServiceConfig{
			BasePath:        cfg.APIPrefix + "/exports",
			Retention:       cfg.Exports.Retention,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxAttempts:     cfg.Exports.WorkerRetries,
		},
	)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue.Start(shutdownCtx)
	defer exportQueue.Stop()

	recoverCtx, cancelRecover := context.WithTimeout(context.Background(), 10*time.Second)
	exportSvc.RecoverUnfinished(recoverCtx)
	cancelRecover()
	exportSvc.StartCleanup(shutdownCtx)

	healthChecks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	slotHandler := handler.NewTimeSlotHandler(slotSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, healthChecks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/healthz", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	if cfg.Auth.Enabled {
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)
	}

	api.GET("/teachers", teacherHandler.List)
	api.GET("/teachers/:id", teacherHandler.Get)
	api.GET("/subjects", subjectHandler.List)
	api.GET("/subjects/:id", subjectHandler.Get)
	api.GET("/rooms", roomHandler.List)
	api.GET("/rooms/:id", roomHandler.Get)
	api.GET("/timeslots", slotHandler.List)
	api.GET("/timetable", timetableHandler.Get)
	api.GET("/timetable/export/csv", timetableHandler.ExportCSV)
	api.GET("/analytics", analyticsHandler.Overview)
	api.GET("/exports/:id", exportHandler.Get)
	// Download auth lives in the signed token so links work without a header.
	api.GET("/exports/:id/download", exportHandler.Download)

	mutating := api.Group("")
	if cfg.Auth.Enabled {
		mutating.Use(middleware.JWT(authSvc))
	}
	mutating.POST("/teachers", teacherHandler.Create)
	mutating.PUT("/teachers/:id", teacherHandler.Update)
	mutating.DELETE("/teachers/:id", teacherHandler.Delete)
	mutating.POST("/subjects", subjectHandler.Create)
	mutating.PUT("/subjects/:id", subjectHandler.Update)
	mutating.DELETE("/subjects/:id", subjectHandler.Delete)
	mutating.POST("/rooms", roomHandler.Create)
	mutating.PUT("/rooms/:id", roomHandler.Update)
	mutating.DELETE("/rooms/:id", roomHandler.Delete)
	mutating.POST("/timeslots", slotHandler.Create)
	mutating.POST("/timeslots/generate-default", slotHandler.GenerateDefault)
	mutating.DELETE("/timeslots/:id", slotHandler.Delete)
	mutating.POST("/timetable/generate", timetableHandler.Generate)
	mutating.POST("/exports", exportHandler.Create)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-shutdownCtx.Done()
		logr.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logr.Sugar().Errorw("http shutdown failed", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "auth_enabled", cfg.Auth.Enabled)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
