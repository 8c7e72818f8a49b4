package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable editing, generation and substitute cover
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Timetable.LockBackend == config.LockBackendRedis {
		if redisClient == nil {
			logr.Warn("redis lock backend requested without redis; using in-process locks")
		} else {
			locker = lock.NewRedisLocker(redisClient, cfg.Timetable.WeekLockTTL, logr)
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	entryRepo := repository.NewScheduleEntryRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	substituteRepo := repository.NewSubstituteRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRequirementRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && cacheRepo.Enabled())
	store := service.NewScheduleStore(entryRepo, periodRepo, locker, cacheSvc, metrics, logr, service.ScheduleStoreConfig{
		LockWait:             cfg.Timetable.WeekLockWait,
		CacheTTL:             cfg.Timetable.CacheTTL,
		DefaultPeriodsPerDay: cfg.Timetable.DefaultPeriodsPerDay,
	})

	timetableSvc := service.NewTimetableService(store, substituteRepo, validate, logr, metrics, service.TimetableConfig{
		LockOnPublish: cfg.Timetable.LockOnPublish,
	})
	generatorSvc := service.NewTimetableGeneratorService(store, teacherRepo, subjectRepo, roomRepo, validate, logr, metrics, service.TimetableGeneratorConfig{
		ProposalTTL:          cfg.Scheduler.ProposalTTL,
		RepairIterations:     cfg.Scheduler.RepairIterations,
		DefaultMaxLoadPerDay: cfg.Timetable.DefaultMaxLoadPerDay,
	})
	substituteSvc := service.NewSubstituteService(store, substituteRepo, teacherRepo, validate, logr, metrics, cfg.Timetable.DefaultMaxLoadPerDay)

	jobSvc := service.NewGenerationJobService(generatorSvc, logr, cfg.Scheduler.JobRetention)
	queue := jobs.NewQueue("timetable-generation", jobSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		BufferSize: cfg.Scheduler.QueueBuffer,
		Logger:     logr,
	})
	jobSvc.AttachQueue(queue)

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	generatorHandler := handler.NewTimetableGeneratorHandler(generatorSvc, jobSvc)
	substituteHandler := handler.NewSubstituteHandler(substituteSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))

	reader := middleware.RequireTimetableReader()
	editor := middleware.RequireTimetableEditor()
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logr, action, resource)
	}

	timetable := api.Group("/timetable")
	{
		timetable.GET("/weeks", reader, timetableHandler.GetWeek)
		timetable.GET("/weeks/conflicts", reader, timetableHandler.Conflicts)
		timetable.POST("/weeks/publish", editor, audit("PUBLISH", "timetable_week"), timetableHandler.Publish)

		timetable.POST("/entries", editor, audit("CREATE", "schedule_entry"), timetableHandler.CreateEntry)
		timetable.POST("/entries/swap", editor, audit("SWAP", "schedule_entry"), timetableHandler.SwapEntries)
		timetable.PATCH("/entries/:id", editor, audit("UPDATE", "schedule_entry"), timetableHandler.UpdateEntry)
		timetable.DELETE("/entries/:id", editor, audit("DELETE", "schedule_entry"), timetableHandler.DeleteEntry)

		timetable.GET("/classes/:classId/periods", reader, timetableHandler.ListPeriods)
		timetable.PUT("/classes/:classId/periods", editor, audit("UPDATE", "period"), timetableHandler.SetPeriods)

		timetable.POST("/generate", editor, audit("GENERATE", "timetable_week"), generatorHandler.Generate)
		timetable.POST("/generate/proposals/:id/apply", editor, audit("APPLY", "timetable_proposal"), generatorHandler.ApplyProposal)
		timetable.POST("/generate/jobs", editor, audit("SUBMIT", "generation_job"), generatorHandler.SubmitJob)
		timetable.GET("/generate/jobs/:id", editor, generatorHandler.GetJob)
		timetable.DELETE("/generate/jobs/:id", editor, audit("CANCEL", "generation_job"), generatorHandler.CancelJob)

		timetable.GET("/substitutes/available", reader, substituteHandler.Available)
		timetable.GET("/substitutes/lookup", reader, substituteHandler.Lookup)
		timetable.GET("/substitutes", reader, substituteHandler.ListByDate)
		timetable.POST("/substitutes", editor, audit("ASSIGN", "substitute"), substituteHandler.Assign)
		timetable.DELETE("/substitutes/:entryId/:date", editor, audit("DELETE", "substitute"), substituteHandler.Remove)

		timetable.GET("/metrics", editor, metricsHandler.Snapshot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
