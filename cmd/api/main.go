package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/config"
	"github.com/noah-isme/coursetrack-api/internal/database"
	"github.com/noah-isme/coursetrack-api/internal/handler"
	"github.com/noah-isme/coursetrack-api/internal/middleware"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
	"github.com/noah-isme/coursetrack-api/internal/router"
	"github.com/noah-isme/coursetrack-api/internal/service"
	cloud "github.com/noah-isme/coursetrack-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	} else {
		logger.Warn().Msg("redis not configured: batch aggregates are not cached and events stay on this node")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var uploadService service.UploadService
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	uploadRepo := repository.NewUploadRepository(db)
	if cloudCfg.Configured() {
		storage, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploadService = service.NewUploadService(storage, uploadRepo, cfg.UploadMaxBytes, logger)
		probes["storage"] = storage.Ping
	} else {
		logger.Warn().Msg("cloudinary not configured: file uploads are disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewProgressEventBus(redisClient, natsConn, cfg.EventChannel, logger)

	activityService := service.NewActivityService(activityRepo, logger)
	progressService := service.NewProgressService(progressRepo, events, validate, logger)
	courseService := service.NewCourseService(courseRepo, userRepo, progressService, uploadService, validate, nil, logger)
	batchService := service.NewBatchService(service.BatchServiceDeps{
		Batches:   batchRepo,
		Courses:   courseRepo,
		Users:     userRepo,
		Records:   progressRepo,
		Progress:  progressService,
		Events:    events,
		Activity:  activityService,
		Cache:     redisClient,
		CacheTTL:  cfg.BatchCacheTTL,
		Validator: validate,
		Logger:    logger,
	})
	userService := service.NewUserService(userRepo, events, validate, logger)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, validate, logger)
	overviewService := service.NewOverviewService(courseRepo, userRepo, batchRepo)
	syncService := service.NewSyncService(service.SyncConfig{
		BaseURL: cfg.SyncBaseURL,
		APIKey:  cfg.SyncAPIKey,
		Timeout: cfg.SyncTimeout,
	}, courseRepo, userRepo, logger)

	events.Start(ctx)

	scheduler, err := service.NewSyncScheduler(ctx, syncService, cfg.SyncSchedule, logger)
	if err != nil {
		log.Fatalf("invalid sync schedule: %v", err)
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	deps := router.Dependencies{
		CourseHandler:   handler.NewCourseHandler(courseService, logger),
		ProgressHandler: handler.NewProgressHandler(progressService, logger),
		BatchHandler:    handler.NewBatchHandler(batchService, logger),
		UserHandler:     handler.NewUserHandler(userService, logger),
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		OverviewHandler: handler.NewOverviewHandler(overviewService, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		SyncHandler:     handler.NewSyncHandler(syncService, logger),
		HealthProbes:    probes,
	}
	if redisClient != nil {
		deps.RateLimitStorage = middleware.NewRedisLimiterStorage(redisClient, cfg.EventChannel+":ratelimit")
	}
	if uploadService != nil {
		deps.UploadHandler = handler.NewUploadHandler(uploadService, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
