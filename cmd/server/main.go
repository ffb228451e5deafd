package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/client"
	"github.com/makeasinger/stemsplit/internal/config"
	"github.com/makeasinger/stemsplit/internal/handler"
	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/media"
	"github.com/makeasinger/stemsplit/internal/middleware"
	"github.com/makeasinger/stemsplit/internal/service"
	"github.com/makeasinger/stemsplit/internal/store"
	ws "github.com/makeasinger/stemsplit/internal/websocket"
	"github.com/makeasinger/stemsplit/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

// dispatcher is a job queue that can be drained on shutdown.
type dispatcher interface {
	service.Dispatcher
	Close(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logging.New(cfg.Server.LogLevel, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis not available", zap.Error(err))
		}
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(zlog)
	go hub.Run(ctx)

	// External collaborators
	separator := newSeparator(cfg, zlog)

	var analyzer client.Analyzer
	analyzerClient := client.NewAnalyzerClient(&cfg.Analyzer)
	if analyzerClient.IsConfigured() {
		analyzer = analyzerClient
	} else {
		zlog.Info("analyzer not configured, analysis will be unavailable")
	}

	ffmpeg := media.NewFFmpeg(media.Options{
		FFmpegPath:      cfg.Media.FFmpegPath,
		TempDir:         cfg.Media.TempDir,
		MP3Bitrate:      cfg.Media.MP3Bitrate,
		AACBitrate:      cfg.Media.AACBitrate,
		OGGQuality:      cfg.Media.OGGQuality,
		FLACCompression: cfg.Media.FLACCompression,
	}, zlog)
	if err := ffmpeg.Available(ctx); err != nil {
		zlog.Warn("ffmpeg not available, only wav uploads can be processed", zap.Error(err))
	}

	// Initialize services
	jobStore := store.NewMemoryStore(zlog)
	jobs := service.NewJobManager(jobStore, separator, analyzer, ffmpeg, service.ManagerConfig{
		TempDir: ffmpeg.TempDir(),
		Device:  cfg.Separator.Device,
	}, zlog)
	jobs.SetPublisher(hub)

	var archive *service.StemArchive
	if cfg.R2.IsConfigured() {
		r2Client, err := client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			zlog.Warn("stem archive disabled", zap.Error(err))
		} else {
			archive = service.NewStemArchive(r2Client, cfg.R2.URLExpiry, zlog)
			jobs.SetArchive(archive)
		}
	}

	queue, err := startDispatcher(cfg, jobs, zlog)
	if err != nil {
		zlog.Fatal("failed to start workers", zap.Error(err))
	}
	jobs.SetDispatcher(queue)

	mixService := service.NewMixService(jobs, service.NewExportService(ffmpeg, ffmpeg.TempDir(), zlog), zlog)
	healthService := newHealthService(separator, analyzerClient, archive, ffmpeg, redisClient, zlog)

	// Initialize handlers
	validate := validator.New()
	handlers := handler.Handlers{
		Upload: handler.NewUploadHandler(jobs),
		Job:    handler.NewJobHandler(jobs, hub),
		Mix:    handler.NewMixHandler(mixService, validate),
		Health: handler.NewHealthHandler(healthService),
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, zlog)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept",
		ExposeHeaders: "Content-Disposition",
	}))

	handler.Register(app, handlers, rateLimiter, cfg.RateLimit)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zlog.Info("shutting down server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			zlog.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	zlog.Info("server starting",
		zap.String("addr", addr),
		zap.String("worker_backend", cfg.Worker.Backend),
		zap.Bool("mock_separator", cfg.Separator.Mock),
	)
	if err := app.Listen(addr); err != nil {
		zlog.Error("server error", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := queue.Close(drainCtx); err != nil {
		zlog.Warn("workers did not drain", zap.Error(err))
	}
	if err := jobStore.Close(); err != nil {
		zlog.Warn("failed to release retained videos", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func newSeparator(cfg *config.Config, zlog *zap.Logger) client.Separator {
	sep, mocked := client.NewSeparator(&cfg.Separator)
	if mocked {
		zlog.Warn("using mock separator",
			zap.String("model", cfg.Separator.Model),
			zap.Bool("service_configured", cfg.Separator.ServiceURL != ""),
		)
	}
	return sep
}

// startDispatcher runs jobs on the in-process pool, or through asynq when it
// is selected and Redis is enabled.
func startDispatcher(cfg *config.Config, jobs *service.JobManager, zlog *zap.Logger) (dispatcher, error) {
	if cfg.Worker.Backend == config.BackendAsynq {
		if !cfg.Redis.Enabled {
			zlog.Warn("asynq backend needs redis, falling back to the in-process pool")
		} else {
			d := worker.NewAsynqDispatcher(asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, jobs, cfg.Worker.Concurrency, zlog)
			if err := d.Start(); err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	pool := worker.NewPool(jobs, cfg.Worker.Concurrency, cfg.Worker.QueueSize, zlog)
	pool.Start()
	return pool, nil
}

func newHealthService(
	separator client.Separator,
	analyzer *client.AnalyzerClient,
	archive *service.StemArchive,
	ffmpeg *media.FFmpeg,
	redisClient *redis.Client,
	zlog *zap.Logger,
) *service.HealthService {
	health := service.NewHealthService(separator, zlog)

	health.AddCheck("separator", func(ctx context.Context) error {
		if !separator.Info(ctx).ModelLoaded {
			return errors.New("model not loaded")
		}
		return nil
	})
	health.AddCheck("ffmpeg", ffmpeg.Available)

	if analyzer.IsConfigured() {
		health.AddCheck("analyzer", analyzer.HealthCheck)
	} else {
		health.AddCheck("analyzer", nil)
	}
	if archive != nil {
		health.AddCheck("archive", archive.Ping)
	} else {
		health.AddCheck("archive", nil)
	}
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		health.AddCheck("redis", nil)
	}
	return health
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := "SERVICE_ERROR"
	switch code {
	case fiber.StatusNotFound:
		errCode = "NOT_FOUND"
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		errCode = "VALIDATION_ERROR"
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    errCode,
			"message": message,
		},
	})
}
