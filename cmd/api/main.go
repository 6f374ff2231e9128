package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	appdelivery "github.com/bryanwahyu/kinetic-intake/internal/application/delivery"
	appreports "github.com/bryanwahyu/kinetic-intake/internal/application/reports"
	"github.com/bryanwahyu/kinetic-intake/internal/config"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
	aiopenai "github.com/bryanwahyu/kinetic-intake/internal/infra/ai/openai"
	rediscache "github.com/bryanwahyu/kinetic-intake/internal/infra/cache/redis"
	"github.com/bryanwahyu/kinetic-intake/internal/infra/db/mongodb"
	mysqlp "github.com/bryanwahyu/kinetic-intake/internal/infra/db/mysql"
	"github.com/bryanwahyu/kinetic-intake/internal/infra/db/postgres"
	"github.com/bryanwahyu/kinetic-intake/internal/infra/httpserver"
	"github.com/bryanwahyu/kinetic-intake/internal/infra/mail"
	"github.com/bryanwahyu/kinetic-intake/internal/infra/pdf"
	minioStore "github.com/bryanwahyu/kinetic-intake/internal/infra/storage"
	"github.com/bryanwahyu/kinetic-intake/internal/logger"
	"github.com/bryanwahyu/kinetic-intake/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]middleware.HealthChecker{}

	// storage (best effort: tanpa DB report tetap dibuat, tidak disimpan)
	repo, closeRepo, err := openRepository(ctx, cfg, health)
	if err != nil {
		log.Warn("database unavailable, reports will not be stored",
			zap.String("driver", cfg.Database.Driver), zap.Error(err))
	} else {
		defer closeRepo()
	}

	// cache
	var cache domain.Cache
	if cfg.Redis.Addr != "" {
		cli, err := rediscache.NewClient(ctx, rediscache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis unavailable, report cache disabled", zap.Error(err))
		} else {
			defer cli.Close()
			cache = rediscache.NewReportCache(cli, cfg.Redis.TTL)
			health["redis"] = middleware.CheckFunc(func(ctx context.Context) error {
				return cli.Ping(ctx).Err()
			})
		}
	}

	// archive PDF ke minio (opsional)
	var archive *minioStore.Store
	if cfg.Minio.Endpoint != "" {
		archive, err = minioStore.New(ctx, minioStore.Config{
			Endpoint:   cfg.Minio.Endpoint,
			Region:     cfg.Minio.Region,
			BucketName: cfg.Minio.BucketName,
			AccessKey:  cfg.Minio.AccessKey,
			SecretKey:  cfg.Minio.SecretKey,
			UseSSL:     cfg.Minio.UseSSL,
		})
		if err != nil {
			log.Warn("minio unavailable, pdf archive disabled", zap.Error(err))
			archive = nil
		}
	}

	// headless browser, dijalankan ulang otomatis kalau mati
	chrome := pdf.NewChrome(pdf.ChromeConfig{
		RemoteURL: cfg.Chrome.RemoteURL,
		ExecPath:  cfg.Chrome.ExecPath,
		Timeout:   cfg.Chrome.Timeout,
	}, log)
	if err := chrome.Start(); err != nil {
		log.Warn("chrome unavailable, pdf requests will fail until it starts", zap.Error(err))
	}
	defer chrome.Close()
	health["chrome"] = chrome

	renderer, err := pdf.NewPool(cfg.Chrome.Concurrency, chrome)
	if err != nil {
		log.Fatal("render pool init error", zap.Error(err))
	}
	defer renderer.Release()

	page, err := pdf.NewPage()
	if err != nil {
		log.Fatal("report template error", zap.Error(err))
	}
	composer, err := mail.NewComposer(mail.DefaultLogoURL)
	if err != nil {
		log.Fatal("email template error", zap.Error(err))
	}

	metrics := middleware.NewMetrics()

	reportsSvc := &appreports.Service{
		Assistant: newAssistant(cfg, log),
		Repo:      repo,
		Cache:     cache,
		Clock:     application.SystemClock{},
		Metrics:   metrics,
		Log:       log,
	}
	deliverySvc := &appdelivery.Service{
		Page:     page,
		Renderer: renderer,
		Composer: composer,
		Clock:    application.SystemClock{},
		Metrics:  metrics,
		Log:      log,
	}
	if archive != nil {
		deliverySvc.Archive = archive
	}
	if cfg.SMTPConfigured() {
		mailer, err := mail.NewSMTP(mail.Config{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			User:               cfg.SMTP.User,
			Password:           cfg.SMTP.Password,
			FromEmail:          cfg.SMTP.FromEmail,
			FromName:           cfg.SMTP.FromName,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		}, log)
		if err != nil {
			log.Fatal("smtp init error", zap.Error(err))
		}
		deliverySvc.Mailer = mailer
	} else {
		log.Warn("smtp not configured, send-email will fail")
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	}

	// ready = database reachable (when one is configured)
	ready := map[string]middleware.HealthChecker{}
	if db, ok := health["database"]; ok {
		ready["database"] = db
	}

	// init router
	handler := httpserver.NewRouter(reportsSvc, deliverySvc, httpserver.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimiter: limiter,
		Metrics:     metrics,
		Health:      health,
		Ready:       ready,
		Log:         log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

// openRepository connects the configured report store and registers its
// health check. The returned func closes the connection.
func openRepository(ctx context.Context, cfg *config.Config, health map[string]middleware.HealthChecker) (domain.Repository, func(), error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		health["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return mysqlp.NewReportRepository(db), func() { db.Close() }, nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		health["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return postgres.NewReportRepository(db), func() { db.Close() }, nil

	case "mongo":
		cli, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		coll := cli.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		if err := mongodb.EnsureIndexes(ctx, coll); err != nil {
			cli.Disconnect(context.Background())
			return nil, nil, err
		}
		health["database"] = middleware.CheckFunc(func(ctx context.Context) error {
			return cli.Ping(ctx, nil)
		})
		return mongodb.NewReportRepository(coll), func() { cli.Disconnect(context.Background()) }, nil

	case "none":
		return nil, func() {}, errors.New("persistence disabled")
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// newAssistant uses the hosted assistant when an id is configured,
// otherwise a plain chat completion with the report prompt.
func newAssistant(cfg *config.Config, log *zap.Logger) assistant.Client {
	api := aiopenai.NewAPI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	if cfg.OpenAI.AssistantID != "" {
		return aiopenai.NewAssistant(api, cfg.OpenAI.AssistantID, cfg.OpenAI.PollInterval, cfg.OpenAI.MaxPolls, log)
	}
	log.Info("no assistant id configured, using chat completions", zap.String("model", cfg.OpenAI.Model))
	return aiopenai.NewChatClient(api, cfg.OpenAI.Model)
}
