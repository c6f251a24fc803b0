package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/audit"
	"github.com/liutentor/tentor/internal/config"
	"github.com/liutentor/tentor/internal/db"
	"github.com/liutentor/tentor/internal/fetcher"
	"github.com/liutentor/tentor/internal/filecache"
	"github.com/liutentor/tentor/internal/handler"
	"github.com/liutentor/tentor/internal/job"
	"github.com/liutentor/tentor/internal/metrics"
	"github.com/liutentor/tentor/internal/middleware"
	"github.com/liutentor/tentor/internal/repo"
	"github.com/liutentor/tentor/internal/schedule"
	"github.com/liutentor/tentor/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tentor",
		Short: "tentor exam archive and tutoring backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run tentor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer func() { _ = conn.Close() }()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)
	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("redis_rate_limit", cfg.RateLimit.RedisAddr != ""),
		zap.Bool("s3_fetch", cfg.S3.Enabled()),
	)
	metrics.Register()

	provider, err := ai.NewProvider(cfg.AI.Provider, map[string]string{"api_key": cfg.AI.APIKey})
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	fetchers, err := buildFetchers(ctx, cfg)
	if err != nil {
		return err
	}

	examRepo := repo.NewExamRepo(conn)
	cachedFileRepo := repo.NewCachedFileRepo(conn)
	chatLogRepo := repo.NewChatLogRepo(conn)

	files := filecache.New(cachedFileRepo, fetchers, provider, filecache.Config{
		MIMEType:        cfg.AI.UploadMIMEType,
		FreshnessMargin: cfg.FileCache.FreshnessMargin(),
		FetchTimeout:    cfg.FileCache.FetchTimeout(),
	})
	auditLogger := audit.NewLogger(chatLogRepo, cfg.Audit.QueueSize, time.Duration(cfg.Audit.WriteTimeoutSeconds)*time.Second)
	chatService := service.NewChatService(files, provider, auditLogger, cfg.AI.UploadMIMEType)
	examService := service.NewExamService(examRepo, cfg.ExamCache.Size, time.Duration(cfg.ExamCache.TTLSeconds)*time.Second)

	generalLimiter, chatLimiter, closeLimiters := buildLimiters(ctx, cfg.RateLimit)
	defer closeLimiters()

	deps := handler.RouterDeps{
		Exams:            handler.NewExamHandler(examService),
		Chat:             handler.NewChatHandler(chatService, cfg.Chat.Timeout()),
		Health:           handler.NewHealthHandler(examService),
		GeneralLimiter:   generalLimiter,
		ChatLimiter:      chatLimiter,
		ChatMaxBodyBytes: cfg.Chat.MaxBodyBytes,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(),
			metrics.Middleware(),
			middleware.CORS(cfg.CORS.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{"^/api/v1/chat/"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	refreshJob := job.NewFileRefreshJob(cachedFileRepo, files, time.Duration(cfg.Jobs.FileRefreshWindowMinutes)*time.Minute, cfg.Jobs.FileRefreshBatch)
	if err := scheduler.AddJob(refreshJob, cfg.Jobs.FileRefreshSpec); err != nil {
		return fmt.Errorf("schedule %s: %w", refreshJob.Name(), err)
	}
	scheduler.Start(ctx)
	// Catch up on records that expired while the service was down.
	if err := scheduler.RunNow(refreshJob.Name()); err != nil {
		log.Warn("initial file refresh not started", zap.Error(err))
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	log.Info("server stopping...")
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := auditLogger.Close(shutdownCtx); err != nil {
		log.Warn("audit queue not fully drained", zap.Error(err))
	}
	return nil
}

func buildFetchers(ctx context.Context, cfg *config.Config) (*fetcher.Mux, error) {
	mux := fetcher.NewMux()
	web := fetcher.NewHTTPFetcher(&http.Client{Timeout: cfg.FileCache.FetchTimeout()}, cfg.FileCache.MaxDocumentBytes)
	mux.Handle("http", web)
	mux.Handle("https", web)
	if cfg.S3.Enabled() {
		s3f, err := fetcher.NewS3Fetcher(ctx, cfg.S3, cfg.FileCache.MaxDocumentBytes)
		if err != nil {
			return nil, fmt.Errorf("init s3 fetcher: %w", err)
		}
		mux.Handle("s3", s3f)
	}
	return mux, nil
}

// buildLimiters prefers redis and falls back to in-process limits when redis
// is not configured or unreachable at startup.
func buildLimiters(ctx context.Context, cfg config.RateLimitConfig) (middleware.Limiter, middleware.Limiter, func()) {
	log := logutil.GetLogger(ctx)
	memory := func() (middleware.Limiter, middleware.Limiter, func()) {
		return middleware.NewMemoryLimiter(cfg.GeneralPerMinute, time.Minute),
			middleware.NewMemoryLimiter(cfg.ChatPerMinute, time.Minute),
			func() {}
	}
	if cfg.RedisAddr == "" {
		return memory()
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	if strings.Contains(cfg.RedisAddr, "://") {
		parsed, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			log.Warn("invalid redis url, using in-process rate limits", zap.Error(err))
			return memory()
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, using in-process rate limits", zap.Error(err))
		_ = client.Close()
		return memory()
	}
	log.Info("redis connection established", zap.String("addr", opts.Addr))
	return middleware.NewRedisLimiter(client, "tentor:rl", cfg.GeneralPerMinute, time.Minute),
		middleware.NewRedisLimiter(client, "tentor:rl", cfg.ChatPerMinute, time.Minute),
		func() { _ = client.Close() }
}
