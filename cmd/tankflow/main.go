package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/config"
	"github.com/ashtavinayaka/tankflow/internal/metrics"
	"github.com/ashtavinayaka/tankflow/internal/middleware"
	"github.com/ashtavinayaka/tankflow/internal/tank/archive"
	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/handler"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository/jsonfile"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository/mongodb"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// readyFunc reports whether the store can serve requests.
type readyFunc func(ctx context.Context) error

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting tankflow service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.Storage.Driver),
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 工时参考表，缺失则无法派生工序
	lookup, err := requirement.Load(cfg.Requirements.Path)
	if err != nil {
		zapLogger.Fatal("Failed to load requirements", zap.String("path", cfg.Requirements.Path), zap.Error(err))
	}
	if dups := lookup.Duplicates(); len(dups) > 0 {
		zapLogger.Warn("Duplicate requirement codes, first entry wins", zap.Strings("codes", dups))
	}
	zapLogger.Info("Requirements loaded", zap.Int("entries", lookup.Len()))

	// 存储
	repos, ready, closeStore, err := initStore(rootCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	m := metrics.New("tankflow")

	// 看板事件：配置Redis时跨实例广播
	hub := sse.NewHub(zapLogger)
	var publisher sse.Publisher = hub
	if cfg.Redis.Enabled {
		rdb := initRedis(cfg.Redis)
		defer rdb.Close()
		bridge := sse.NewRedisBridge(rdb, cfg.Redis.Channel, hub, zapLogger)
		publisher = bridge
		go func() {
			if err := bridge.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				zapLogger.Error("Redis event bridge stopped", zap.Error(err))
			}
		}()
		zapLogger.Info("Board events fan out through redis", zap.String("channel", cfg.Redis.Channel))
	}

	bomOpts := bom.Options{
		CodeColumn:        cfg.BOM.CodeColumn,
		DescriptionColumn: cfg.BOM.DescriptionColumn,
		CodePrefix:        cfg.BOM.CodePrefix,
	}

	deps := service.Deps{
		Repos:      repos,
		Lookup:     lookup,
		BOMOptions: bomOpts,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     zapLogger,
	}
	if cfg.MinIO.Enabled() {
		store, err := archive.New(rootCtx, cfg.MinIO)
		if err != nil {
			zapLogger.Fatal("Failed to init BOM archive", zap.String("endpoint", cfg.MinIO.Endpoint), zap.Error(err))
		}
		deps.Archiver = store
		zapLogger.Info("BOM archive enabled", zap.String("bucket", cfg.MinIO.Bucket))
	}
	services := service.NewServices(deps)

	handlers := handler.NewHandlers(services, lookup, hub, handler.Options{
		UploadDir:     cfg.Upload.Dir,
		MaxUploadSize: cfg.Upload.MaxSize,
		BOM:           bomOpts,
	}, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics(m))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/events"})))

	registerRoutes(router, handlers, m, ready)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE streams stay open
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

// initStore opens the configured backend and returns its repositories, a
// readiness check and a close func.
func initStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*repository.Repositories, readyFunc, func(), error) {
	switch cfg.Storage.Driver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
		defer cancel()
		client, err := mongodb.Connect(connectCtx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(closeCtx); err != nil {
				zapLogger.Warn("Mongo disconnect", zap.Error(err))
			}
		}
		repos, err := mongodb.NewRepositories(ctx, client.Database(cfg.Mongo.Database))
		if err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		ready := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return repos, ready, closeFn, nil

	case "file":
		db, err := jsonfile.Open(cfg.Storage.FilePath)
		if err != nil {
			return nil, nil, nil, err
		}
		zapLogger.Info("Using file store", zap.String("path", db.Path()))
		ready := func(context.Context) error { return nil }
		return jsonfile.NewRepositories(db), ready, func() {}, nil

	default:
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := repository.AutoMigrate(db); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := sqlDB.Close(); err != nil {
				zapLogger.Warn("Database close", zap.Error(err))
			}
		}
		return repository.NewRepositories(db), sqlDB.PingContext, closeFn, nil
	}
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, m *metrics.Metrics, ready readyFunc) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	handler.RegisterRoutes(r, h)

	r.NoRoute(func(c *gin.Context) {
		handler.NotFound(c, "route not found")
	})
}
