package app

import (
	"context"
	"errors"
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/controller"
	"math_arena_backend/internal/repository"
	"math_arena_backend/internal/service"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/configwatcher"
	"math_arena_backend/pkg/database"
	"math_arena_backend/pkg/logger"
	"math_arena_backend/pkg/monitoring"
	"math_arena_backend/pkg/security"
	"math_arena_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	tx           *repository.TxManager
	leaderboard  *repository.LeaderboardRepository
	dailyPlay    *repository.DailyPlayRepository
	certificate  *repository.CertificateRequestRepository
	problemCache *repository.ProblemCacheRepository
}

type services struct {
	storage     *service.StorageService
	auth        *service.AuthService
	ai          *service.AIService
	quota       *service.QuotaService
	problem     *service.ProblemService
	leaderboard *service.LeaderboardService
	certificate *service.CertificateService
}

type controllers struct {
	problem     *controller.ProblemController
	leaderboard *controller.LeaderboardController
	certificate *controller.CertificateController
	admin       *controller.AdminController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{
		tx:          repository.NewTxManager(db),
		leaderboard: repository.NewLeaderboardRepository(db),
		dailyPlay:   repository.NewDailyPlayRepository(db),
		certificate: repository.NewCertificateRequestRepository(db),
	}
	if rdb != nil {
		repos.problemCache = repository.NewProblemCacheRepository(rdb, cfg.Cache.MaxPerKey)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(cfg)
	s.ai = service.NewAIService(cfg.AI)

	var windows service.WindowStore = service.NewMemoryWindowStore()
	if cfg.Quota.Store == util.QuotaStoreRedis {
		windows = service.NewRedisWindowStore(rdb)
		logger.Log.Warn("Quota counters are shared through Redis and survive restarts")
	}
	s.quota = service.NewQuotaService(windows, repos.dailyPlay, cfg.Quota)

	// 接口变量保持 nil，避免包装 nil 指针
	var cache service.ProblemCache
	if repos.problemCache != nil {
		cache = repos.problemCache
	}
	s.problem = service.NewProblemService(cache, s.ai, cfg.Cache, cfg.AI.Timeout(), util.DefaultRand)

	s.leaderboard = service.NewLeaderboardService(repos.leaderboard, repos.tx, s.quota, cfg.Leaderboard)
	s.certificate = service.NewCertificateService(repos.certificate, s.storage)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.problem.ApplyCacheConfig(c.Cache)
		s.quota.SetOwners(c.Quota.OwnerIPs)
		s.leaderboard.ApplyScoreCaps(c.Leaderboard)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		problem:     controller.NewProblemController(s.quota, s.problem),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		certificate: controller.NewCertificateController(s.certificate),
		admin:       controller.NewAdminController(s.auth, s.certificate),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(security.NewIPRateLimiter(
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
	)))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// initRedis 缓存不可用时降级为始终实时生成；redis 配额存储则必须可用
func initRedis(cfg *config.Config) *redis.Client {
	if !cfg.Cache.Enabled && cfg.Quota.Store != util.QuotaStoreRedis {
		return nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err == nil {
		return rdb
	}
	if cfg.Quota.Store == util.QuotaStoreRedis {
		logger.Log.Fatal("Failed to initialize redis for quota store", zap.Error(err))
	}
	logger.Log.Warn("Redis unavailable, problem cache disabled", zap.Error(err))
	return nil
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb := initRedis(cfg)
	app.Redis = rdb

	repos := app.initRepositories(db, rdb, cfg)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			logger.Log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if a.Config.ConfigFile != "" {
		if err := configwatcher.WatchConfig(watchCtx, a.Config.ConfigFile, a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close 等待缓存写回完成并释放外部连接
func (a *App) Close(ctx context.Context) {
	if a.services != nil && a.services.problem != nil {
		done := make(chan struct{})
		go func() {
			a.services.problem.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Log.Warn("Timed out waiting for cache write-backs")
		}
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
