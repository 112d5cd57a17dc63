package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/akhilpenumudy/biodataahub/api/swagger"
	"github.com/akhilpenumudy/biodataahub/internal/handler"
	"github.com/akhilpenumudy/biodataahub/internal/middleware"
	"github.com/akhilpenumudy/biodataahub/internal/repository"
	"github.com/akhilpenumudy/biodataahub/internal/service"
	rediscache "github.com/akhilpenumudy/biodataahub/pkg/cache"
	"github.com/akhilpenumudy/biodataahub/pkg/config"
	"github.com/akhilpenumudy/biodataahub/pkg/database"
	"github.com/akhilpenumudy/biodataahub/pkg/logger"
	corsmiddleware "github.com/akhilpenumudy/biodataahub/pkg/middleware/cors"
	reqidmiddleware "github.com/akhilpenumudy/biodataahub/pkg/middleware/requestid"
	"github.com/akhilpenumudy/biodataahub/pkg/storage"
)

// @title BioDataHub API
// @version 1.0.0
// @description Dataset sharing platform for biological research data
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Browse.CacheEnabled {
		redisClient, err := rediscache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, browse caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Browse.CacheTTL, logr, true)
		}
	}

	store, err := storage.NewObjectStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object store", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailer := service.NewMailerService(service.MailerConfig{
		BaseURL:    cfg.Storage.PublicBaseURL,
		Workers:    cfg.Mailer.Workers,
		MaxRetries: cfg.Mailer.MaxRetries,
		RetryDelay: cfg.Mailer.RetryDelay,
	}, logr)
	mailer.Start(ctx)
	defer mailer.Stop()

	signer := storage.NewTokenSigner(cfg.Signup.VerifyTokenSecret, cfg.Signup.VerifyTokenTTL)

	authSvc := service.NewAuthService(userRepo, signer, mailer, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "biodataahub",
	})

	datasetSvc := service.NewDatasetService(datasetRepo, userRepo, store, cacheSvc, metrics, logr, service.DatasetConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		BrowseCacheTTL:   cfg.Browse.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	datasetHandler := handler.NewDatasetHandler(datasetSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.SessionGate(authSvc, middleware.DefaultGateConfig()))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	r.Static("/files", store.Dir())

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.GET("/verify-email", authHandler.VerifyEmail)
		auth.POST("/logout", middleware.OptionalSession(authSvc), middleware.RequireSession(), authHandler.Logout)
		auth.GET("/me", middleware.OptionalSession(authSvc), middleware.RequireSession(), authHandler.Me)
	}

	dashboard := r.Group("/dashboard", middleware.RequireSession())
	{
		dashboard.GET("", datasetHandler.Dashboard)
		dashboard.GET("/export", datasetHandler.Export)
	}

	upload := r.Group("/uploaddata", middleware.RequireSession())
	{
		upload.POST("", datasetHandler.Upload)
		upload.POST("/preview", datasetHandler.Preview)
	}

	browse := r.Group("/browseDataSets", middleware.OptionalSession(authSvc))
	{
		browse.GET("", datasetHandler.Browse)
		browse.POST("/:id/download", datasetHandler.Download)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
