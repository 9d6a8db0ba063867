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

	_ "github.com/noah-isme/campus-clearance-api/api/swagger"
	"github.com/noah-isme/campus-clearance-api/internal/handler"
	"github.com/noah-isme/campus-clearance-api/internal/middleware"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	"github.com/noah-isme/campus-clearance-api/internal/service"
	"github.com/noah-isme/campus-clearance-api/pkg/cache"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	"github.com/noah-isme/campus-clearance-api/pkg/database"
	"github.com/noah-isme/campus-clearance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-clearance-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-clearance-api/pkg/storage"
)

// @title Campus Clearance API
// @version 0.1.0
// @description No-due clearance workflow for students, subject staff and administrative approvers
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
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, status cache disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	clearanceRepo := repository.NewClearanceRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	notifier := service.NewNotifier(service.LogSink(logr), cfg.Notifications, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notifier.Start(ctx)
	defer notifier.Stop()

	// Stale exports are re-issuable on demand, so anything older than the
	// signed URL window can go.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := files.CleanupOlderThan(cfg.Exports.SignedURLTTL); err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("expired exports removed", "count", len(removed))
				}
			}
		}
	}()

	registrySvc := service.NewRegistryService(rosterRepo, logr)
	clearanceSvc := service.NewClearanceService(clearanceRepo, registrySvc, notifier, validate, logr,
		service.WithStatusCache(cacheRepo, cfg.Clearance.StatusCacheTTL),
		service.WithClearanceMetrics(metricsSvc),
		service.WithAuditLogger(auditRepo),
	)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	exportSvc := service.NewExportService(clearanceRepo, rosterRepo, files, signer, auditRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	clearanceHandler := handler.NewClearanceHandler(clearanceSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "notifications_queued": notifier.Depth()})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/downloads", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	clearance := authed.Group("/clearance/requests")
	clearance.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), clearanceHandler.Create)
	clearance.GET("", clearanceHandler.List)
	clearance.GET("/:id", clearanceHandler.Status)
	clearance.POST("/:id/approve", clearanceHandler.Approve)
	clearance.POST("/:id/reject", clearanceHandler.Reject)
	clearance.GET("/:id/certificate", middleware.RequireRoles(models.RoleAdmin, models.RoleOffice), exportHandler.Certificate)

	authed.GET("/exports/register", middleware.RequireRoles(models.RoleAdmin, models.RoleOffice), exportHandler.Register)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
