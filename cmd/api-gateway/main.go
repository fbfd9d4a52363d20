package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enrollment-request-api/api/swagger"
	"github.com/noah-isme/enrollment-request-api/internal/handler"
	"github.com/noah-isme/enrollment-request-api/internal/middleware"
	"github.com/noah-isme/enrollment-request-api/internal/models"
	"github.com/noah-isme/enrollment-request-api/internal/repository"
	"github.com/noah-isme/enrollment-request-api/internal/service"
	"github.com/noah-isme/enrollment-request-api/pkg/cache"
	"github.com/noah-isme/enrollment-request-api/pkg/config"
	"github.com/noah-isme/enrollment-request-api/pkg/database"
	"github.com/noah-isme/enrollment-request-api/pkg/export"
	"github.com/noah-isme/enrollment-request-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-request-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-request-api/pkg/middleware/requestid"
)

// @title Enrollment Request API
// @version 1.0.0
// @description Role-based enrollment request tracking and status workflow
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ListTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	workflowSvc := service.NewWorkflowService(requestRepo, userRepo, cacheSvc, metricsSvc, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, cacheSvc, cfg.Cache.ListTTL, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	studentSvc := service.NewStudentService(studentRepo, requestRepo, cacheSvc, cfg.Cache.RosterTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, workflowSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)

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
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)

	requests := api.Group("/requests", middleware.JWT(authSvc))
	requests.GET("", requestHandler.List)
	requests.POST("", requestHandler.Create)
	requests.GET("/all", middleware.RequireRoles(models.ReviewerRoles()...), requestHandler.ListAll)
	if cfg.Exports.Enabled {
		requests.GET("/export.csv", middleware.RequireRoles(models.ReviewerRoles()...), requestHandler.ExportCSV)
		requests.GET("/:id/export.pdf", requestHandler.ExportPDF)
	}
	requests.GET("/:id", requestHandler.Get)
	requests.PATCH("/:id/status", requestHandler.UpdateStatus)
	requests.PUT("/:id/status", requestHandler.UpdateStatus)

	status := api.Group("/status", middleware.JWT(authSvc))
	status.GET("/:id/history", requestHandler.History)

	students := api.Group("/students", middleware.JWT(authSvc), middleware.RequireRoles(models.ReviewerRoles()...))
	students.GET("", middleware.Audit(userRepo, "ROSTER_VIEW", "students"), studentHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
