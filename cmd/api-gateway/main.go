package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-exams/api/swagger"
	"github.com/noah-isme/sma-adp-exams/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-adp-exams/internal/middleware"
	"github.com/noah-isme/sma-adp-exams/internal/models"
	"github.com/noah-isme/sma-adp-exams/internal/repository"
	"github.com/noah-isme/sma-adp-exams/internal/service"
	"github.com/noah-isme/sma-adp-exams/pkg/cache"
	"github.com/noah-isme/sma-adp-exams/pkg/config"
	"github.com/noah-isme/sma-adp-exams/pkg/database"
	"github.com/noah-isme/sma-adp-exams/pkg/export"
	"github.com/noah-isme/sma-adp-exams/pkg/logger"
	reqidmiddleware "github.com/noah-isme/sma-adp-exams/pkg/middleware/requestid"
)

// @title SMA ADP Exams API
// @version 0.1.0
// @description Exam table grouping and reoptimization
// @BasePath /
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
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, run reports will not be cached", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	reports := service.NewRunReportService(cacheRepo, metricsSvc, cfg.Reoptimizer.ReportTTL, logr,
		export.NewCSVExporter(','), export.NewPDFExporter())
	reoptimizer := service.NewReoptimizerService(
		repository.NewExamGroupRepository(db),
		repository.NewUnassignedTableRepository(db),
		repository.NewExamTableRepository(db),
		repository.NewTeacherAvailabilityRepository(db),
		db,
		reports,
		metricsSvc,
		validate,
		logr,
		service.ReoptimizerConfig{Enabled: cfg.Reoptimizer.Enabled, Isolation: cfg.Reoptimizer.Isolation},
	)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reoptimizerHandler := handler.NewTableReoptimizerHandler(reoptimizer, reports)
	api := r.Group("/" + strings.Trim(cfg.APIPrefix, "/"))
	admin := api.Group("/exam-tables/reoptimize",
		internalmiddleware.JWT(tokens),
		internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
	)
	admin.POST("", reoptimizerHandler.Reoptimize)
	admin.GET("/runs/:id", reoptimizerHandler.GetRun)
	admin.GET("/runs/:id/export", reoptimizerHandler.ExportRun)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "reoptimizer_enabled", cfg.Reoptimizer.Enabled)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
