package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/planfab/planfab-api/api/swagger"
	"github.com/planfab/planfab-api/internal/handler"
	"github.com/planfab/planfab-api/internal/middleware"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/internal/repository"
	"github.com/planfab/planfab-api/internal/service"
	"github.com/planfab/planfab-api/pkg/cache"
	"github.com/planfab/planfab-api/pkg/config"
	"github.com/planfab/planfab-api/pkg/database"
	"github.com/planfab/planfab-api/pkg/logger"
	corsmiddleware "github.com/planfab/planfab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/planfab/planfab-api/pkg/middleware/requestid"
	"github.com/planfab/planfab-api/pkg/storage"
)

// @title PlanFab API
// @version 1.0.0
// @description Production scheduling and order management for machine shops
// @BasePath /api/v1
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	machineRepo := repository.NewMachineRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	productRepo := repository.NewProductRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	exportStorage, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	urlSigner := storage.NewSignedURLSigner(cfg.Export.SigningSecret, cfg.Export.ResultTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	machineSvc := service.NewMachineService(machineRepo, validate, logr)
	companySvc := service.NewCompanyService(companyRepo, validate, logr)
	holidaySvc := service.NewHolidayService(holidayRepo, validate, logr)
	shiftSvc := service.NewShiftService(shiftRepo, validate, logr)
	productSvc := service.NewProductService(productRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(holidayRepo, companyRepo, orderRepo, cfg.Scheduler, logr)
	orderSvc := service.NewOrderService(orderRepo, machineRepo, db, cacheRepo, logr)
	dashboardSvc := service.NewDashboardService(orderRepo, machineRepo, companyRepo, cacheRepo, metricsSvc, cfg.Dashboard, logr)
	exportSvc := service.NewExportService(exportJobRepo, scheduleSvc, exportStorage, urlSigner, cfg.APIPrefix, cfg.Export, logr)
	exportSvc.Start(context.Background())
	defer exportSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	machineHandler := handler.NewMachineHandler(machineSvc)
	companyHandler := handler.NewCompanyHandler(companySvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	shiftHandler := handler.NewShiftHandler(shiftSvc)
	productHandler := handler.NewProductHandler(productSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, metricsSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/signup", authHandler.Signup)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	machines := protected.Group("/machines")
	machines.GET("", machineHandler.List)
	machines.GET("/:id", machineHandler.Get)
	machines.POST("", machineHandler.Create)
	machines.PUT("/:id", machineHandler.Update)
	machines.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), machineHandler.Delete)

	companies := protected.Group("/companies")
	companies.GET("", companyHandler.List)
	companies.GET("/:id", companyHandler.Get)
	companies.POST("", companyHandler.Create)
	companies.PUT("/:id", companyHandler.Update)
	companies.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), companyHandler.Delete)
	companies.POST("/:id/schedule", scheduleHandler.SimulateForCompany)

	orders := protected.Group("/orders")
	orders.GET("", orderHandler.List)
	orders.GET("/:id", orderHandler.Get)
	orders.POST("", orderHandler.Create)
	orders.POST("/resolve-conflicts", orderHandler.ResolveConflicts)
	orders.PATCH("/:id/status", orderHandler.UpdateStatus)
	orders.GET("/:id/daily-plan", scheduleHandler.DailyPlan)

	holidays := protected.Group("/holidays")
	holidays.GET("", holidayHandler.List)
	holidays.POST("", holidayHandler.Save)
	holidays.DELETE("/:id", holidayHandler.Delete)

	shifts := protected.Group("/shifts")
	shifts.GET("", shiftHandler.List)
	shifts.POST("", shiftHandler.Create)
	shifts.PUT("/:id", shiftHandler.Update)
	shifts.DELETE("/:id", shiftHandler.Delete)

	products := protected.Group("/products")
	products.GET("", productHandler.List)
	products.GET("/:id", productHandler.Get)
	products.POST("", productHandler.Create)
	products.PUT("/:id", productHandler.Update)
	products.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), productHandler.Delete)

	schedule := protected.Group("/schedule")
	schedule.POST("/simulate", scheduleHandler.Simulate)
	schedule.POST("/export", scheduleHandler.Export)
	schedule.POST("/export-jobs", exportHandler.CreateJob)
	schedule.GET("/export-jobs/:id", exportHandler.GetJob)

	// download links are pre-signed, no JWT required
	api.GET("/export/:token", exportHandler.Download)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/overview", dashboardHandler.Overview)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
