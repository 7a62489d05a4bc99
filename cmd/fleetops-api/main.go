package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yisusc1/fleetops-api/api/swagger"
	"github.com/yisusc1/fleetops-api/internal/handler"
	"github.com/yisusc1/fleetops-api/internal/middleware"
	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/repository"
	"github.com/yisusc1/fleetops-api/internal/service"
	"github.com/yisusc1/fleetops-api/pkg/cache"
	"github.com/yisusc1/fleetops-api/pkg/config"
	"github.com/yisusc1/fleetops-api/pkg/database"
	"github.com/yisusc1/fleetops-api/pkg/export"
	"github.com/yisusc1/fleetops-api/pkg/jobs"
	"github.com/yisusc1/fleetops-api/pkg/logger"
	corsmiddleware "github.com/yisusc1/fleetops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/yisusc1/fleetops-api/pkg/middleware/requestid"
	"github.com/yisusc1/fleetops-api/pkg/storage"
)

// @title FleetOps API
// @version 1.0.0
// @description Fleet field operations backend: vehicles, fuel, trips, maintenance and reporting
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	}

	// Repositories.
	vehicleRepo := repository.NewVehicleRepository(db)
	odometerRepo := repository.NewOdometerRepository(db)
	fuelRepo := repository.NewFuelLogRepository(db)
	tripRepo := repository.NewTripRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	faultRepo := repository.NewFaultRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fleetops-api",
		Audience:           []string{"fleetops"},
	})

	odometerSvc := service.NewOdometerService(odometerRepo, vehicleRepo, tripRepo, userRepo, metricsSvc, logr)
	fleetSvc := service.NewFleetService(vehicleRepo, odometerSvc, logr)
	fuelSvc := service.NewFuelService(fuelRepo, odometerSvc, logr)
	tripSvc := service.NewTripService(tripRepo, vehicleRepo, odometerSvc, logr)
	faultSvc := service.NewFaultService(faultRepo, vehicleRepo, logr)
	maintenanceSvc := service.NewMaintenanceService(maintenanceRepo, faultRepo, vehicleRepo, odometerSvc, userRepo, cfg.Maintenance.ApproachRatio, logr)
	dashboardSvc := service.NewDashboardService(vehicleRepo, faultRepo, fuelRepo, maintenanceSvc, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, cfg.Dashboard.LowFuelCutoff, logr)

	// Report generation pipeline.
	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(fuelRepo, maintenanceRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	vehicleHandler := handler.NewVehicleHandler(fleetSvc, odometerSvc)
	fuelHandler := handler.NewFuelHandler(fuelSvc)
	tripHandler := handler.NewTripHandler(tripSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceSvc, dashboardSvc)
	faultHandler := handler.NewFaultHandler(faultSvc, maintenanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
	r.GET("/metrics", metricsHandler.Prometheus())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Downloads authenticate through the signed token in the path.
	api.GET("/reports/download/:token", reportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	manage := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)

	vehicles := protected.Group("/vehicles")
	{
		vehicles.GET("", vehicleHandler.List)
		vehicles.GET("/:id", vehicleHandler.Get)
		vehicles.GET("/:id/mileage", vehicleHandler.Mileage)
		vehicles.POST("", manage, vehicleHandler.Create)
		vehicles.PUT("/:id", manage, vehicleHandler.Update)
		vehicles.DELETE("/:id", manage, vehicleHandler.Deactivate)
	}

	fuel := protected.Group("/fuel-logs")
	{
		fuel.GET("", fuelHandler.List)
		fuel.GET("/summary", fuelHandler.Summary)
		fuel.POST("", fuelHandler.Create)
	}

	trips := protected.Group("/trips")
	{
		trips.GET("", tripHandler.List)
		trips.GET("/:id", tripHandler.Get)
		trips.POST("", tripHandler.Open)
		trips.POST("/:id/close", tripHandler.Close)
	}

	maintenance := protected.Group("/maintenance")
	{
		maintenance.GET("/plans", maintenanceHandler.ListPlans)
		maintenance.POST("/plans", manage, maintenanceHandler.CreatePlan)
		maintenance.PUT("/plans/:id", manage, maintenanceHandler.UpdatePlan)
		maintenance.GET("/alerts", maintenanceHandler.ListAlerts)
		maintenance.POST("/alerts/:planId/promote", manage, maintenanceHandler.PromoteAlert)
		maintenance.GET("/logs", maintenanceHandler.ListLogs)
		maintenance.POST("/logs", maintenanceHandler.CompleteService)
	}

	faults := protected.Group("/faults")
	{
		faults.GET("", faultHandler.List)
		faults.GET("/:id", faultHandler.Get)
		faults.POST("", faultHandler.Report)
		faults.PUT("/:id/status", manage, faultHandler.Transition)
	}

	reports := protected.Group("/reports")
	{
		reports.POST("", reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
	}

	protected.GET("/dashboard/summary", dashboardHandler.Summary)
	protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if cacheEnabled {
		_ = cacheRepo.Close()
	}
}
