package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vidyalaya-dev/vidyalaya-api/api/swagger"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/handler"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/repository"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/service"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/cache"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/config"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/database"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/logger"
	corsmiddleware "github.com/vidyalaya-dev/vidyalaya-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyalaya-dev/vidyalaya-api/pkg/middleware/requestid"
)

// @title Vidyalaya API
// @version 1.0.0
// @description School roster, attendance, and transport backend
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

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.Connect(context.Background(), cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)
	}

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	busRepo := repository.NewBusRepository(db)
	classLedgerRepo := repository.NewClassLedgerRepository(db)
	transportLedgerRepo := repository.NewTransportLedgerRepository(db)
	scanEventRepo := repository.NewScanEventRepository(db)

	rosterSvc := service.NewRosterService(studentRepo, classRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, rosterSvc, nil, logr)
	classSvc := service.NewClassService(classRepo, rosterSvc, nil, logr)
	promotionSvc := service.NewPromotionService(classRepo, studentRepo, cfg.Promotion.TerminalRank, logr)
	credentialSvc := service.NewCredentialService(studentRepo, cfg.Credential.TTL, logr)
	transportSvc := service.NewTransportService(busRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(
		classLedgerRepo,
		transportLedgerRepo,
		scanEventRepo,
		classRepo,
		studentRepo,
		busRepo,
		credentialSvc,
		cacheSvc,
		metricsSvc,
		logr,
	)

	studentHandler := handler.NewStudentHandler(studentSvc)
	classHandler := handler.NewClassHandler(classSvc, rosterSvc)
	promotionHandler := handler.NewPromotionHandler(promotionSvc)
	credentialHandler := handler.NewCredentialHandler(credentialSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	busHandler := handler.NewBusHandler(transportSvc, attendanceSvc)
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

	auth := middleware.JWT(cfg.JWT.Secret)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	scanners := middleware.RequireRoles(models.RoleTeacher, models.RoleDriver, models.RoleBusAttendant)
	transportView := middleware.RequireRoles(models.RoleAdmin, models.RoleDriver, models.RoleBusAttendant)

	api := r.Group(cfg.APIPrefix)
	api.Use(auth)

	students := api.Group("/students")
	{
		students.GET("", staff, studentHandler.List)
		students.POST("", adminOnly, studentHandler.Create)
		students.GET("/:id", staff, studentHandler.Get)
		students.PUT("/:id", adminOnly, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)
		students.POST("/:id/credential", adminOnly, credentialHandler.Issue)
	}

	classes := api.Group("/classes")
	{
		classes.GET("", staff, classHandler.List)
		classes.POST("", adminOnly, classHandler.Create)
		classes.GET("/:id", staff, classHandler.Get)
		classes.PUT("/:id", adminOnly, classHandler.Update)
		classes.DELETE("/:id", adminOnly, classHandler.Delete)
		classes.PUT("/:id/roster", adminOnly, classHandler.SetRoster)
		classes.PUT("/:id/roster/:studentId", adminOnly, classHandler.AssignStudent)
		classes.DELETE("/:id/roster/:studentId", adminOnly, classHandler.RemoveStudent)
		classes.GET("/:id/attendance/report", staff, attendanceHandler.Report)
	}

	api.POST("/promotions", adminOnly, promotionHandler.PromoteAll)

	credentials := api.Group("/credentials")
	{
		credentials.POST("/mine", middleware.RequireRoles(models.RoleStudent), credentialHandler.IssueMine)
		credentials.POST("/issue-all", adminOnly, credentialHandler.IssueAll)
	}

	attendance := api.Group("/attendance")
	{
		attendance.POST("", staff, attendanceHandler.Mark)
		attendance.GET("", staff, attendanceHandler.ListLedgers)
		attendance.POST("/scan", scanners, attendanceHandler.Scan)
		attendance.GET("/events", adminOnly, attendanceHandler.Events)
		attendance.GET("/:id", staff, attendanceHandler.GetLedger)
		attendance.PUT("/:id", staff, attendanceHandler.UpdateLedger)
	}

	buses := api.Group("/buses")
	{
		buses.GET("", adminOnly, busHandler.List)
		buses.POST("", adminOnly, busHandler.Create)
		buses.GET("/mine", transportView, busHandler.Mine)
		buses.GET("/:id", transportView, busHandler.Get)
		buses.PUT("/:id", adminOnly, busHandler.Update)
		buses.DELETE("/:id", adminOnly, busHandler.Delete)
		buses.PUT("/:id/position", transportView, busHandler.UpdatePosition)
		buses.GET("/:id/attendance", transportView, busHandler.Day)
		buses.GET("/:id/attendance/history", transportView, busHandler.Ledgers)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
