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
	"go.uber.org/zap"

	_ "github.com/muni-digital/turnos-api/api/swagger"
	"github.com/muni-digital/turnos-api/internal/display"
	"github.com/muni-digital/turnos-api/internal/handler"
	"github.com/muni-digital/turnos-api/internal/middleware"
	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/internal/repository"
	"github.com/muni-digital/turnos-api/internal/service"
	"github.com/muni-digital/turnos-api/pkg/cache"
	"github.com/muni-digital/turnos-api/pkg/config"
	"github.com/muni-digital/turnos-api/pkg/database"
	"github.com/muni-digital/turnos-api/pkg/logger"
	corsmiddleware "github.com/muni-digital/turnos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/muni-digital/turnos-api/pkg/middleware/requestid"
)

// @title Turnos API
// @version 1.0.0
// @description Service turn management for a multi-department public office
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
		logr.Sugar().Warnw("redis unavailable, display events stay instance-local", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := display.NewHub(cfg.Display.ClientBuffer, logr)
	dispatcher := service.NewDispatcher(hub, redisClient, cfg.Dispatch, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	validate := validator.New()

	turnRepo := repository.NewTurnRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	citizenRepo := repository.NewCitizenRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)

	authService := service.NewAuthService(db, employeeRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		RefreshExpiry:     cfg.JWT.RefreshExpiration,
		Issuer:            "turnos-api",
	})
	scheduleService := service.NewScheduleService(departmentRepo, turnRepo, logr)
	turnService := service.NewTurnService(db, turnRepo, auditRepo, statsRepo,
		citizenRepo, departmentRepo, employeeRepo, scheduleService, dispatcher, validate, logr)
	auditService := service.NewAuditService(db, auditRepo, cfg.Audit, logr)
	statsService := service.NewStatsService(db, statsRepo, logr)
	metricsService := service.NewMetricsService(hub.ClientCount)

	authHandler := handler.NewAuthHandler(authService)
	turnHandler := handler.NewTurnHandler(turnService)
	queueHandler := handler.NewQueueHandler(turnService, hub, metricsService, cfg.Display)
	auditHandler := handler.NewAuditHandler(auditService)
	statsHandler := handler.NewStatsHandler(statsService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	turns := api.Group("/turns")
	turns.POST("", middleware.OptionalJWT(authService), turnHandler.Generate)
	turns.GET("/:id", turnHandler.Get)
	turns.GET("/:id/history", middleware.JWT(authService), auditHandler.TurnHistory)
	turns.POST("/:id/call", middleware.JWT(authService), turnHandler.Call)
	turns.POST("/:id/start", middleware.JWT(authService), turnHandler.Start)
	turns.POST("/:id/finish", middleware.JWT(authService), turnHandler.Finish)
	turns.POST("/:id/absent", middleware.JWT(authService), turnHandler.Absent)
	turns.POST("/:id/redirect", middleware.JWT(authService), turnHandler.Redirect)
	turns.POST("/:id/cancel", middleware.OptionalJWT(authService), turnHandler.Cancel)

	departments := api.Group("/departments")
	departments.GET("", queueHandler.Departments)
	departments.GET("/:id/queue", queueHandler.Queue)
	departments.GET("/:id/queue/next", queueHandler.Next)
	departments.GET("/:id/display", queueHandler.Stream)

	audit := api.Group("/audit", middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin, models.RoleResponsible))
	audit.GET("/recent", auditHandler.Recent)
	audit.GET("/employees/:id", auditHandler.ByEmployee)

	stats := api.Group("/stats", middleware.JWT(authService))
	stats.GET("", statsHandler.Range)
	stats.GET("/departments/:id", statsHandler.DepartmentDay)
	stats.GET("/export", statsHandler.Export)
	stats.POST("/reset", middleware.RequireRoles(models.RoleAdmin), statsHandler.Reset)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}
