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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/coursebay/coursebay-api/api/swagger"
	"github.com/coursebay/coursebay-api/internal/handler"
	"github.com/coursebay/coursebay-api/internal/middleware"
	"github.com/coursebay/coursebay-api/internal/repository"
	"github.com/coursebay/coursebay-api/internal/service"
	"github.com/coursebay/coursebay-api/pkg/cache"
	"github.com/coursebay/coursebay-api/pkg/config"
	"github.com/coursebay/coursebay-api/pkg/database"
	"github.com/coursebay/coursebay-api/pkg/export"
	"github.com/coursebay/coursebay-api/pkg/logger"
	"github.com/coursebay/coursebay-api/pkg/mail"
	corsmiddleware "github.com/coursebay/coursebay-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coursebay/coursebay-api/pkg/middleware/requestid"
	"github.com/coursebay/coursebay-api/pkg/payments"
)

// @title CourseBay API
// @version 1.0.0
// @description Online course marketplace: catalog, enrollment, payments and coursework
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	// Safe with a nil redis client: reads miss, writes are no-ops.
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Outbound adapters.
	var mailer mail.Mailer = mail.NewConsoleMailer(logr)
	if cfg.Mail.Enabled && cfg.Mail.APIKey != "" {
		mailer = mail.NewSendgridMailer(cfg.Mail.APIKey, cfg.AppName, cfg.Mail.FromEmail)
	}
	notifier := service.NewEmailNotifier(mailer, cfg.Mail.Workers, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	gateway := payments.NewMidtransGateway(cfg.Payments.ServerKey, cfg.Payments.Production)
	receipts := export.NewReceiptExporter(cfg.AppName)

	// Core services.
	registry := service.NewSessionRegistry(cfg.Sessions.Timeout, cfg.Sessions.SweepInterval, logr)
	registry.Start(ctx)

	metrics := service.NewMetricsService(prometheus.DefaultRegisterer, registry)

	entitlement := service.NewEntitlementService(paymentRepo, enrollmentRepo, logr)
	authService := service.NewAuthService(userRepo, registry, notifier, cfg.JWT, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, paymentRepo, validate, logr)
	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		Payments:    paymentRepo,
		Courses:     courseRepo,
		Users:       userRepo,
		Enrollments: enrollmentRepo,
		Enroller:    enrollmentService,
		Auditor:     userRepo,
		Gateway:     gateway,
		Receipts:    receipts,
		Notifier:    notifier,
		ServerKey:   cfg.Payments.ServerKey,
		Validate:    validate,
		Logger:      logr,
	})
	courseService := service.NewCourseService(courseRepo, cacheRepo, entitlement, userRepo, cfg.Catalog.CacheTTL, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, courseRepo, entitlement, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, courseRepo, entitlement, validate, logr)
	userService := service.NewUserService(userRepo, registry, validate, logr)

	// Router.
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	public := r.Group(cfg.APIPrefix)
	authed := r.Group(cfg.APIPrefix, middleware.Authenticate(authService, registry))

	handler.NewAuthHandler(authService, metrics, logr).RegisterRoutes(public, authed)
	handler.NewCourseHandler(courseService, lessonService, logr).RegisterRoutes(public, authed)
	handler.NewLessonHandler(lessonService, logr).RegisterRoutes(authed)
	handler.NewEnrollmentHandler(enrollmentService, metrics, logr).RegisterRoutes(authed)
	handler.NewPaymentHandler(paymentService, metrics, logr).RegisterRoutes(public, authed)
	handler.NewAssignmentHandler(assignmentService, logr).RegisterRoutes(authed)
	handler.NewAdminHandler(userService, enrollmentService, registry, logr).RegisterRoutes(authed)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
