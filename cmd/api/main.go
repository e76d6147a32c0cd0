package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/uzleague/league-api/internal/config"
	"github.com/uzleague/league-api/internal/handlers"
	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/middleware"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/services"
	"github.com/uzleague/league-api/internal/utils/httpclient"
	"go.uber.org/zap"

	_ "github.com/uzleague/league-api/docs"
)

// @title           League API
// @version         1.0
// @description     Phone verification for the league mobile app. Players request a one-time SMS code for a +998 number and exchange it for their player identity.

// @contact.name   League Platform Team

// @host      localhost:8080
// @BasePath  /v1

// @tag.name auth
// @tag.description One-time code login

// @tag.name health
// @tag.description Health check operations

func main() {
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logging.Logger.Sync()

	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	observability.InitTracer()
	defer observability.ShutdownTracer()

	if err := config.InitMongoDB(); err != nil {
		logging.Logger.Fatal("failed to initialize MongoDB", zap.Error(err))
	}
	if config.AppConfig.OTPStateBackend == config.StateBackendRedis {
		if err := config.InitRedis(); err != nil {
			logging.Logger.Fatal("failed to initialize Redis", zap.Error(err))
		}
	}

	if err := services.InitOTPService(); err != nil {
		logging.Logger.Fatal("failed to initialize OTP service", zap.Error(err))
	}

	cleanup := services.NewCleanupScheduler(services.OTPServiceInstance, config.AppConfig.OTPCleanupSchedule, logging.Logger)
	if err := cleanup.Start(context.Background()); err != nil {
		logging.Logger.Fatal("failed to start OTP cleanup", zap.Error(err))
	}

	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		middleware.RequestTiming(),
		cors.Default(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		auth := v1.Group("/auth/otp")
		auth.POST("/request", handlers.RequestOTP)
		auth.POST("/verify", handlers.VerifyOTP)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.AppConfig.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.AppConfig.SMSTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", config.AppConfig.Port),
			zap.String("environment", config.AppConfig.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Error("server forced to shutdown", zap.Error(err))
	}

	cleanup.Stop()
	httpclient.GetGlobalPool().Close()

	if config.MongoDB != nil {
		if err := config.MongoDB.Client().Disconnect(ctx); err != nil {
			logging.Logger.Warn("failed to disconnect MongoDB", zap.Error(err))
		}
	}

	logging.Logger.Info("server exited gracefully")
}
