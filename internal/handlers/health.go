package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uzleague/league-api/internal/config"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/utils"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// HealthCheck godoc
// @Summary Health check
// @Description Reports the health of the API and its dependencies (MongoDB and, when configured, Redis).
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse "All services are healthy"
// @Failure 503 {object} HealthResponse "One or more services are unavailable"
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "HealthCheck")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	if config.MongoDB != nil {
		_, mongoSpan := utils.TraceExternalService(ctx, "mongodb", "ping")
		if err := config.MongoDB.Client().Ping(ctx, nil); err != nil {
			utils.RecordErrorInSpan(mongoSpan, err, nil)
			observability.Logger().Warn("mongodb health check failed", zap.Error(err))
			health.Status = "unhealthy"
			health.Services["mongodb"] = "unhealthy"
		} else {
			health.Services["mongodb"] = "healthy"
		}
		mongoSpan.End()
	}

	if config.Redis != nil {
		_, redisSpan := utils.TraceExternalService(ctx, "redis", "ping")
		if err := config.Redis.Ping(ctx).Err(); err != nil {
			utils.RecordErrorInSpan(redisSpan, err, nil)
			observability.Logger().Warn("redis health check failed", zap.Error(err))
			health.Status = "unhealthy"
			health.Services["redis"] = "unhealthy"
		} else {
			health.Services["redis"] = "healthy"
		}
		redisSpan.End()
	}

	if health.Status == "healthy" {
		c.JSON(http.StatusOK, health)
		return
	}
	c.JSON(http.StatusServiceUnavailable, health)
}
