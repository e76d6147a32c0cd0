package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzleague/league-api/internal/config"
)

func TestHealthCheck_NoDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prevMongo, prevRedis := config.MongoDB, config.Redis
	config.MongoDB, config.Redis = nil, nil
	defer func() { config.MongoDB, config.Redis = prevMongo, prevRedis }()

	router := gin.New()
	router.GET("/v1/health", HealthCheck)

	req, _ := http.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Services)
}
