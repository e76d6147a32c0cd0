package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/services"
	"github.com/uzleague/league-api/internal/utils"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const handlerTestPhone = "+998901234567"

type captureGateway struct {
	mu      sync.Mutex
	last    string
	failing bool
}

func (g *captureGateway) Name() string { return "capture" }

func (g *captureGateway) Send(_ context.Context, _ string, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = message
	if g.failing {
		return errors.New("gateway unavailable")
	}
	return nil
}

func (g *captureGateway) code() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return regexp.MustCompile(`[0-9]{6}`).FindString(g.last)
}

func setupOTPHandlersTest(t *testing.T) (*gin.Engine, *captureGateway, *utils.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := utils.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gateway := &captureGateway{}

	services.OTPServiceInstance = services.NewOTPService(services.DefaultOTPSettings(), services.OTPServiceDeps{
		Limiter:    services.NewRateLimiter(services.NewMemoryWindowStore(), clock, 1, 10, logging.Logger),
		Blocks:     services.NewBlockRegistry(services.NewMemoryBlockStore(), clock, logging.Logger),
		Records:    services.NewMemoryVerificationStore(),
		Identities: services.NewMemoryIdentityStore(),
		Gateway:    gateway,
		Clock:      clock,
		Logger:     logging.Logger,
	})
	t.Cleanup(func() { services.OTPServiceInstance = nil })

	router := gin.New()
	router.POST("/v1/auth/otp/request", RequestOTP)
	router.POST("/v1/auth/otp/verify", VerifyOTP)
	return router, gateway, clock
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestOTP_Success(t *testing.T) {
	router, gateway, _ := setupOTPHandlersTest(t)

	w := postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(300), resp["ttlSeconds"])
	assert.NotContains(t, w.Body.String(), gateway.code(), "code must not be returned")
}

func TestRequestOTP_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{name: "missing phone", body: map[string]string{}, wantStatus: http.StatusBadRequest, wantError: "INVALID_PHONE"},
		{name: "foreign phone", body: models.OTPRequest{Phone: "+15551234567"}, wantStatus: http.StatusBadRequest, wantError: "INVALID_PHONE"},
		{name: "too short", body: models.OTPRequest{Phone: "+99890123456"}, wantStatus: http.StatusBadRequest, wantError: "INVALID_PHONE"},
		{name: "spaced phone", body: models.OTPRequest{Phone: "+998 90 123 45 67"}, wantStatus: http.StatusBadRequest, wantError: "INVALID_PHONE"},
		{name: "dashed phone", body: models.OTPRequest{Phone: "+998 (90) 123-45-67"}, wantStatus: http.StatusBadRequest, wantError: "INVALID_PHONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupOTPHandlersTest(t)
			w := postJSON(router, "/v1/auth/otp/request", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestRequestOTP_RateLimited(t *testing.T) {
	router, _, clock := setupOTPHandlersTest(t)

	require.Equal(t, http.StatusOK, postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone}).Code)
	clock.Advance(15 * time.Second)

	w := postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))

	resp := decodeError(t, w)
	assert.Equal(t, "RATE_LIMITED", resp.Error)
	assert.Equal(t, 45, resp.RetryAfterSeconds)
}

func TestRequestOTP_DeliveryFailed(t *testing.T) {
	router, gateway, _ := setupOTPHandlersTest(t)
	gateway.failing = true

	w := postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "DELIVERY_FAILED", decodeError(t, w).Error)
}

func TestVerifyOTP_Flow(t *testing.T) {
	router, gateway, _ := setupOTPHandlersTest(t)

	require.Equal(t, http.StatusOK, postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone}).Code)
	code := gateway.code()
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	w := postJSON(router, "/v1/auth/otp/verify", models.OTPVerifyRequest{Phone: handlerTestPhone, Code: wrong})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "INVALID_CODE", resp.Error)
	require.NotNil(t, resp.RemainingAttempts)
	assert.Equal(t, 2, *resp.RemainingAttempts)

	w = postJSON(router, "/v1/auth/otp/verify", models.OTPVerifyRequest{Phone: handlerTestPhone, Code: code})
	assert.Equal(t, http.StatusOK, w.Code)
	var ok models.OTPVerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, handlerTestPhone, ok.Identity.Phone)
	assert.True(t, ok.Identity.Created)

	w = postJSON(router, "/v1/auth/otp/verify", models.OTPVerifyRequest{Phone: handlerTestPhone, Code: code})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error)
}

func TestVerifyOTP_Expired(t *testing.T) {
	router, gateway, clock := setupOTPHandlersTest(t)

	require.Equal(t, http.StatusOK, postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone}).Code)
	clock.Advance(6 * time.Minute)

	w := postJSON(router, "/v1/auth/otp/verify", models.OTPVerifyRequest{Phone: handlerTestPhone, Code: gateway.code()})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "EXPIRED", decodeError(t, w).Error)
}

func TestVerifyOTP_Blocked(t *testing.T) {
	router, gateway, clock := setupOTPHandlersTest(t)

	require.Equal(t, http.StatusOK, postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone}).Code)
	wrong := "000000"
	if gateway.code() == wrong {
		wrong = "111111"
	}

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w = postJSON(router, "/v1/auth/otp/verify", models.OTPVerifyRequest{Phone: handlerTestPhone, Code: wrong})
	}
	assert.Equal(t, http.StatusLocked, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "BLOCKED", resp.Error)
	assert.Equal(t, 15, resp.RemainingMinutes)

	clock.Advance(time.Minute)
	w = postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, 14, decodeError(t, w).RemainingMinutes)
}

func TestVerifyOTP_BadInput(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantError string
	}{
		{name: "missing code", body: map[string]string{"phone": handlerTestPhone}, wantError: "INVALID_CODE_FORMAT"},
		{name: "missing phone", body: map[string]string{"code": "123456"}, wantError: "INVALID_PHONE"},
		{name: "five digits", body: models.OTPVerifyRequest{Phone: handlerTestPhone, Code: "12345"}, wantError: "INVALID_CODE_FORMAT"},
		{name: "non ascii digits", body: models.OTPVerifyRequest{Phone: handlerTestPhone, Code: "١٢٣٤٥٦"}, wantError: "INVALID_CODE_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupOTPHandlersTest(t)
			w := postJSON(router, "/v1/auth/otp/verify", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestWriteOTPError_UnknownError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeOTPError(c, errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL", decodeError(t, w).Error)
}

func TestRequestOTP_BusinessLogicSpanTiming(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	router, _, _ := setupOTPHandlersTest(t)
	w := postJSON(router, "/v1/auth/otp/request", models.OTPRequest{Phone: handlerTestPhone})
	require.Equal(t, http.StatusOK, w.Code)

	var logic sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == "endpoint.step.business_logic" {
			logic = span
		}
	}
	require.NotNil(t, logic)

	attrs := make(map[string]bool)
	for _, kv := range logic.Attributes() {
		attrs[string(kv.Key)] = true
	}
	assert.True(t, attrs["duration_ms"])
	assert.True(t, attrs["duration"])
}
