package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/services"
	"github.com/uzleague/league-api/internal/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var otpErrorStatus = map[string]int{
	services.CodeInvalidPhone:      http.StatusBadRequest,
	services.CodeInvalidCodeFormat: http.StatusBadRequest,
	services.CodeRateLimited:       http.StatusTooManyRequests,
	services.CodeBlocked:           http.StatusLocked,
	services.CodeDeliveryFailed:    http.StatusBadGateway,
	services.CodeNotFound:          http.StatusNotFound,
	services.CodeExpired:           http.StatusGone,
	services.CodeInvalidCode:       http.StatusUnauthorized,
	services.CodeInternal:          http.StatusInternalServerError,
}

// writeOTPError renders a service error with its machine code and hints
func writeOTPError(c *gin.Context, err error) {
	var otpErr *services.OTPError
	if !errors.As(err, &otpErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: services.CodeInternal, Message: "internal error"})
		return
	}

	status, ok := otpErrorStatus[otpErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := ErrorResponse{
		Error:             otpErr.Code,
		Message:           otpErr.Message,
		RetryAfterSeconds: otpErr.RetryAfterSeconds,
		RemainingMinutes:  otpErr.RemainingMinutes,
	}
	if otpErr.Code == services.CodeInvalidCode {
		remaining := otpErr.RemainingAttempts
		resp.RemainingAttempts = &remaining
	}
	if otpErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(otpErr.RetryAfterSeconds))
	}
	c.JSON(status, resp)
}

// RequestOTP godoc
// @Summary Request a verification code
// @Description Sends a six digit verification code by SMS to a +998 phone number. The code is valid for ttlSeconds.
// @Tags auth
// @Accept json
// @Produce json
// @Param data body models.OTPRequest true "Phone number"
// @Success 200 {object} models.OTPRequestResponse
// @Failure 400 {object} ErrorResponse "INVALID_PHONE"
// @Failure 423 {object} ErrorResponse "BLOCKED, see remainingMinutes"
// @Failure 429 {object} ErrorResponse "RATE_LIMITED, see retryAfterSeconds"
// @Failure 500 {object} ErrorResponse "INTERNAL"
// @Failure 502 {object} ErrorResponse "DELIVERY_FAILED"
// @Router /auth/otp/request [post]
func RequestOTP(c *gin.Context) {
	startTime := time.Now()
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "RequestOTP")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "request_otp"),
		attribute.String("service", "otp"),
	)

	logger := observability.Logger()

	_, parseSpan := utils.TraceInputParsing(ctx, "otp_request")
	var req models.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RecordErrorInSpan(parseSpan, err, nil)
		parseSpan.End()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   services.CodeInvalidPhone,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	parseSpan.End()

	logicStart := time.Now()
	ctx, logicSpan := utils.TraceBusinessLogic(ctx, "request_code")
	ttl, err := services.OTPServiceInstance.RequestCode(ctx, req.Phone)
	if err != nil {
		utils.RecordErrorInSpan(logicSpan, err, nil)
		utils.AddTimingToSpan(logicSpan, logicStart)
		logicSpan.End()
		writeOTPError(c, err)
		return
	}
	utils.AddTimingToSpan(logicSpan, logicStart)
	logicSpan.End()

	c.JSON(http.StatusOK, models.OTPRequestResponse{
		Message:    "Verification code sent",
		TTLSeconds: ttl,
	})

	logger.Debug("RequestOTP completed",
		zap.String("phone", observability.MaskPhone(req.Phone)),
		zap.Duration("total_duration", time.Since(startTime)))
}

// VerifyOTP godoc
// @Summary Verify a code
// @Description Checks the code sent to the phone. On success the code is consumed and the player identity is returned, created on first login.
// @Tags auth
// @Accept json
// @Produce json
// @Param data body models.OTPVerifyRequest true "Phone number and code"
// @Success 200 {object} models.OTPVerifyResponse
// @Failure 400 {object} ErrorResponse "INVALID_CODE_FORMAT or INVALID_PHONE"
// @Failure 401 {object} ErrorResponse "INVALID_CODE, see remainingAttempts"
// @Failure 404 {object} ErrorResponse "NOT_FOUND"
// @Failure 410 {object} ErrorResponse "EXPIRED"
// @Failure 423 {object} ErrorResponse "BLOCKED"
// @Failure 500 {object} ErrorResponse "INTERNAL"
// @Router /auth/otp/verify [post]
func VerifyOTP(c *gin.Context) {
	startTime := time.Now()
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "VerifyOTP")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "verify_otp"),
		attribute.String("service", "otp"),
	)

	logger := observability.Logger()

	_, parseSpan := utils.TraceInputParsing(ctx, "otp_verify")
	var req models.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RecordErrorInSpan(parseSpan, err, nil)
		parseSpan.End()
		code := services.CodeInvalidCodeFormat
		if req.Phone == "" {
			code = services.CodeInvalidPhone
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   code,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	parseSpan.End()

	logicStart := time.Now()
	ctx, logicSpan := utils.TraceBusinessLogic(ctx, "verify_code")
	identity, err := services.OTPServiceInstance.VerifyCode(ctx, req.Phone, req.Code)
	if err != nil {
		utils.RecordErrorInSpan(logicSpan, err, nil)
		utils.AddTimingToSpan(logicSpan, logicStart)
		logicSpan.End()
		writeOTPError(c, err)
		return
	}
	utils.AddSpanAttribute(logicSpan, "player.created", identity.Created)
	utils.AddTimingToSpan(logicSpan, logicStart)
	logicSpan.End()

	c.JSON(http.StatusOK, models.OTPVerifyResponse{
		Message:  "Phone verified",
		Identity: *identity,
	})

	logger.Debug("VerifyOTP completed",
		zap.String("player_id", identity.ID),
		zap.Duration("total_duration", time.Since(startTime)))
}
