package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/utils"
	"go.uber.org/zap"
)

// Machine readable OTP error codes
const (
	CodeInvalidPhone      = "INVALID_PHONE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeBlocked           = "BLOCKED"
	CodeDeliveryFailed    = "DELIVERY_FAILED"
	CodeInvalidCodeFormat = "INVALID_CODE_FORMAT"
	CodeNotFound          = "NOT_FOUND"
	CodeExpired           = "EXPIRED"
	CodeInvalidCode       = "INVALID_CODE"
	CodeInternal          = "INTERNAL"
)

// OTPError is returned by OTPService for every rejected request or verification.
// The hint fields are only set for the codes they apply to.
type OTPError struct {
	Code              string
	Message           string
	RetryAfterSeconds int
	RemainingMinutes  int
	RemainingAttempts int
	Err               error
}

func (e *OTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OTPError) Unwrap() error {
	return e.Err
}

func internalError(message string, err error) *OTPError {
	return &OTPError{Code: CodeInternal, Message: message, Err: err}
}

// OTPSettings holds the tunables of the OTP flow
type OTPSettings struct {
	TTL             time.Duration
	MaxAttempts     int
	BlockDuration   time.Duration
	SMSTimeout      time.Duration
	MessageTemplate string
}

// DefaultOTPSettings mirrors the configuration defaults
func DefaultOTPSettings() OTPSettings {
	return OTPSettings{
		TTL:             300 * time.Second,
		MaxAttempts:     models.DefaultMaxAttempts,
		BlockDuration:   15 * time.Minute,
		SMSTimeout:      10 * time.Second,
		MessageTemplate: "Your league verification code: %s",
	}
}

// OTPService issues and verifies phone verification codes
type OTPService struct {
	settings   OTPSettings
	generator  *CodeGenerator
	hasher     *Hasher
	limiter    *RateLimiter
	blocks     *BlockRegistry
	records    VerificationStore
	identities IdentityStore
	gateway    SMSGateway
	clock      utils.Clock
	locks      *utils.KeyedMutex
	logger     *logging.SafeLogger
}

// OTPServiceDeps groups the collaborators of OTPService
type OTPServiceDeps struct {
	Hasher     *Hasher
	Limiter    *RateLimiter
	Blocks     *BlockRegistry
	Records    VerificationStore
	Identities IdentityStore
	Gateway    SMSGateway
	Clock      utils.Clock
	Logger     *logging.SafeLogger
}

// NewOTPService creates the OTP orchestrator
func NewOTPService(settings OTPSettings, deps OTPServiceDeps) *OTPService {
	clock := deps.Clock
	if clock == nil {
		clock = utils.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = NewHasher("")
	}
	return &OTPService{
		settings:   settings,
		generator:  NewCodeGenerator(),
		hasher:     hasher,
		limiter:    deps.Limiter,
		blocks:     deps.Blocks,
		records:    deps.Records,
		identities: deps.Identities,
		gateway:    deps.Gateway,
		clock:      clock,
		locks:      utils.NewKeyedMutex(),
		logger:     logger.With(zap.String("component", "otp_service")),
	}
}

// Global OTP service instance
var OTPServiceInstance *OTPService

// RequestCode issues a new code for phone and hands it to the SMS gateway.
// It returns the code lifetime in seconds; the code itself never leaves the service.
func (s *OTPService) RequestCode(ctx context.Context, rawPhone string) (int, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		observability.OTPRequests.WithLabelValues("invalid_phone").Inc()
		return 0, &OTPError{Code: CodeInvalidPhone, Message: "phone must be +998 followed by 9 digits", Err: err}
	}

	logger := s.logger.With(zap.String("phone", observability.MaskPhone(phone)))

	code, err := s.issue(ctx, phone, logger)
	if err != nil {
		var otpErr *OTPError
		if errors.As(err, &otpErr) {
			observability.OTPRequests.WithLabelValues(strings.ToLower(otpErr.Code)).Inc()
		}
		return 0, err
	}

	message := fmt.Sprintf(s.settings.MessageTemplate, code)
	if err := s.deliver(ctx, phone, message); err != nil {
		observability.OTPRequests.WithLabelValues("delivery_failed").Inc()
		logger.Error("failed to deliver verification code", zap.Error(err))
		return 0, &OTPError{Code: CodeDeliveryFailed, Message: "failed to deliver verification code", Err: err}
	}

	observability.OTPRequests.WithLabelValues("issued").Inc()
	logger.Info("verification code issued")
	return int(s.settings.TTL / time.Second), nil
}

// issue runs the policy checks and stores a fresh record under the phone lock
func (s *OTPService) issue(ctx context.Context, phone string, logger *logging.SafeLogger) (string, error) {
	unlock := s.locks.Lock(phone)
	defer unlock()

	decision, err := s.limiter.CheckAndConsume(ctx, phone)
	if err != nil {
		logger.Error("rate limiter failed", zap.Error(err))
		return "", internalError("failed to check rate limit", err)
	}
	if !decision.Allowed {
		return "", &OTPError{
			Code:              CodeRateLimited,
			Message:           "too many code requests",
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}
	}

	status, err := s.blocks.IsBlocked(ctx, phone)
	if err != nil {
		logger.Error("block registry failed", zap.Error(err))
		return "", internalError("failed to check block status", err)
	}
	if status.Blocked {
		return "", &OTPError{
			Code:              CodeBlocked,
			Message:           "phone is temporarily blocked",
			RetryAfterSeconds: status.RemainingSeconds,
			RemainingMinutes:  status.RemainingMinutes,
		}
	}

	code, err := s.generator.Generate()
	if err != nil {
		return "", internalError("failed to generate code", err)
	}
	salt, err := s.hasher.Salt()
	if err != nil {
		return "", internalError("failed to generate salt", err)
	}

	now := s.clock.Now()
	record := &models.VerificationRecord{
		Phone:     phone,
		CodeHash:  s.hasher.Hash(code, salt),
		Salt:      salt,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.settings.TTL),
	}
	if err := s.records.Put(ctx, record); err != nil {
		logger.Error("failed to store verification record", zap.Error(err))
		return "", internalError("failed to store verification record", err)
	}
	return code, nil
}

func (s *OTPService) deliver(ctx context.Context, phone, message string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.settings.SMSTimeout)
	defer cancel()

	err := s.gateway.Send(sendCtx, phone, message)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.SMSDeliveries.WithLabelValues(s.gateway.Name(), status).Inc()
	return err
}

// VerifyCode checks code against the outstanding record for phone and resolves the caller's identity
func (s *OTPService) VerifyCode(ctx context.Context, rawPhone, code string) (*models.Identity, error) {
	identity, err := s.verify(ctx, rawPhone, code)
	outcome := "verified"
	if err != nil {
		outcome = "error"
		var otpErr *OTPError
		if errors.As(err, &otpErr) {
			outcome = strings.ToLower(otpErr.Code)
		}
	}
	observability.OTPVerifications.WithLabelValues(outcome).Inc()
	return identity, err
}

func (s *OTPService) verify(ctx context.Context, rawPhone, code string) (*models.Identity, error) {
	if err := utils.ValidateCode(code); err != nil {
		return nil, &OTPError{Code: CodeInvalidCodeFormat, Message: "code must be exactly 6 digits", Err: err}
	}
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return nil, &OTPError{Code: CodeInvalidPhone, Message: "phone must be +998 followed by 9 digits", Err: err}
	}

	logger := s.logger.With(zap.String("phone", observability.MaskPhone(phone)))

	if err := s.consume(ctx, phone, code, logger); err != nil {
		return nil, err
	}

	identity, err := s.resolveIdentity(ctx, phone)
	if err != nil {
		logger.Error("failed to resolve identity after verification", zap.Error(err))
		return nil, internalError("failed to resolve identity", err)
	}

	logger.Info("phone verified",
		zap.String("player_id", identity.ID),
		zap.Bool("created", identity.Created))
	return identity, nil
}

// consume runs the record state machine under the phone lock. A nil return means the code matched
// and this call removed the record.
func (s *OTPService) consume(ctx context.Context, phone, code string, logger *logging.SafeLogger) error {
	unlock := s.locks.Lock(phone)
	defer unlock()

	record, err := s.records.Get(ctx, phone)
	if errors.Is(err, models.ErrNotFound) {
		return &OTPError{Code: CodeNotFound, Message: "no active code for this phone, request a new one"}
	}
	if err != nil {
		logger.Error("failed to read verification record", zap.Error(err))
		return internalError("failed to read verification record", err)
	}

	now := s.clock.Now()
	if record.Expired(now) {
		if _, err := s.records.Delete(ctx, record); err != nil {
			logger.Warn("failed to delete expired record", zap.Error(err))
		}
		return &OTPError{Code: CodeExpired, Message: "code expired, request a new one"}
	}

	if record.Attempts >= s.settings.MaxAttempts {
		return s.exhaust(ctx, record, logger)
	}

	if !s.hasher.Matches(code, record.Salt, record.CodeHash) {
		attempts, err := s.records.IncrementAttempts(ctx, record)
		if errors.Is(err, models.ErrNotFound) {
			return &OTPError{Code: CodeNotFound, Message: "no active code for this phone, request a new one"}
		}
		if err != nil {
			logger.Error("failed to count failed attempt", zap.Error(err))
			return internalError("failed to count failed attempt", err)
		}

		if attempts >= s.settings.MaxAttempts {
			record.Attempts = attempts
			return s.exhaust(ctx, record, logger)
		}

		logger.Info("invalid verification code", zap.Int("attempts", attempts))
		return &OTPError{
			Code:              CodeInvalidCode,
			Message:           "invalid code",
			RemainingAttempts: s.settings.MaxAttempts - attempts,
		}
	}

	deleted, err := s.records.Delete(ctx, record)
	if err != nil {
		logger.Error("failed to consume verification record", zap.Error(err))
		return internalError("failed to consume verification record", err)
	}
	if !deleted {
		return &OTPError{Code: CodeNotFound, Message: "no active code for this phone, request a new one"}
	}
	return nil
}

// exhaust deletes the record and blocks the phone
func (s *OTPService) exhaust(ctx context.Context, record *models.VerificationRecord, logger *logging.SafeLogger) error {
	if _, err := s.records.Delete(ctx, record); err != nil {
		logger.Error("failed to delete exhausted record", zap.Error(err))
		return internalError("failed to delete exhausted record", err)
	}
	if err := s.blocks.Block(ctx, record.Phone, s.settings.BlockDuration, models.BlockReasonTooManyAttempts); err != nil {
		logger.Error("failed to block phone", zap.Error(err))
		return internalError("failed to block phone", err)
	}

	logger.Warn("phone blocked after failed verification attempts",
		zap.String("event", "security.otp_blocked"),
		zap.Int("attempts", record.Attempts),
		zap.Duration("block_duration", s.settings.BlockDuration))

	minutes := int((s.settings.BlockDuration + time.Minute - 1) / time.Minute)
	return &OTPError{
		Code:              CodeBlocked,
		Message:           "too many failed attempts, phone is temporarily blocked",
		RetryAfterSeconds: retryAfterSeconds(s.settings.BlockDuration),
		RemainingMinutes:  minutes,
		RemainingAttempts: 0,
	}
}

// resolveIdentity finds or registers the player for phone and stamps the login
func (s *OTPService) resolveIdentity(ctx context.Context, phone string) (*models.Identity, error) {
	now := s.clock.Now()
	created := false

	player, err := s.identities.FindByPhone(ctx, phone)
	if errors.Is(err, models.ErrNotFound) {
		player, err = s.identities.Create(ctx, phone, now)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, models.ErrDuplicatePhone):
			// registered concurrently
			player, err = s.identities.FindByPhone(ctx, phone)
		}
	}
	if err != nil {
		return nil, err
	}

	touched, err := s.identities.TouchLastSeen(ctx, player.ID, now)
	if err != nil {
		return nil, err
	}

	identity := touched.ToIdentity(created)
	return &identity, nil
}

// Cleanup removes expired verification records and returns how many were deleted
func (s *OTPService) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := s.records.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification records: %w", err)
	}
	if deleted > 0 {
		observability.OTPCleanupDeleted.Add(float64(deleted))
	}

	// in-memory limiter and block state has no TTL of its own
	if _, err := s.limiter.PurgeExpired(ctx); err != nil {
		s.logger.Warn("failed to purge expired rate limit windows", zap.Error(err))
	}
	if _, err := s.blocks.PurgeExpired(ctx); err != nil {
		s.logger.Warn("failed to purge expired block entries", zap.Error(err))
	}
	return deleted, nil
}
