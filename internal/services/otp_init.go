package services

import (
	"fmt"

	"github.com/uzleague/league-api/internal/config"
	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/utils"
	"go.uber.org/zap"
)

// InitOTPService builds the global OTP service from config.AppConfig and the shared connections.
// Verification records and players always live in MongoDB; windows and blocks follow OTP_STATE_BACKEND.
func InitOTPService() error {
	cfg := config.AppConfig
	if config.MongoDB == nil {
		return fmt.Errorf("otp service requires MongoDB")
	}

	logger := logging.Logger.With(zap.String("service", "otp"))
	clock := utils.SystemClock{}

	var windows WindowStore
	var blocks BlockStore
	switch cfg.OTPStateBackend {
	case config.StateBackendRedis:
		if config.Redis == nil {
			return fmt.Errorf("OTP_STATE_BACKEND=redis requires a Redis connection")
		}
		windows = NewRedisWindowStore(config.Redis)
		blocks = NewRedisBlockStore(config.Redis)
	default:
		windows = NewMemoryWindowStore()
		blocks = NewMemoryBlockStore()
	}

	gateway, err := NewSMSGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create SMS gateway: %w", err)
	}

	settings := OTPSettings{
		TTL:             cfg.OTPTTL,
		MaxAttempts:     cfg.OTPMaxAttempts,
		BlockDuration:   cfg.OTPBlockDuration,
		SMSTimeout:      cfg.SMSTimeout,
		MessageTemplate: cfg.OTPMessageTemplate,
	}

	OTPServiceInstance = NewOTPService(settings, OTPServiceDeps{
		Hasher:     NewHasher(cfg.OTPHashSecret),
		Limiter:    NewRateLimiter(windows, clock, cfg.OTPRateLimitPerMin, cfg.OTPRateLimitPerDay, logger),
		Blocks:     NewBlockRegistry(blocks, clock, logger),
		Records:    NewMongoVerificationStore(config.MongoDB.Collection(cfg.OTPCollection)),
		Identities: NewMongoIdentityStore(config.MongoDB.Collection(cfg.PlayerCollection)),
		Gateway:    gateway,
		Clock:      clock,
		Logger:     logger,
	})

	logger.Info("otp service initialized",
		zap.String("state_backend", cfg.OTPStateBackend),
		zap.String("sms_provider", gateway.Name()),
		zap.Duration("ttl", settings.TTL),
		zap.Int("rate_limit_per_minute", cfg.OTPRateLimitPerMin),
		zap.Int("rate_limit_per_day", cfg.OTPRateLimitPerDay),
		zap.Int("max_attempts", settings.MaxAttempts),
		zap.Bool("hash_secret", cfg.OTPHashSecret != ""))
	return nil
}
