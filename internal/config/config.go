package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI          string        `json:"redis_uri"`
	RedisPassword     string        `json:"redis_password"`
	RedisDB           int           `json:"redis_db"`
	RedisPoolSize     int           `json:"redis_pool_size"`
	RedisDialTimeout  time.Duration `json:"redis_dial_timeout"`
	RedisReadTimeout  time.Duration `json:"redis_read_timeout"`
	RedisWriteTimeout time.Duration `json:"redis_write_timeout"`

	// Collection names
	OTPCollection    string `json:"mongo_otp_collection"`
	PlayerCollection string `json:"mongo_player_collection"`

	// OTP configuration
	OTPTTL             time.Duration `json:"otp_ttl"`
	OTPRateLimitPerMin int           `json:"otp_rate_limit_per_minute"`
	OTPRateLimitPerDay int           `json:"otp_rate_limit_per_day"`
	OTPMaxAttempts     int           `json:"max_attempts"`
	OTPBlockDuration   time.Duration `json:"block_duration"`
	OTPHashSecret      string        `json:"-"`
	OTPCleanupSchedule string        `json:"otp_cleanup_schedule"`
	OTPStateBackend    string        `json:"otp_state_backend"`
	OTPMessageTemplate string        `json:"otp_message_template"`

	// SMS gateway configuration
	SMSProvider      string        `json:"sms_provider"`
	SMSTimeout       time.Duration `json:"sms_timeout"`
	SMSHTTPURL       string        `json:"sms_http_url"`
	SMSHTTPToken     string        `json:"-"`
	SMSSender        string        `json:"sms_sender"`
	TwilioAccountSID string        `json:"-"`
	TwilioAuthToken  string        `json:"-"`
	TwilioFromPhone  string        `json:"twilio_from_phone"`

	// Tracing configuration
	TracingEnabled     bool    `json:"tracing_enabled"`
	TracingEndpoint    string  `json:"tracing_endpoint"`
	TracingServiceName string  `json:"tracing_service_name"`
	TracingSampleRatio float64 `json:"tracing_sample_ratio"`
	ServiceVersion     string  `json:"service_version"`
}

var (
	AppConfig *Config
)

// State backends for rate-limit windows and block entries.
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

// SMS providers.
const (
	SMSProviderLog    = "log"
	SMSProviderHTTP   = "http"
	SMSProviderTwilio = "twilio"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := getEnvAsIntOrDefault("PORT", 8080)
	if err != nil {
		return err
	}

	redisDB, err := getEnvAsIntOrDefault("REDIS_DB", 0)
	if err != nil {
		return err
	}
	redisPoolSize, err := getEnvAsIntOrDefault("REDIS_POOL_SIZE", 10)
	if err != nil {
		return err
	}
	redisDialTimeout, err := getEnvAsDurationOrDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	if err != nil {
		return err
	}
	redisReadTimeout, err := getEnvAsDurationOrDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	if err != nil {
		return err
	}
	redisWriteTimeout, err := getEnvAsDurationOrDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	if err != nil {
		return err
	}

	ttlSeconds, err := getEnvAsIntOrDefault("OTP_TTL_SECONDS", 300)
	if err != nil {
		return err
	}
	perMinute, err := getEnvAsIntOrDefault("OTP_RATE_LIMIT_PER_MINUTE", 1)
	if err != nil {
		return err
	}
	perDay, err := getEnvAsIntOrDefault("OTP_RATE_LIMIT_PER_DAY", 10)
	if err != nil {
		return err
	}
	maxAttempts, err := getEnvAsIntOrDefault("MAX_ATTEMPTS", 3)
	if err != nil {
		return err
	}
	blockMinutes, err := getEnvAsIntOrDefault("BLOCK_DURATION_MINUTES", 15)
	if err != nil {
		return err
	}
	if ttlSeconds <= 0 || perMinute <= 0 || perDay <= 0 || maxAttempts <= 0 || blockMinutes <= 0 {
		return fmt.Errorf("OTP settings must be positive")
	}

	smsTimeout, err := getEnvAsDurationOrDefault("SMS_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}

	backend := strings.ToLower(getEnvOrDefault("OTP_STATE_BACKEND", StateBackendMemory))
	if backend != StateBackendMemory && backend != StateBackendRedis {
		return fmt.Errorf("invalid OTP_STATE_BACKEND: %s", backend)
	}

	provider := strings.ToLower(getEnvOrDefault("SMS_PROVIDER", SMSProviderLog))
	switch provider {
	case SMSProviderLog, SMSProviderHTTP, SMSProviderTwilio:
	default:
		return fmt.Errorf("invalid SMS_PROVIDER: %s", provider)
	}

	sampleRatio, err := getEnvAsFloatOrDefault("TRACING_SAMPLE_RATIO", 1.0)
	if err != nil {
		return err
	}
	if sampleRatio < 0 || sampleRatio > 1 {
		return fmt.Errorf("invalid TRACING_SAMPLE_RATIO: %v is outside [0, 1]", sampleRatio)
	}

	messageTemplate := getEnvOrDefault("OTP_MESSAGE_TEMPLATE", "Your league verification code: %s")
	if err := validateMessageTemplate(messageTemplate); err != nil {
		return err
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "league"),

		// Redis configuration
		RedisURI:          getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword:     getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:           redisDB,
		RedisPoolSize:     redisPoolSize,
		RedisDialTimeout:  redisDialTimeout,
		RedisReadTimeout:  redisReadTimeout,
		RedisWriteTimeout: redisWriteTimeout,

		// Collection names
		OTPCollection:    getEnvOrDefault("MONGODB_OTP_COLLECTION", "otp_verifications"),
		PlayerCollection: getEnvOrDefault("MONGODB_PLAYER_COLLECTION", "players"),

		// OTP configuration
		OTPTTL:             time.Duration(ttlSeconds) * time.Second,
		OTPRateLimitPerMin: perMinute,
		OTPRateLimitPerDay: perDay,
		OTPMaxAttempts:     maxAttempts,
		OTPBlockDuration:   time.Duration(blockMinutes) * time.Minute,
		OTPHashSecret:      getEnvOrDefault("OTP_HASH_SECRET", ""),
		OTPCleanupSchedule: getEnvOrDefault("OTP_CLEANUP_SCHEDULE", "@every 1h"),
		OTPStateBackend:    backend,
		OTPMessageTemplate: messageTemplate,

		// SMS gateway configuration
		SMSProvider:      provider,
		SMSTimeout:       smsTimeout,
		SMSHTTPURL:       getEnvOrDefault("SMS_HTTP_URL", ""),
		SMSHTTPToken:     getEnvOrDefault("SMS_HTTP_TOKEN", ""),
		SMSSender:        getEnvOrDefault("SMS_SENDER", ""),
		TwilioAccountSID: getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromPhone:  getEnvOrDefault("TWILIO_FROM_PHONE", ""),

		// Tracing configuration
		TracingEnabled:     getEnvAsBoolOrDefault("TRACING_ENABLED", false),
		TracingEndpoint:    getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
		TracingServiceName: getEnvOrDefault("TRACING_SERVICE_NAME", "league-api"),
		TracingSampleRatio: sampleRatio,
		ServiceVersion:     getEnvOrDefault("SERVICE_VERSION", "v1.0.0"),
	}

	return nil
}

// validateMessageTemplate requires exactly one %s verb for the code and no other verbs
func validateMessageTemplate(tpl string) error {
	if strings.Count(tpl, "%s") != 1 {
		return fmt.Errorf("invalid OTP_MESSAGE_TEMPLATE: must contain exactly one %%s")
	}
	if strings.Contains(fmt.Sprintf(tpl, "000000"), "%!") {
		return fmt.Errorf("invalid OTP_MESSAGE_TEMPLATE: unsupported formatting verb in %q", tpl)
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault parses an integer environment variable
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getEnvAsDurationOrDefault parses a duration environment variable
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getEnvAsFloatOrDefault parses a float environment variable
func getEnvAsFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getEnvAsBoolOrDefault parses a boolean environment variable, falling back on parse errors
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
