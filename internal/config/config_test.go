package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		setEnv       bool
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_KEY_1",
			defaultValue: "default",
			envValue:     "custom",
			setEnv:       true,
			want:         "custom",
		},
		{
			name:         "environment variable not set",
			key:          "TEST_KEY_2",
			defaultValue: "default",
			setEnv:       false,
			want:         "default",
		},
		{
			name:         "empty environment variable",
			key:          "TEST_KEY_3",
			defaultValue: "default",
			envValue:     "",
			setEnv:       true,
			want:         "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvOrDefault(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		setEnv   bool
		want     int
		wantErr  bool
	}{
		{name: "valid integer", envValue: "42", setEnv: true, want: 42},
		{name: "not set", setEnv: false, want: 10},
		{name: "empty falls back", envValue: "", setEnv: true, want: 10},
		{name: "invalid integer", envValue: "invalid", setEnv: true, wantErr: true},
		{name: "negative integer", envValue: "-5", setEnv: true, want: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_INT", tt.envValue)
			}

			got, err := getEnvAsIntOrDefault("TEST_INT", 10)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		setEnv   bool
		want     time.Duration
		wantErr  bool
	}{
		{name: "valid duration", envValue: "5m", setEnv: true, want: 5 * time.Minute},
		{name: "not set", setEnv: false, want: 10 * time.Second},
		{name: "invalid duration", envValue: "invalid", setEnv: true, wantErr: true},
		{name: "milliseconds", envValue: "500ms", setEnv: true, want: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_DUR", tt.envValue)
			}

			got, err := getEnvAsDurationOrDefault("TEST_DUR", 10*time.Second)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBoolOrDefault(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	assert.True(t, getEnvAsBoolOrDefault("TEST_BOOL", false))

	t.Setenv("TEST_BOOL", "nope")
	assert.False(t, getEnvAsBoolOrDefault("TEST_BOOL", false))

	os.Unsetenv("TEST_BOOL")
	assert.True(t, getEnvAsBoolOrDefault("TEST_BOOL", true))
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"OTP_TTL_SECONDS", "OTP_RATE_LIMIT_PER_MINUTE", "OTP_RATE_LIMIT_PER_DAY",
		"MAX_ATTEMPTS", "BLOCK_DURATION_MINUTES", "OTP_STATE_BACKEND", "SMS_PROVIDER",
		"OTP_MESSAGE_TEMPLATE", "TRACING_SERVICE_NAME", "TRACING_SAMPLE_RATIO",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	require.NoError(t, LoadConfig())

	assert.Equal(t, 300*time.Second, AppConfig.OTPTTL)
	assert.Equal(t, 1, AppConfig.OTPRateLimitPerMin)
	assert.Equal(t, 10, AppConfig.OTPRateLimitPerDay)
	assert.Equal(t, 3, AppConfig.OTPMaxAttempts)
	assert.Equal(t, 15*time.Minute, AppConfig.OTPBlockDuration)
	assert.Equal(t, StateBackendMemory, AppConfig.OTPStateBackend)
	assert.Equal(t, SMSProviderLog, AppConfig.SMSProvider)
	assert.Equal(t, "@every 1h", AppConfig.OTPCleanupSchedule)
	assert.Equal(t, "league-api", AppConfig.TracingServiceName)
	assert.Equal(t, 1.0, AppConfig.TracingSampleRatio)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("OTP_TTL_SECONDS", "120")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("OTP_STATE_BACKEND", "Redis")
	t.Setenv("SMS_PROVIDER", "twilio")
	t.Setenv("TRACING_SERVICE_NAME", "league-api-staging")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")

	require.NoError(t, LoadConfig())

	assert.Equal(t, 2*time.Minute, AppConfig.OTPTTL)
	assert.Equal(t, 5, AppConfig.OTPMaxAttempts)
	assert.Equal(t, StateBackendRedis, AppConfig.OTPStateBackend)
	assert.Equal(t, SMSProviderTwilio, AppConfig.SMSProvider)
	assert.Equal(t, "league-api-staging", AppConfig.TracingServiceName)
	assert.Equal(t, 0.25, AppConfig.TracingSampleRatio)
}

func TestValidateMessageTemplate(t *testing.T) {
	assert.NoError(t, validateMessageTemplate("Your league verification code: %s"))
	assert.NoError(t, validateMessageTemplate("%s is your code, 100%% private"))

	err := validateMessageTemplate("Your code is below")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTP_MESSAGE_TEMPLATE")
}

func TestLoadConfig_MessageTemplate(t *testing.T) {
	t.Setenv("OTP_MESSAGE_TEMPLATE", "League code %s")
	require.NoError(t, LoadConfig())
	assert.Equal(t, "League code %s", AppConfig.OTPMessageTemplate)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "eighty"},
		{"zero ttl", "OTP_TTL_SECONDS", "0"},
		{"negative attempts", "MAX_ATTEMPTS", "-1"},
		{"unknown backend", "OTP_STATE_BACKEND", "etcd"},
		{"unknown provider", "SMS_PROVIDER", "pigeon"},
		{"bad sms timeout", "SMS_TIMEOUT", "soon"},
		{"bad sample ratio", "TRACING_SAMPLE_RATIO", "often"},
		{"sample ratio above one", "TRACING_SAMPLE_RATIO", "1.5"},
		{"template without code", "OTP_MESSAGE_TEMPLATE", "Your code is below"},
		{"template with two codes", "OTP_MESSAGE_TEMPLATE", "%s and %s"},
		{"template with extra verb", "OTP_MESSAGE_TEMPLATE", "Code %s valid for %d minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			assert.Error(t, LoadConfig())
		})
	}
}
