package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	logger := Logger()
	assert.NotNil(t, logger)

	// Should be safe to use without InitLogger
	logger.Info("test message")
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"uzbek number", "+998901234567", "+998*******67"},
		{"short input", "+998", "****"},
		{"empty", "", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskPhone(tt.phone)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, max(len(tt.phone), 4))
		})
	}
}
