package observability

import (
	"github.com/uzleague/league-api/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskPhone keeps the country prefix and the last two digits of a phone number
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "****"
	}
	masked := []byte(phone)
	for i := 4; i < len(masked)-2; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
