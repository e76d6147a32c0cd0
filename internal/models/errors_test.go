package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectedMsg string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidPhone", ErrInvalidPhone, "invalid phone number"},
		{"ErrInvalidCodeFormat", ErrInvalidCodeFormat, "invalid code format"},
		{"ErrDuplicatePhone", ErrDuplicatePhone, "phone number already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expectedMsg {
				t.Errorf("%s.Error() = %q, want %q", tt.name, tt.err.Error(), tt.expectedMsg)
			}

			wrapped := fmt.Errorf("lookup: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %s) = false, want true", tt.name)
			}
		})
	}
}
