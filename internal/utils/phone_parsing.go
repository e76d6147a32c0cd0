package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/uzleague/league-api/internal/models"
)

var (
	uzPhoneRegex = regexp.MustCompile(`^\+998[0-9]{9}$`)
	codeRegex    = regexp.MustCompile(`^[0-9]{6}$`)
)

// NormalizePhone returns the canonical +998XXXXXXXXX form of an Uzbek phone number.
// Only surrounding whitespace is tolerated; separators inside the number are rejected.
func NormalizePhone(phone string) (string, error) {
	clean := strings.TrimSpace(phone)
	if !uzPhoneRegex.MatchString(clean) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidPhone, phone)
	}

	num, err := phonenumbers.Parse(clean, "UZ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidPhone, err)
	}
	if phonenumbers.GetRegionCodeForCountryCode(int(num.GetCountryCode())) != "UZ" ||
		phonenumbers.Format(num, phonenumbers.E164) != clean {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidPhone, phone)
	}
	return clean, nil
}

// ValidateCode checks that a verification code is exactly six ASCII digits
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return models.ErrInvalidCodeFormat
	}
	return nil
}
