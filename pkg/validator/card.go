package validator

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrEmptyNumber indicates the card number is empty
	ErrEmptyNumber = errors.New("card number cannot be empty")

	// ErrInvalidFormat indicates the card number contains invalid characters
	ErrInvalidFormat = errors.New("card number can only contain digits")

	// ErrInvalidLength indicates the card number length is out of range
	ErrInvalidLength = errors.New("card number must be 13 to 19 digits")

	// ErrChecksum indicates the card number fails the Luhn check
	ErrChecksum = errors.New("card number failed checksum")

	// ErrInvalidCVV indicates the security code is malformed
	ErrInvalidCVV = errors.New("security code must be 3 or 4 digits")

	// ErrInvalidExpiry indicates a malformed expiry month
	ErrInvalidExpiry = errors.New("expiry month must be between 1 and 12")

	// ErrExpired indicates the card is past its expiry date
	ErrExpired = errors.New("card is expired")
)

// digitRegex matches digits only
var digitRegex = regexp.MustCompile(`^\d+$`)

// CardValidator handles payment card validation
type CardValidator struct{}

// NewCardValidator creates a new card validator instance
func NewCardValidator() *CardValidator {
	return &CardValidator{}
}

// ValidateNumber validates a card number.
// Accepts formats: 4111111111111111 or 4111 1111 1111 1111.
// Returns the sanitized number (digits only) and an error if invalid.
func (v *CardValidator) ValidateNumber(number string) (string, error) {
	if number == "" {
		return "", ErrEmptyNumber
	}

	sanitized := v.Sanitize(number)

	if !digitRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}
	if len(sanitized) < 13 || len(sanitized) > 19 {
		return "", ErrInvalidLength
	}
	if !luhnValid(sanitized) {
		return "", ErrChecksum
	}

	return sanitized, nil
}

// ValidateCVV validates the security code
func (v *CardValidator) ValidateCVV(cvv string) error {
	if len(cvv) < 3 || len(cvv) > 4 || !digitRegex.MatchString(cvv) {
		return ErrInvalidCVV
	}
	return nil
}

// ValidateExpiry validates the expiry against the current month
func (v *CardValidator) ValidateExpiry(month, year int) error {
	if month < 1 || month > 12 {
		return ErrInvalidExpiry
	}
	now := time.Now()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return ErrExpired
	}
	return nil
}

// Sanitize removes spaces and dashes from a card number
func (v *CardValidator) Sanitize(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(number, "-", "")
}

// luhnValid runs the Luhn checksum over a digits-only string
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}
