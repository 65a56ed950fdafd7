package validation

import (
	"strings"
	"unicode/utf8"

	"storefront-be/internal/utils"
)

const maxStreetLength = 200

func ValidatePostalCode(code string) Result {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if code == "" {
		return fail("postal code is required")
	}
	if utils.DigitsOnly(code) != code || len(code) < 4 || len(code) > 10 {
		return fail("postal code must have between 4 and 10 digits")
	}
	return ok()
}

// ValidatePhone ignores separators and a leading '+'.
func ValidatePhone(phone string) Result {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fail("phone number is required")
	}

	rest := strings.TrimPrefix(phone, "+")
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return fail("phone number contains invalid characters")
		}
	}

	n := len(utils.DigitsOnly(rest))
	if n < 8 || n > 15 {
		return fail("phone number must have between 8 and 15 digits")
	}
	return ok()
}

func ValidateStreet(street string) Result {
	street = strings.TrimSpace(street)
	if street == "" {
		return fail("street is required")
	}
	if utf8.RuneCountInString(street) > maxStreetLength {
		return fail("street is too long")
	}
	return ok()
}
