// Package validation holds the pre-flight checks run on a payment form before
// any gateway call. Every check is pure and reports a Result instead of failing
// fast, so callers can surface all problems at once.
package validation

import (
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/utils"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// Result is the outcome of a single field check.
type Result struct {
	Valid bool
	Error string
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Error: msg} }

// NormalizeCardNumber strips spaces, dashes and any other non-digit.
func NormalizeCardNumber(number string) string {
	return utils.DigitsOnly(number)
}

// Luhn reports whether digits passes the Luhn checksum. digits must contain
// only ASCII digits; anything else fails.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func ValidateCardNumber(number string) Result {
	digits := NormalizeCardNumber(number)

	switch {
	case digits == "":
		return fail("card number is required")
	case len(digits) < minCardDigits || len(digits) > maxCardDigits:
		return fail("card number must have between 13 and 19 digits")
	case !Luhn(digits):
		return fail("card number is invalid")
	}
	return ok()
}

func ValidateCVV(cvv string) Result {
	cvv = strings.TrimSpace(cvv)
	if len(cvv) < 3 || len(cvv) > 4 || utils.DigitsOnly(cvv) != cvv {
		return fail("security code must be 3 or 4 digits")
	}
	return ok()
}

// ValidateExpiry accepts two-digit years as 20YY. A card expiring in the
// current month is still valid.
func ValidateExpiry(month, year int, now time.Time) Result {
	if month < 1 || month > 12 {
		return fail("expiry month must be between 1 and 12")
	}
	if year < 0 {
		return fail("expiry year is invalid")
	}
	if year < 100 {
		year += 2000
	}

	curYear, curMonth := now.Year(), int(now.Month())
	if year < curYear || (year == curYear && month < curMonth) {
		return fail("card has expired")
	}
	return ok()
}

// ParseExpiryPart converts a form value such as "08" or "2030" to an int,
// returning -1 for anything that is not a plain number.
func ParseExpiryPart(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}
