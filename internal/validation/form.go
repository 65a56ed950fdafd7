package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Field names used as keys in FormError.Fields; they match the JSON request body.
const (
	FieldCardNumber = "card_number"
	FieldExpMonth   = "exp_month"
	FieldExpYear    = "exp_year"
	FieldCVC        = "cvc"
	FieldStreet     = "street"
	FieldPostalCode = "postal_code"
	FieldPhone      = "phone"
)

// PaymentForm is the customer-supplied card and billing contact. Address and
// phone are validated but never sent to the gateway.
type PaymentForm struct {
	CardNumber string
	ExpMonth   int
	ExpYear    int
	CVC        string
	Street     string
	PostalCode string
	Phone      string
}

// FormError lists every failing field of a form.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid payment form: " + strings.Join(parts, "; ")
}

// ValidatePaymentForm runs every check and returns a *FormError holding all
// failures, or nil.
func ValidatePaymentForm(f PaymentForm, now time.Time) error {
	checks := []struct {
		field  string
		result Result
	}{
		{FieldCardNumber, ValidateCardNumber(f.CardNumber)},
		{expiryField(f.ExpMonth), ValidateExpiry(f.ExpMonth, f.ExpYear, now)},
		{FieldCVC, ValidateCVV(f.CVC)},
		{FieldStreet, ValidateStreet(f.Street)},
		{FieldPostalCode, ValidatePostalCode(f.PostalCode)},
		{FieldPhone, ValidatePhone(f.Phone)},
	}

	fields := map[string]string{}
	for _, c := range checks {
		if !c.result.Valid {
			fields[c.field] = c.result.Error
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &FormError{Fields: fields}
}

// expiryField names the field an expiry failure belongs to. Only an out of
// range month is a month error; a bad or past year lands on exp_year.
func expiryField(month int) string {
	if month < 1 || month > 12 {
		return FieldExpMonth
	}
	return FieldExpYear
}
