package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// MaxNoteLength is the maximum number of characters in a transfer note.
	MaxNoteLength = 280
	// MaxRequestIDLength bounds the client-supplied idempotency key.
	MaxRequestIDLength = 128
)

var (
	// Regex pattern for plain decimal amounts, no sign or exponent
	amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator. Field errors are reported
// under the field's json name.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks the validate tags of payload. The first failing
// field is returned as a ValidationError.
func ValidateStruct(payload any) error {
	err := Validator().Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewValidationError(fe.Field(), fieldMessage(fe.Field(), fe.Tag(), fe.Param()))
	}
	return WrapValidationError("body", err)
}

// fieldMessages maps validation tags to their messages.
var fieldMessages = map[string]func(field, param string) string{
	"required": func(field, _ string) string {
		return fmt.Sprintf("%s is required", field)
	},
	"max": func(field, param string) string {
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	},
	"oneof": func(field, param string) string {
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	},
	"uuid": func(field, _ string) string {
		return fmt.Sprintf("%s must be a valid UUID", field)
	},
}

func fieldMessage(field, tag, param string) string {
	if format, ok := fieldMessages[tag]; ok {
		return format(field, param)
	}
	return fmt.Sprintf("%s failed '%s' check", field, tag)
}

// ParseAmount parses a decimal amount string and validates it with ValidateAmount.
func ParseAmount(value string, scale int32) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, NewValidationError("amount", "amount cannot be empty")
	}
	if !amountPattern.MatchString(value) {
		return decimal.Zero, NewValidationError("amount", "amount must be a positive decimal number")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", fmt.Sprintf("invalid amount: %v", err))
	}
	if err := ValidateAmount(d, scale); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks that amount is positive and has no more fractional
// digits than the currency's minor unit allows.
func ValidateAmount(amount decimal.Decimal, scale int32) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "amount must be positive")
	}
	if !amount.Equal(amount.Truncate(scale)) {
		return NewValidationError("amount", fmt.Sprintf("amount must have at most %d decimal places", scale))
	}
	return nil
}

// ValidateCurrencyCode validates that a currency code follows ISO 4217 format.
func ValidateCurrencyCode(code string) error {
	if code == "" {
		return fmt.Errorf("currency code cannot be empty")
	}

	if len(code) != 3 {
		return fmt.Errorf("currency code must be 3 characters (ISO 4217)")
	}

	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("currency code must contain only uppercase letters")
		}
	}

	return nil
}
