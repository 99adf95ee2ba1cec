package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{6,20}$`)
)

const MinPasswordLength = 8

type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Err returns nil when valid, otherwise a validation error listing every
// failed field.
func (v *Validator) Err(message string) error {
	if v.Valid() {
		return nil
	}
	return apperrors.NewInvalidRequestError(message, v.Errors)
}

func (v *Validator) Required(key, value string) {
	v.Check(strings.TrimSpace(value) != "", key, "is required")
}

func (v *Validator) MaxLength(key, value string, n int) {
	v.Check(utf8.RuneCountInString(value) <= n, key, fmt.Sprintf("must not exceed %d characters", n))
}

func (v *Validator) ValidateEmail(email string) {
	v.Check(emailRegex.MatchString(email), "email", "must be a valid email address")
}

// ValidatePhone accepts an empty phone number.
func (v *Validator) ValidatePhone(phone string) {
	if phone == "" {
		return
	}
	v.Check(phoneRegex.MatchString(phone), "phone", "must be a valid phone number")
}

// ValidatePassword requires MinPasswordLength characters with at least one
// letter and one digit.
func (v *Validator) ValidatePassword(key, password string) {
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	v.Check(utf8.RuneCountInString(password) >= MinPasswordLength && letter && digit, key,
		fmt.Sprintf("must be at least %d characters and contain a letter and a number", MinPasswordLength))
}

func (v *Validator) OneOf(key, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(key, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) Positive(key string, d decimal.Decimal) {
	v.Check(d.IsPositive(), key, "must be greater than zero")
}

func (v *Validator) NonNegative(key string, d decimal.Decimal) {
	v.Check(!d.IsNegative(), key, "must not be negative")
}
