package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Regex patterns
var (
	// RFC-lite: something@something.something with no whitespace or extra @
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Allow letters, numbers, spaces, and common professional punctuation: . ' - / & ( ) ,
	nameRegex = regexp.MustCompile(`^[\p{L}0-9 .'/&(),-]+$`)

	// E164-like phone: optional +, digits 7-15 length, separators stripped first
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// New returns a validator with the custom tags registered.
func New() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("not_blank", NotBlank)
	_ = v.RegisterValidation("email_lite", EmailLite)
	_ = v.RegisterValidation("valid_name", ValidName)
	_ = v.RegisterValidation("valid_phone", ValidPhone)
	_ = v.RegisterValidation("no_emoji", NoEmoji)
}

// NotBlank rejects empty and whitespace-only strings
func NotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// EmailLite applies the permissive signup email pattern
func EmailLite(fl validator.FieldLevel) bool {
	return emailRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// ValidName validates that a string contains only valid name characters
func ValidName(fl validator.FieldLevel) bool {
	val := strings.TrimSpace(fl.Field().String())
	if val == "" {
		return true // Optional, use not_blank if needed
	}
	return nameRegex.MatchString(val)
}

// ValidPhone validates a phone number after stripping spaces, dashes and parentheses
func ValidPhone(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, val)
	return phoneRegex.MatchString(stripped)
}

// NoEmoji validates that a string does not contain emoji characters
func NoEmoji(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if r > 0x1F000 {
			return false
		}
		if unicode.In(r, unicode.So, unicode.Sk) {
			return false
		}
	}
	return true
}

// IsEmail reports whether s matches the signup email pattern.
func IsEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}
