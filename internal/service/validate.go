package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/auth"
)

// Validation limits.
const (
	MaxEmailLength    = 255
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
	MaxCountryLength  = 50
	MaxHandleLength   = 50
	MaxPronounsLength = 50
	MaxBioLength      = 500
	MaxNameLength     = 255
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// validator collects every failing field so one response can list them all.
type validator struct {
	fields   []string
	messages []string
}

func (v *validator) fail(field, message string) {
	v.fields = append(v.fields, field)
	v.messages = append(v.messages, message)
}

// has reports whether field already failed, so later checks on it are skipped.
func (v *validator) has(field string) bool {
	for _, f := range v.fields {
		if f == field {
			return true
		}
	}
	return false
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.fail(field, field+" is required")
	}
}

func (v *validator) requiredID(field string, value int64) {
	if value <= 0 {
		v.fail(field, field+" is required")
	}
}

func (v *validator) maxLen(field, value string, limit int) {
	if v.has(field) {
		return
	}
	if utf8.RuneCountInString(value) > limit {
		v.fail(field, fmt.Sprintf("%s must be %d characters or less", field, limit))
	}
}

func (v *validator) maxLenPtr(field string, value *string, limit int) {
	if value != nil {
		v.maxLen(field, *value, limit)
	}
}

func (v *validator) email(field, value string) {
	if v.has(field) {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.fail(field, "please provide a valid email")
		return
	}
	v.maxLen(field, value, MaxEmailLength)
}

func (v *validator) username(field, value string) {
	if v.has(field) {
		return
	}
	n := utf8.RuneCountInString(value)
	if n < MinUsernameLength || n > MaxUsernameLength {
		v.fail(field, fmt.Sprintf("%s must be between %d and %d characters", field, MinUsernameLength, MaxUsernameLength))
		return
	}
	if !usernamePattern.MatchString(value) {
		v.fail(field, field+" can only contain letters, numbers and underscores")
	}
}

func (v *validator) password(field, value string) {
	if v.has(field) {
		return
	}
	if len(value) < MinPasswordLength {
		v.fail(field, fmt.Sprintf("%s must be at least %d characters", field, MinPasswordLength))
		return
	}
	if len(value) > auth.MaxPasswordBytes {
		v.fail(field, fmt.Sprintf("%s must be %d bytes or fewer", field, auth.MaxPasswordBytes))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return apperror.Invalid(v.fields, v.messages)
}

// trimPtr trims a nullable string. Blank values stay as the empty string.
func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
