package authflow

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidOTP           = errors.New("authflow: OTP must be exactly 6 digits")
	ErrNoPendingEmail       = errors.New("authflow: no registration awaiting verification; register first")
	ErrAlreadyAuthenticated = errors.New("authflow: already signed in; log out first")
	ErrWrongKind            = errors.New("authflow: form does not belong to this registration flow")
	ErrMissingCredentials   = errors.New("authflow: email and password are required")
)

var (
	otpPattern          = regexp.MustCompile(`^[0-9]{6}$`)
	campusEmailPattern  = regexp.MustCompile(`^\d{2}33(1A|5A)(0[1-58]|08|12)[A-Z0-9]{2}@mvgrce\.edu\.in$`)
	genericEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	contactPattern      = regexp.MustCompile(`^[0-9]{10}$`)
)

// ValidationError collects per-field problems found before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type validator struct {
	fields map[string]string
}

func (v *validator) fail(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, ok := v.fields[field]; !ok {
		v.fields[field] = msg
	}
}

func (v *validator) failed(field string) bool {
	_, ok := v.fields[field]
	return ok
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.fail(field, fmt.Sprintf("%s is required", strings.ReplaceAll(field, "_", " ")))
	}
}

func (v *validator) match(field, value string, re *regexp.Regexp, msg string) {
	if v.failed(field) {
		return
	}
	if !re.MatchString(strings.TrimSpace(value)) {
		v.fail(field, msg)
	}
}

func (v *validator) floatRange(field, value string, min, max float64, msg string) {
	if v.failed(field) {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < min || f > max {
		v.fail(field, msg)
	}
}

func (v *validator) nonNegativeInt(field, value, msg string) {
	if v.failed(field) {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		v.fail(field, msg)
	}
}

func (v *validator) date(field, value string) {
	if v.failed(field) {
		return
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err != nil {
		v.fail(field, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", strings.ReplaceAll(field, "_", " ")))
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	if v.failed(field) {
		return
	}
	for _, a := range allowed {
		if strings.TrimSpace(value) == a {
			return
		}
	}
	v.fail(field, fmt.Sprintf("%s must be one of %s", strings.ReplaceAll(field, "_", " "), strings.Join(allowed, ", ")))
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// ValidOTP reports whether code has the six-digit shape the server accepts.
func ValidOTP(code string) bool {
	return otpPattern.MatchString(code)
}
