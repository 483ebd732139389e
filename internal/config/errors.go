package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Configuration error codes (E200-E299)
const (
	ErrCodeMissingKey   = "E201" // required key absent
	ErrCodeInvalidValue = "E202" // value outside the allowed set or range
	ErrCodeTypeMismatch = "E203" // e.g. a list where one column name is required
	ErrCodeSchema       = "E204" // CUE schema violation
)

// Error is a fatal configuration error. It always names the offending key.
type Error struct {
	Code    string
	Table   string
	Key     string
	Message string
	Pos     token.Pos

	// Line is the 1-based line of the key in the YAML source, 0 if unknown.
	Line int
}

// Error implements the error interface.
func (e *Error) Error() string {
	key := e.Key
	if e.Table != "" {
		key = e.Table + "." + e.Key
	}
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, key, e.Message)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, key, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, key, e.Message)
}

// MissingKey creates an Error for an absent required key.
func MissingKey(key string) *Error {
	return &Error{
		Code:    ErrCodeMissingKey,
		Key:     key,
		Message: "required key is missing",
	}
}

// InvalidValue creates an Error for a key with a bad value.
func InvalidValue(key, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidValue,
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsConfigError returns true if err is or wraps a configuration Error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// IsMissingKey returns true if err is a configuration Error for an absent key.
func IsMissingKey(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeMissingKey
	}
	return false
}
