package bpferrors

import (
	"errors"
	"strings"
)

// Format (F) Errors
var (
	ErrFormat = errors.New("F1|Format: Program length is not a multiple of the instruction width.")
)

// Opcode (O) Errors
var (
	ErrUnknownOpcode = errors.New("O1|UnknownOpcode: Opcode byte does not match any instruction class.")
)

var sentinels = []error{ErrFormat, ErrUnknownOpcode}

// Sentinel returns the error of this package that err wraps, or nil.
func Sentinel(err error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

// GetErrorName extracts the error name from the wrapped sentinel.
func GetErrorName(err error) string {
	s := Sentinel(err)
	if s == nil {
		return ""
	}
	parts := strings.SplitN(s.Error(), "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the wrapped sentinel.
func GetErrorCode(err error) string {
	s := Sentinel(err)
	if s == nil {
		return ""
	}
	parts := strings.SplitN(s.Error(), "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
