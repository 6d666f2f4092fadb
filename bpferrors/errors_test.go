package bpferrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorParts(t *testing.T) {
	testCases := []struct {
		err      error
		code     string
		name     string
		codeName string
	}{
		{ErrFormat, "F1", "Format", "F1_Format"},
		{ErrUnknownOpcode, "O1", "UnknownOpcode", "O1_UnknownOpcode"},
		{fmt.Errorf("prog.bin: program length 11: %w", ErrFormat), "F1", "Format", "F1_Format"},
		{fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrUnknownOpcode)), "O1", "UnknownOpcode", "O1_UnknownOpcode"},
	}
	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.code, GetErrorCode(tc.err))
			assert.Equal(t, tc.name, GetErrorName(tc.err))
			assert.Equal(t, tc.codeName, GetErrorCodeWithName(tc.err))
		})
	}
}

func TestErrorHelpersPlainErrors(t *testing.T) {
	plain := errors.New("boom|bang: nope")
	for _, err := range []error{nil, plain} {
		assert.Nil(t, Sentinel(err))
		assert.Equal(t, "", GetErrorName(err))
		assert.Equal(t, "", GetErrorCode(err))
		assert.Equal(t, "", GetErrorCodeWithName(err))
	}
	assert.Same(t, ErrFormat, Sentinel(fmt.Errorf("decode: %w", ErrFormat)))
}
