package ebpf

import (
	"fmt"

	"github.com/colorfulnotion/bpfgraph/bpferrors"
)

// FormatError reports a program buffer whose length is not a multiple of InsnSize.
type FormatError struct {
	Len int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("program length %d is not a multiple of %d: %v", e.Len, InsnSize, bpferrors.ErrFormat)
}

func (e *FormatError) Unwrap() error {
	return bpferrors.ErrFormat
}

// UnknownOpcodeError reports an opcode byte outside the instruction table.
// Pos is the instruction index, or -1 when the opcode was classified on its own.
type UnknownOpcodeError struct {
	Opcode byte
	Pos    int
}

func (e *UnknownOpcodeError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("opcode %#04x: %v", e.Opcode, bpferrors.ErrUnknownOpcode)
	}
	return fmt.Sprintf("opcode %#04x at instruction %d: %v", e.Opcode, e.Pos, bpferrors.ErrUnknownOpcode)
}

func (e *UnknownOpcodeError) Unwrap() error {
	return bpferrors.ErrUnknownOpcode
}
