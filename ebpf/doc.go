// Package ebpf decodes fixed-width eBPF bytecode and classifies opcodes.
//
// A program is a flat buffer of 8-byte slots. Decode turns it into
// Instruction records without looking at the opcodes; Classify maps an
// opcode byte onto its Kind through an explicit table and exposes the
// bit-field predicates (branch, arithmetic, operand width, constant source)
// used by the block partitioner and by external analysis tools.
package ebpf
