package ebpf

import "golang.org/x/exp/slices"

// eBPF Instructions - Unified Definition
// Opcode values follow the classic rbpf instruction set. Other packages should
// use these constants instead of defining their own.

// Instruction classes, selected by the low 3 bits of the opcode.
const (
	BPF_LD    = 0x00
	BPF_LDX   = 0x01
	BPF_ST    = 0x02
	BPF_STX   = 0x03
	BPF_ALU   = 0x04
	BPF_JMP   = 0x05
	BPF_ALU64 = 0x07
)

// Operand sizes for load/store instructions (bits 3-4).
const (
	BPF_W  = 0x00
	BPF_H  = 0x08
	BPF_B  = 0x10
	BPF_DW = 0x18
)

// Addressing modes for load/store instructions.
const (
	BPF_IMM  = 0x00
	BPF_ABS  = 0x20
	BPF_IND  = 0x40
	BPF_MEM  = 0x60
	BPF_XADD = 0xc0
)

// Operand source for arithmetic and jump instructions (bit 3).
const (
	BPF_K = 0x00
	BPF_X = 0x08
)

const (
	ClassMask  = 0x07
	SizeMask   = 0x18
	SourceMask = 0x08
)

// BPF_LD class
const (
	LD_ABS_B  = BPF_LD | BPF_ABS | BPF_B
	LD_ABS_H  = BPF_LD | BPF_ABS | BPF_H
	LD_ABS_W  = BPF_LD | BPF_ABS | BPF_W
	LD_ABS_DW = BPF_LD | BPF_ABS | BPF_DW
	LD_IND_B  = BPF_LD | BPF_IND | BPF_B
	LD_IND_H  = BPF_LD | BPF_IND | BPF_H
	LD_IND_W  = BPF_LD | BPF_IND | BPF_W
	LD_IND_DW = BPF_LD | BPF_IND | BPF_DW
	LD_DW_IMM = BPF_LD | BPF_IMM | BPF_DW
)

// BPF_LDX class
const (
	LD_B_REG  = BPF_LDX | BPF_MEM | BPF_B
	LD_H_REG  = BPF_LDX | BPF_MEM | BPF_H
	LD_W_REG  = BPF_LDX | BPF_MEM | BPF_W
	LD_DW_REG = BPF_LDX | BPF_MEM | BPF_DW
)

// BPF_ST class
const (
	ST_B_IMM  = BPF_ST | BPF_MEM | BPF_B
	ST_H_IMM  = BPF_ST | BPF_MEM | BPF_H
	ST_W_IMM  = BPF_ST | BPF_MEM | BPF_W
	ST_DW_IMM = BPF_ST | BPF_MEM | BPF_DW
)

// BPF_STX class
const (
	ST_B_REG   = BPF_STX | BPF_MEM | BPF_B
	ST_H_REG   = BPF_STX | BPF_MEM | BPF_H
	ST_W_REG   = BPF_STX | BPF_MEM | BPF_W
	ST_DW_REG  = BPF_STX | BPF_MEM | BPF_DW
	ST_W_XADD  = BPF_STX | BPF_XADD | BPF_W
	ST_DW_XADD = BPF_STX | BPF_XADD | BPF_DW
)

// BPF_ALU class
const (
	ADD32_IMM  = 0x04
	ADD32_REG  = 0x0c
	SUB32_IMM  = 0x14
	SUB32_REG  = 0x1c
	MUL32_IMM  = 0x24
	MUL32_REG  = 0x2c
	DIV32_IMM  = 0x34
	DIV32_REG  = 0x3c
	OR32_IMM   = 0x44
	OR32_REG   = 0x4c
	AND32_IMM  = 0x54
	AND32_REG  = 0x5c
	LSH32_IMM  = 0x64
	LSH32_REG  = 0x6c
	RSH32_IMM  = 0x74
	RSH32_REG  = 0x7c
	NEG32      = 0x84
	MOD32_IMM  = 0x94
	MOD32_REG  = 0x9c
	XOR32_IMM  = 0xa4
	XOR32_REG  = 0xac
	MOV32_IMM  = 0xb4
	MOV32_REG  = 0xbc
	ARSH32_IMM = 0xc4
	ARSH32_REG = 0xcc
	LE         = 0xd4
	BE         = 0xdc
)

// BPF_ALU64 class
const (
	ADD64_IMM  = 0x07
	ADD64_REG  = 0x0f
	SUB64_IMM  = 0x17
	SUB64_REG  = 0x1f
	MUL64_IMM  = 0x27
	MUL64_REG  = 0x2f
	DIV64_IMM  = 0x37
	DIV64_REG  = 0x3f
	OR64_IMM   = 0x47
	OR64_REG   = 0x4f
	AND64_IMM  = 0x57
	AND64_REG  = 0x5f
	LSH64_IMM  = 0x67
	LSH64_REG  = 0x6f
	RSH64_IMM  = 0x77
	RSH64_REG  = 0x7f
	NEG64      = 0x87
	MOD64_IMM  = 0x97
	MOD64_REG  = 0x9f
	XOR64_IMM  = 0xa7
	XOR64_REG  = 0xaf
	MOV64_IMM  = 0xb7
	MOV64_REG  = 0xbf
	ARSH64_IMM = 0xc7
	ARSH64_REG = 0xcf
)

// BPF_JMP class
const (
	JA        = 0x05
	JEQ_IMM   = 0x15
	JEQ_REG   = 0x1d
	JGT_IMM   = 0x25
	JGT_REG   = 0x2d
	JGE_IMM   = 0x35
	JGE_REG   = 0x3d
	JLT_IMM   = 0xa5
	JLT_REG   = 0xad
	JLE_IMM   = 0xb5
	JLE_REG   = 0xbd
	JSET_IMM  = 0x45
	JSET_REG  = 0x4d
	JNE_IMM   = 0x55
	JNE_REG   = 0x5d
	JSGT_IMM  = 0x65
	JSGT_REG  = 0x6d
	JSGE_IMM  = 0x75
	JSGE_REG  = 0x7d
	JSLT_IMM  = 0xc5
	JSLT_REG  = 0xcd
	JSLE_IMM  = 0xd5
	JSLE_REG  = 0xdd
	CALL      = 0x85
	TAIL_CALL = 0x8d
	EXIT      = 0x95
)

type opcodeDef struct {
	name string
	kind Kind
}

// opcodeTable is the complete set of recognised opcodes. Classification never
// derives a Kind from bits alone; a byte missing here is unknown.
var opcodeTable = map[byte]opcodeDef{
	LD_ABS_B:  {"ldabsb", KindLoadAbsolute},
	LD_ABS_H:  {"ldabsh", KindLoadAbsolute},
	LD_ABS_W:  {"ldabsw", KindLoadAbsolute},
	LD_ABS_DW: {"ldabsdw", KindLoadAbsolute},
	LD_IND_B:  {"ldindb", KindLoadIndirect},
	LD_IND_H:  {"ldindh", KindLoadIndirect},
	LD_IND_W:  {"ldindw", KindLoadIndirect},
	LD_IND_DW: {"ldinddw", KindLoadIndirect},
	LD_DW_IMM: {"lddw", KindLoadImmediateDoubleWord},

	LD_B_REG:  {"ldxb", KindLoadRegister},
	LD_H_REG:  {"ldxh", KindLoadRegister},
	LD_W_REG:  {"ldxw", KindLoadRegister},
	LD_DW_REG: {"ldxdw", KindLoadRegister},

	ST_B_IMM:  {"stb", KindStoreImmediate},
	ST_H_IMM:  {"sth", KindStoreImmediate},
	ST_W_IMM:  {"stw", KindStoreImmediate},
	ST_DW_IMM: {"stdw", KindStoreImmediate},

	ST_B_REG:   {"stxb", KindStoreRegister},
	ST_H_REG:   {"stxh", KindStoreRegister},
	ST_W_REG:   {"stxw", KindStoreRegister},
	ST_DW_REG:  {"stxdw", KindStoreRegister},
	ST_W_XADD:  {"stxxaddw", KindAtomicAdd},
	ST_DW_XADD: {"stxxadddw", KindAtomicAdd},

	ADD32_IMM:  {"add32", KindArithmetic32},
	ADD32_REG:  {"add32", KindArithmetic32},
	SUB32_IMM:  {"sub32", KindArithmetic32},
	SUB32_REG:  {"sub32", KindArithmetic32},
	MUL32_IMM:  {"mul32", KindArithmetic32},
	MUL32_REG:  {"mul32", KindArithmetic32},
	DIV32_IMM:  {"div32", KindArithmetic32},
	DIV32_REG:  {"div32", KindArithmetic32},
	OR32_IMM:   {"or32", KindArithmetic32},
	OR32_REG:   {"or32", KindArithmetic32},
	AND32_IMM:  {"and32", KindArithmetic32},
	AND32_REG:  {"and32", KindArithmetic32},
	LSH32_IMM:  {"lsh32", KindArithmetic32},
	LSH32_REG:  {"lsh32", KindArithmetic32},
	RSH32_IMM:  {"rsh32", KindArithmetic32},
	RSH32_REG:  {"rsh32", KindArithmetic32},
	NEG32:      {"neg32", KindArithmetic32},
	MOD32_IMM:  {"mod32", KindArithmetic32},
	MOD32_REG:  {"mod32", KindArithmetic32},
	XOR32_IMM:  {"xor32", KindArithmetic32},
	XOR32_REG:  {"xor32", KindArithmetic32},
	MOV32_IMM:  {"mov32", KindArithmetic32},
	MOV32_REG:  {"mov32", KindArithmetic32},
	ARSH32_IMM: {"arsh32", KindArithmetic32},
	ARSH32_REG: {"arsh32", KindArithmetic32},
	LE:         {"le", KindArithmetic32},
	BE:         {"be", KindArithmetic32},

	ADD64_IMM:  {"add64", KindArithmetic64},
	ADD64_REG:  {"add64", KindArithmetic64},
	SUB64_IMM:  {"sub64", KindArithmetic64},
	SUB64_REG:  {"sub64", KindArithmetic64},
	MUL64_IMM:  {"mul64", KindArithmetic64},
	MUL64_REG:  {"mul64", KindArithmetic64},
	DIV64_IMM:  {"div64", KindArithmetic64},
	DIV64_REG:  {"div64", KindArithmetic64},
	OR64_IMM:   {"or64", KindArithmetic64},
	OR64_REG:   {"or64", KindArithmetic64},
	AND64_IMM:  {"and64", KindArithmetic64},
	AND64_REG:  {"and64", KindArithmetic64},
	LSH64_IMM:  {"lsh64", KindArithmetic64},
	LSH64_REG:  {"lsh64", KindArithmetic64},
	RSH64_IMM:  {"rsh64", KindArithmetic64},
	RSH64_REG:  {"rsh64", KindArithmetic64},
	NEG64:      {"neg64", KindArithmetic64},
	MOD64_IMM:  {"mod64", KindArithmetic64},
	MOD64_REG:  {"mod64", KindArithmetic64},
	XOR64_IMM:  {"xor64", KindArithmetic64},
	XOR64_REG:  {"xor64", KindArithmetic64},
	MOV64_IMM:  {"mov64", KindArithmetic64},
	MOV64_REG:  {"mov64", KindArithmetic64},
	ARSH64_IMM: {"arsh64", KindArithmetic64},
	ARSH64_REG: {"arsh64", KindArithmetic64},

	JA:        {"ja", KindBranch},
	JEQ_IMM:   {"jeq", KindBranch},
	JEQ_REG:   {"jeq", KindBranch},
	JGT_IMM:   {"jgt", KindBranch},
	JGT_REG:   {"jgt", KindBranch},
	JGE_IMM:   {"jge", KindBranch},
	JGE_REG:   {"jge", KindBranch},
	JLT_IMM:   {"jlt", KindBranch},
	JLT_REG:   {"jlt", KindBranch},
	JLE_IMM:   {"jle", KindBranch},
	JLE_REG:   {"jle", KindBranch},
	JSET_IMM:  {"jset", KindBranch},
	JSET_REG:  {"jset", KindBranch},
	JNE_IMM:   {"jne", KindBranch},
	JNE_REG:   {"jne", KindBranch},
	JSGT_IMM:  {"jsgt", KindBranch},
	JSGT_REG:  {"jsgt", KindBranch},
	JSGE_IMM:  {"jsge", KindBranch},
	JSGE_REG:  {"jsge", KindBranch},
	JSLT_IMM:  {"jslt", KindBranch},
	JSLT_REG:  {"jslt", KindBranch},
	JSLE_IMM:  {"jsle", KindBranch},
	JSLE_REG:  {"jsle", KindBranch},
	CALL:      {"call", KindCall},
	TAIL_CALL: {"tail_call", KindTailCall},
	EXIT:      {"exit", KindExit},
}

// OpcodeName returns the mnemonic of an opcode
func OpcodeName(opcode byte) string {
	def, exists := opcodeTable[opcode]
	if !exists {
		return "UNKNOWN"
	}
	return def.name
}

// IsKnownOpcode reports whether the opcode is part of the instruction set.
func IsKnownOpcode(opcode byte) bool {
	_, exists := opcodeTable[opcode]
	return exists
}

// KnownOpcodes returns every recognised opcode in ascending order.
func KnownOpcodes() []byte {
	ops := make([]byte, 0, len(opcodeTable))
	for op := range opcodeTable {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}
