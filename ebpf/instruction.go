package ebpf

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/bpfgraph/log"
)

// InsnSize is the width in bytes of one encoded instruction.
const InsnSize = 8

// Instruction is one decoded 8-byte instruction slot.
type Instruction struct {
	Opcode uint8
	Dst    uint8
	Src    uint8
	Offset int16
	Imm    int32
}

// Decode splits prog into InsnSize chunks. Opcodes are not validated here;
// an unknown opcode only fails when the instruction is classified.
func Decode(prog []byte) ([]Instruction, error) {
	if len(prog)%InsnSize != 0 {
		return nil, &FormatError{Len: len(prog)}
	}
	insns := make([]Instruction, 0, len(prog)/InsnSize)
	for off := 0; off < len(prog); off += InsnSize {
		insns = append(insns, DecodeInstruction(prog[off:off+InsnSize]))
	}
	log.Trace(log.EbpfMonitoring, "Decode", "bytes", len(prog), "insns", len(insns))
	return insns, nil
}

// DecodeInstruction decodes a single slot. b must hold at least InsnSize bytes.
func DecodeInstruction(b []byte) Instruction {
	_ = b[InsnSize-1]
	return Instruction{
		Opcode: b[0],
		Dst:    b[1] & 0x0f,
		Src:    b[1] >> 4,
		Offset: int16(binary.LittleEndian.Uint16(b[2:4])),
		Imm:    int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}

// Encode is the inverse of DecodeInstruction. Register numbers are truncated to 4 bits.
func (i Instruction) Encode() []byte {
	b := make([]byte, InsnSize)
	b[0] = i.Opcode
	b[1] = i.Src<<4 | i.Dst&0x0f
	binary.LittleEndian.PutUint16(b[2:4], uint16(i.Offset))
	binary.LittleEndian.PutUint32(b[4:8], uint32(i.Imm))
	return b
}

// Encode concatenates the encodings of insns.
func Encode(insns []Instruction) []byte {
	out := make([]byte, 0, len(insns)*InsnSize)
	for _, insn := range insns {
		out = append(out, insn.Encode()...)
	}
	return out
}

// Imm64 combines a lddw slot with its second slot into the 64-bit immediate.
func (i Instruction) Imm64(high Instruction) uint64 {
	return uint64(uint32(i.Imm)) | uint64(uint32(high.Imm))<<32
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s opcode: %#04x, dst: r%d, src: r%d, offset: %d, imm: %d",
		OpcodeName(i.Opcode), i.Opcode, i.Dst, i.Src, i.Offset, i.Imm)
}
