package graph

import "github.com/colorfulnotion/bpfgraph/ebpf"

// ProgramStats contains statistics about a partitioned program
type ProgramStats struct {
	InstructionCount   int               // Total number of instruction slots
	BasicBlockCount    int               // Total number of basic blocks
	BranchCount        int               // Instructions of the jump class
	ConstantCount      int               // Instructions for which IsConst holds
	WideLoadCount      int               // lddw pairs
	OpcodeDistribution map[byte]int      // Distribution of opcodes
	KindDistribution   map[ebpf.Kind]int // Distribution of instruction kinds
}

// Analyze walks the flat instruction list and returns statistics including
// instruction count and basic block count
func (h *Holder) Analyze() *ProgramStats {
	stats := &ProgramStats{
		OpcodeDistribution: make(map[byte]int),
		KindDistribution:   make(map[ebpf.Kind]int),
	}
	stats.InstructionCount = len(h.insns)
	stats.BasicBlockCount = len(h.blocks)

	for _, m := range h.insns {
		if m.IsWideHigh() {
			continue
		}
		stats.OpcodeDistribution[m.Insn().Opcode]++
		stats.KindDistribution[m.Class().Kind]++
		if m.IsBranch() {
			stats.BranchCount++
		}
		if m.IsConst() {
			stats.ConstantCount++
		}
		if m.Class().Kind == ebpf.KindLoadImmediateDoubleWord {
			stats.WideLoadCount++
		}
	}
	return stats
}

// InstructionInfo is a flattened view of one instruction
type InstructionInfo struct {
	Pos               int
	Opcode            byte
	Kind              ebpf.Kind
	Block             int
	IsBasicBlockStart bool
}

// GetInstructionDetails returns a list of all instructions with their details
func (h *Holder) GetInstructionDetails() []InstructionInfo {
	infos := make([]InstructionInfo, 0, len(h.insns))
	for _, b := range h.blocks {
		for i, m := range b.Insns {
			infos = append(infos, InstructionInfo{
				Pos:               m.Pos(),
				Opcode:            m.Insn().Opcode,
				Kind:              m.Class().Kind,
				Block:             b.Index,
				IsBasicBlockStart: i == 0,
			})
		}
	}
	return infos
}

// GetBasicBlockBoundaries returns the positions where each basic block starts
func (h *Holder) GetBasicBlockBoundaries() []int {
	boundaries := make([]int, 0, len(h.blocks))
	for _, b := range h.blocks {
		boundaries = append(boundaries, b.First().Pos())
	}
	return boundaries
}
