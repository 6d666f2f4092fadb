package graph

import (
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/colorfulnotion/bpfgraph/ebpf"
)

// MetaInstruction holds a decoded instruction together with its
// classification, its position in the program and a weak back-reference to
// the Holder that owns it. Only the back-reference changes after construction.
type MetaInstruction struct {
	insn  ebpf.Instruction
	class ebpf.Class
	pos   int

	wideHigh bool
	partOf   atomic.Pointer[weak.Pointer[Holder]]
}

// NewMetaInstructions wraps every instruction, preserving order. The
// back-references stay empty until a Holder is attached.
//
// A zero opcode directly after a lddw is taken as the high half of its
// immediate and carries the lddw class. A lddw without that slot is kept as
// an ordinary lddw.
func NewMetaInstructions(insns []ebpf.Instruction) ([]*MetaInstruction, error) {
	metas := make([]*MetaInstruction, 0, len(insns))
	for pos, insn := range insns {
		if pos > 0 && insn.Opcode == 0 {
			prev := metas[pos-1]
			if prev.class.Kind == ebpf.KindLoadImmediateDoubleWord && !prev.wideHigh {
				metas = append(metas, &MetaInstruction{insn: insn, class: prev.class, pos: pos, wideHigh: true})
				continue
			}
		}

		class, err := ebpf.Classify(insn.Opcode)
		if err != nil {
			return nil, &ebpf.UnknownOpcodeError{Opcode: insn.Opcode, Pos: pos}
		}
		metas = append(metas, &MetaInstruction{insn: insn, class: class, pos: pos})
	}
	return metas, nil
}

func (m *MetaInstruction) Insn() ebpf.Instruction {
	return m.insn
}

func (m *MetaInstruction) Class() ebpf.Class {
	return m.class
}

// Pos is the zero-based index of the instruction in its program.
func (m *MetaInstruction) Pos() int {
	return m.pos
}

// Graph resolves the back-reference. It returns nil if no Holder was ever
// attached or if the Holder has been garbage collected.
func (m *MetaInstruction) Graph() *Holder {
	wp := m.partOf.Load()
	if wp == nil {
		return nil
	}
	return wp.Value()
}

func (m *MetaInstruction) setPartOf(wp *weak.Pointer[Holder]) *MetaInstruction {
	m.partOf.Store(wp)
	return m
}

// Clone copies the instruction, including the current back-reference.
func (m *MetaInstruction) Clone() *MetaInstruction {
	c := &MetaInstruction{insn: m.insn, class: m.class, pos: m.pos, wideHigh: m.wideHigh}
	c.partOf.Store(m.partOf.Load())
	return c
}

// Equal compares instruction, classification and position. The
// back-reference is not part of the comparison.
func (m *MetaInstruction) Equal(o *MetaInstruction) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.insn == o.insn && m.class == o.class && m.pos == o.pos && m.wideHigh == o.wideHigh
}

// IsWideHigh reports whether this is the second slot of a lddw pair.
func (m *MetaInstruction) IsWideHigh() bool {
	return m.wideHigh
}

// Imm64 returns the 64-bit immediate of a lddw, reading the second slot
// through the owning Holder. It fails for a lddw without a second slot.
func (m *MetaInstruction) Imm64() (uint64, bool) {
	if m.class.Kind != ebpf.KindLoadImmediateDoubleWord || m.wideHigh {
		return 0, false
	}
	h := m.Graph()
	if h == nil {
		return 0, false
	}
	idx, ok := h.index[m]
	if !ok || idx+1 >= len(h.insns) || !h.insns[idx+1].wideHigh {
		return 0, false
	}
	return m.insn.Imm64(h.insns[idx+1].insn), true
}

func (m *MetaInstruction) IsBranch() bool { return m.class.IsBranch() }
func (m *MetaInstruction) IsALU() bool    { return m.class.IsALU() }
func (m *MetaInstruction) Is8Bit() bool   { return m.class.Is8Bit() }
func (m *MetaInstruction) Is16Bit() bool  { return m.class.Is16Bit() }
func (m *MetaInstruction) Is32Bit() bool  { return m.class.Is32Bit() }
func (m *MetaInstruction) Is64Bit() bool  { return m.class.Is64Bit() }

// IsConst reports whether the instruction produces a constant.
func (m *MetaInstruction) IsConst() bool {
	return m.class.IsConst()
}

func (m *MetaInstruction) String() string {
	if m.wideHigh {
		return fmt.Sprintf("%4d: (lddw high) imm: %d", m.pos, m.insn.Imm)
	}
	return fmt.Sprintf("%4d: %s [%s]", m.pos, m.insn, m.class)
}
