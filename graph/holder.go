package graph

import (
	"fmt"
	"weak"

	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/colorfulnotion/bpfgraph/log"
	"golang.org/x/crypto/blake2b"
)

// Block is a contiguous, non-empty run of instructions. Every block except
// possibly the last one ends with a branch-class instruction.
type Block struct {
	Index int
	Insns []*MetaInstruction
}

func (b Block) Len() int {
	return len(b.Insns)
}

func (b Block) First() *MetaInstruction {
	return b.Insns[0]
}

func (b Block) Last() *MetaInstruction {
	return b.Insns[len(b.Insns)-1]
}

// EndsInBranch is false only for a trailing block that falls off the end of the program.
func (b Block) EndsInBranch() bool {
	return b.Last().IsBranch()
}

// Holder owns the flat instruction list and its partition into blocks.
// It is immutable once constructed and safe for concurrent readers.
type Holder struct {
	insns  []*MetaInstruction
	blocks []Block
	index  map[*MetaInstruction]int
	of     []int // list index -> block index
}

// FromBytes decodes prog and builds its Holder.
func FromBytes(prog []byte) (*Holder, error) {
	insns, err := ebpf.Decode(prog)
	if err != nil {
		return nil, err
	}
	return New(insns)
}

// New classifies insns and partitions them into blocks. A single
// unclassifiable instruction aborts the whole program.
func New(insns []ebpf.Instruction) (*Holder, error) {
	metas, err := NewMetaInstructions(insns)
	if err != nil {
		return nil, err
	}
	return Attach(metas)
}

// Attach builds a Holder over already constructed instructions and points
// their back-references at it, replacing any earlier Holder. The earlier
// Holder keeps its own lists.
func Attach(metas []*MetaInstruction) (*Holder, error) {
	for i, m := range metas {
		if m == nil {
			return nil, fmt.Errorf("instruction %d is nil", i)
		}
		if m.Class().Kind == ebpf.KindUnknown {
			return nil, &ebpf.UnknownOpcodeError{Opcode: m.Insn().Opcode, Pos: m.Pos()}
		}
	}

	h := &Holder{
		insns: append([]*MetaInstruction(nil), metas...),
		index: make(map[*MetaInstruction]int, len(metas)),
	}
	h.blocks = partition(h.insns)
	h.of = make([]int, 0, len(h.insns))
	for _, b := range h.blocks {
		for _, m := range b.Insns {
			h.index[m] = len(h.of)
			h.of = append(h.of, b.Index)
		}
	}

	wp := weak.Make(h)
	for _, m := range h.insns {
		m.setPartOf(&wp)
	}
	log.Debug(log.GraphMonitoring, "Attach", "insns", len(h.insns), "blocks", len(h.blocks))
	return h, nil
}

// partition closes a block immediately after every branch and emits a
// trailing block for whatever is left.
func partition(metas []*MetaInstruction) []Block {
	blocks := make([]Block, 0)
	start := 0
	for i, m := range metas {
		if m.IsBranch() {
			blocks = append(blocks, Block{Index: len(blocks), Insns: metas[start : i+1 : i+1]})
			start = i + 1
		}
	}
	if start < len(metas) {
		blocks = append(blocks, Block{Index: len(blocks), Insns: metas[start:len(metas):len(metas)]})
	}
	return blocks
}

// Instructions returns the flat instruction list. Callers must not modify it.
func (h *Holder) Instructions() []*MetaInstruction {
	return h.insns
}

// Blocks returns the partition. Callers must not modify it.
func (h *Holder) Blocks() []Block {
	return h.blocks
}

func (h *Holder) Len() int {
	return len(h.insns)
}

func (h *Holder) NumBlocks() int {
	return len(h.blocks)
}

func (h *Holder) Instruction(i int) (*MetaInstruction, bool) {
	if i < 0 || i >= len(h.insns) {
		return nil, false
	}
	return h.insns[i], true
}

func (h *Holder) Block(i int) (Block, bool) {
	if i < 0 || i >= len(h.blocks) {
		return Block{}, false
	}
	return h.blocks[i], true
}

// BlockOf returns the block containing m, if m belongs to this Holder.
func (h *Holder) BlockOf(m *MetaInstruction) (Block, bool) {
	idx, ok := h.index[m]
	if !ok {
		return Block{}, false
	}
	return h.blocks[h.of[idx]], true
}

// Contains reports whether m is one of this Holder's instructions.
func (h *Holder) Contains(m *MetaInstruction) bool {
	_, ok := h.index[m]
	return ok
}

// Digest is the blake2b-256 hash of the re-encoded program.
func (h *Holder) Digest() [blake2b.Size256]byte {
	insns := make([]ebpf.Instruction, len(h.insns))
	for i, m := range h.insns {
		insns[i] = m.Insn()
	}
	return blake2b.Sum256(ebpf.Encode(insns))
}

func (h *Holder) String() string {
	return fmt.Sprintf("Holder{insns: %d, blocks: %d}", len(h.insns), len(h.blocks))
}
