package ebpf

import "fmt"

// Kind is the semantic category of an instruction.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLoadAbsolute
	KindLoadIndirect
	KindLoadImmediateDoubleWord
	KindLoadRegister
	KindStoreImmediate
	KindStoreRegister
	KindAtomicAdd
	KindArithmetic32
	KindArithmetic64
	KindBranch
	KindCall
	KindTailCall
	KindExit
)

var kindNames = map[Kind]string{
	KindLoadAbsolute:            "LoadAbsolute",
	KindLoadIndirect:            "LoadIndirect",
	KindLoadImmediateDoubleWord: "LoadImmediateDoubleWord",
	KindLoadRegister:            "LoadRegister",
	KindStoreImmediate:          "StoreImmediate",
	KindStoreRegister:           "StoreRegister",
	KindAtomicAdd:               "AtomicAdd",
	KindArithmetic32:            "Arithmetic32",
	KindArithmetic64:            "Arithmetic64",
	KindBranch:                  "Branch",
	KindCall:                    "Call",
	KindTailCall:                "TailCall",
	KindExit:                    "Exit",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return "Unknown"
	}
	return name
}

// Kinds returns every known Kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := KindLoadAbsolute; k <= KindExit; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Width is the operand width of a load or store.
type Width uint8

const (
	W8 Width = iota + 1
	W16
	W32
	W64
)

func (w Width) Bits() int {
	switch w {
	case W8:
		return 8
	case W16:
		return 16
	case W32:
		return 32
	case W64:
		return 64
	}
	return 0
}

func (w Width) String() string {
	if w.Bits() == 0 {
		return "?"
	}
	return fmt.Sprintf("%d", w.Bits())
}

// Class is the classification of a single opcode. The zero value is the
// result of a failed classification and answers false to every predicate.
type Class struct {
	Opcode byte
	Kind   Kind
}

// Classify looks the opcode up in the instruction table.
func Classify(opcode byte) (Class, error) {
	def, ok := opcodeTable[opcode]
	if !ok {
		return Class{}, &UnknownOpcodeError{Opcode: opcode, Pos: -1}
	}
	return Class{Opcode: opcode, Kind: def.kind}, nil
}

// MustClassify is like Classify but panics on an unknown opcode. Intended
// for tables and tests built from the constants in this package.
func MustClassify(opcode byte) Class {
	c, err := Classify(opcode)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Class) valid() bool {
	return c.Kind != KindUnknown
}

func (c Class) opClass() byte {
	return c.Opcode & ClassMask
}

func (c Class) IsLoad() bool {
	return c.valid() && c.opClass() == BPF_LD
}

func (c Class) IsLoadReg() bool {
	return c.valid() && c.opClass() == BPF_LDX
}

func (c Class) IsStore() bool {
	return c.valid() && c.opClass() == BPF_ST
}

func (c Class) IsStoreReg() bool {
	return c.valid() && c.opClass() == BPF_STX
}

// IsLoadStore reports whether the width predicates are meaningful.
func (c Class) IsLoadStore() bool {
	return c.IsLoad() || c.IsLoadReg() || c.IsStore() || c.IsStoreReg()
}

// IsBranch is true for the whole jump class, including call, tail call and exit.
func (c Class) IsBranch() bool {
	return c.valid() && c.opClass() == BPF_JMP
}

func (c Class) IsALU() bool {
	return c.valid() && (c.opClass() == BPF_ALU || c.opClass() == BPF_ALU64)
}

// is the instruction an 8 bit instruction?
func (c Class) Is8Bit() bool {
	return c.valid() && c.Opcode&SizeMask == BPF_B
}

// is the instruction a 16 bit instruction?
func (c Class) Is16Bit() bool {
	return c.valid() && c.Opcode&SizeMask == BPF_H
}

// is the instruction a 32 bit instruction?
func (c Class) Is32Bit() bool {
	return c.valid() && c.Opcode&SizeMask == BPF_W
}

// is the instruction a 64 bit instruction?
func (c Class) Is64Bit() bool {
	return c.valid() && c.Opcode&SizeMask == BPF_DW
}

// Width returns the operand width of a load or store.
func (c Class) Width() (Width, bool) {
	if !c.IsLoadStore() {
		return 0, false
	}
	switch {
	case c.Is8Bit():
		return W8, true
	case c.Is16Bit():
		return W16, true
	case c.Is32Bit():
		return W32, true
	default:
		return W64, true
	}
}

// IsConst is true for load-class and arithmetic instructions whose source bit
// selects the immediate operand.
func (c Class) IsConst() bool {
	return (c.IsLoad() || c.IsALU()) && c.Opcode&SourceMask == BPF_K
}

// IsImmediateSource reports whether an arithmetic or jump instruction takes
// its second operand from the immediate field.
func (c Class) IsImmediateSource() bool {
	return (c.IsALU() || c.IsBranch()) && c.Opcode&SourceMask == BPF_K
}

func (c Class) Name() string {
	return OpcodeName(c.Opcode)
}

func (c Class) String() string {
	if !c.valid() {
		return fmt.Sprintf("unknown(%#04x)", c.Opcode)
	}
	if w, ok := c.Width(); ok {
		return fmt.Sprintf("%s(%s)", c.Kind, w)
	}
	return c.Kind.String()
}
