package graph

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/colorfulnotion/bpfgraph/bpferrors"
	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mov32 r0, 0; mov32 r1, 2; add32 r0, 4; add32 r0, r1; exit (r0 == 6)
var addProgram = []byte{
	0xb4, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xb4, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
	0x04, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00,
	0x0c, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func insn(op byte, dst, src uint8, off int16, imm int32) ebpf.Instruction {
	return ebpf.Instruction{Opcode: op, Dst: dst, Src: src, Offset: off, Imm: imm}
}

// branchy: two conditional jumps, a call and a trailing block without a branch
var branchy = []ebpf.Instruction{
	insn(ebpf.MOV64_IMM, 0, 0, 0, 0),
	insn(ebpf.JEQ_IMM, 1, 0, 2, 0),
	insn(ebpf.ADD64_IMM, 0, 0, 0, 1),
	insn(ebpf.CALL, 0, 0, 0, 5),
	insn(ebpf.JA, 0, 0, 1, 0),
	insn(ebpf.LD_DW_REG, 2, 1, 8, 0),
	insn(ebpf.JNE_REG, 0, 2, -3, 0),
	insn(ebpf.MOV64_REG, 0, 2, 0, 0),
	insn(ebpf.ST_W_IMM, 10, 0, -4, 7),
}

func concat(blocks []Block) []*MetaInstruction {
	var out []*MetaInstruction
	for _, b := range blocks {
		out = append(out, b.Insns...)
	}
	return out
}

func checkInvariants(t *testing.T, h *Holder) {
	t.Helper()
	flat := h.Instructions()
	joined := concat(h.Blocks())
	require.Equal(t, len(flat), len(joined))
	for i := range flat {
		assert.Same(t, flat[i], joined[i], "instruction %d", i)
	}
	for i, b := range h.Blocks() {
		assert.Equal(t, i, b.Index)
		assert.NotZero(t, b.Len())
		if i < len(h.Blocks())-1 {
			assert.True(t, b.EndsInBranch(), "block %d must end in a branch", i)
		}
		for _, m := range b.Insns[:b.Len()-1] {
			assert.False(t, m.IsBranch(), "branch inside block %d at %d", i, m.Pos())
		}
	}
	for _, m := range flat {
		assert.Same(t, h, m.Graph(), "instruction %d", m.Pos())
		blk, ok := h.BlockOf(m)
		require.True(t, ok)
		assert.Contains(t, blk.Insns, m)
	}
}

func TestAddProgramScenario(t *testing.T) {
	h, err := FromBytes(addProgram)
	require.NoError(t, err)
	require.Equal(t, 5, h.Len())
	require.Equal(t, 1, h.NumBlocks())
	assert.Equal(t, 5, h.Blocks()[0].Len())

	wantConst := []bool{true, true, true, false, false}
	for i, m := range h.Instructions() {
		assert.Equal(t, i, m.Pos())
		assert.Equal(t, wantConst[i], m.IsConst(), "instruction %d", i)
		assert.Equal(t, i == 4, m.IsBranch(), "instruction %d", i)
	}
	checkInvariants(t, h)
}

func TestEmptyProgram(t *testing.T) {
	h, err := FromBytes([]byte{})
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Blocks())
	assert.Empty(t, h.Instructions())
	checkInvariants(t, h)
}

func TestMisalignedProgram(t *testing.T) {
	h, err := FromBytes(addProgram[:len(addProgram)-3])
	assert.Nil(t, h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bpferrors.ErrFormat))
}

func TestUnknownOpcodeAbortsPartition(t *testing.T) {
	insns := append([]ebpf.Instruction{}, branchy...)
	insns[3].Opcode = 0x06
	h, err := New(insns)
	assert.Nil(t, h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bpferrors.ErrUnknownOpcode))

	var ue *ebpf.UnknownOpcodeError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 3, ue.Pos)
	assert.Equal(t, byte(0x06), ue.Opcode)
}

func TestPartitionBranchy(t *testing.T) {
	h, err := New(branchy)
	require.NoError(t, err)

	var sizes []int
	for _, b := range h.Blocks() {
		sizes = append(sizes, b.Len())
	}
	// jeq | add, call | ja | ldx, jne | mov, st
	assert.Equal(t, []int{2, 2, 1, 2, 2}, sizes)
	assert.False(t, h.Blocks()[4].EndsInBranch())
	checkInvariants(t, h)
}

func TestPartitionEndsOnBranch(t *testing.T) {
	h, err := New([]ebpf.Instruction{
		insn(ebpf.EXIT, 0, 0, 0, 0),
		insn(ebpf.EXIT, 0, 0, 0, 0),
	})
	require.NoError(t, err)
	require.Equal(t, 2, h.NumBlocks())
	for _, b := range h.Blocks() {
		assert.Equal(t, 1, b.Len())
		assert.True(t, b.EndsInBranch())
	}
}

func TestPartitionRandomPrograms(t *testing.T) {
	ops := ebpf.KnownOpcodes()
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := rng.Intn(40)
		insns := make([]ebpf.Instruction, n)
		for i := range insns {
			insns[i] = insn(ops[rng.Intn(len(ops))], uint8(rng.Intn(11)), uint8(rng.Intn(11)), int16(rng.Intn(64)-32), rng.Int31())
		}
		h, err := FromBytes(ebpf.Encode(insns))
		require.NoError(t, err)
		require.Equal(t, n, h.Len())
		checkInvariants(t, h)
	}
}

func TestWideLoad(t *testing.T) {
	insns := []ebpf.Instruction{
		insn(ebpf.LD_DW_IMM, 1, 0, 0, 0x55667788),
		insn(0, 0, 0, 0, 0x11223344),
		insn(ebpf.EXIT, 0, 0, 0, 0),
	}
	h, err := New(insns)
	require.NoError(t, err)
	require.Equal(t, 3, h.Len())
	require.Equal(t, 1, h.NumBlocks())

	lo, hi := h.Instructions()[0], h.Instructions()[1]
	assert.False(t, lo.IsWideHigh())
	assert.True(t, hi.IsWideHigh())
	assert.Equal(t, ebpf.KindLoadImmediateDoubleWord, hi.Class().Kind)

	v, ok := lo.Imm64()
	require.True(t, ok)
	assert.Equal(t, uint64(0x1122334455667788), v)
	_, ok = hi.Imm64()
	assert.False(t, ok)
}

func TestUnpairedWideLoad(t *testing.T) {
	h, err := New([]ebpf.Instruction{
		insn(ebpf.LD_DW_IMM, 1, 0, 0, 1),
		insn(ebpf.EXIT, 0, 0, 0, 0),
	})
	require.NoError(t, err)
	require.Equal(t, 1, h.NumBlocks())
	assert.Equal(t, 2, h.Blocks()[0].Len())

	lo := h.Instructions()[0]
	assert.False(t, lo.IsWideHigh())
	assert.Equal(t, ebpf.KindLoadImmediateDoubleWord, lo.Class().Kind)
	_, ok := lo.Imm64()
	assert.False(t, ok)
	checkInvariants(t, h)

	h, err = New([]ebpf.Instruction{insn(ebpf.LD_DW_IMM, 1, 0, 0, 1)})
	require.NoError(t, err)
	require.Equal(t, 1, h.NumBlocks())
	assert.False(t, h.Blocks()[0].EndsInBranch())

	// only the slot right after a lddw pairs with it
	_, err = New([]ebpf.Instruction{
		insn(ebpf.LD_DW_IMM, 1, 0, 0, 1), insn(0, 0, 0, 0, 0), insn(0, 0, 0, 0, 0),
	})
	var ue *ebpf.UnknownOpcodeError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 2, ue.Pos)

	_, err = New([]ebpf.Instruction{insn(0, 0, 0, 0, 0), insn(ebpf.EXIT, 0, 0, 0, 0)})
	assert.True(t, errors.Is(err, bpferrors.ErrUnknownOpcode))
}

func TestMetaInstructionAccessors(t *testing.T) {
	insns, err := ebpf.Decode(addProgram)
	require.NoError(t, err)
	h, err := New(insns)
	require.NoError(t, err)

	m := h.Instructions()[2]
	assert.Equal(t, 2, m.Pos())
	assert.Equal(t, insns[2], m.Insn())
	assert.Equal(t, int32(4), m.Insn().Imm)
	assert.Equal(t, ebpf.MustClassify(ebpf.ADD32_IMM), m.Class())

	// the returned values are copies
	got := m.Insn()
	got.Imm = 99
	assert.Equal(t, int32(4), m.Insn().Imm)
	assert.Equal(t, []int{0}, h.GetBasicBlockBoundaries())
}

func TestMetaInstructionsStartDetached(t *testing.T) {
	insns, err := ebpf.Decode(addProgram)
	require.NoError(t, err)
	metas, err := NewMetaInstructions(insns)
	require.NoError(t, err)
	require.Len(t, metas, 5)
	for i, m := range metas {
		assert.Equal(t, i, m.Pos())
		assert.Nil(t, m.Graph())
		assert.Equal(t, insns[i], m.Insn())
	}

	h, err := Attach(metas)
	require.NoError(t, err)
	for _, m := range metas {
		assert.Same(t, h, m.Graph())
	}
}

func TestReattachOverwritesBackReference(t *testing.T) {
	h1, err := New(branchy)
	require.NoError(t, err)
	metas := h1.Instructions()

	h2, err := Attach(metas)
	require.NoError(t, err)
	require.NotSame(t, h1, h2)

	for i, m := range metas {
		assert.Same(t, h2, m.Graph())
		// h1 still lists the same instructions
		assert.Same(t, m, h1.Instructions()[i])
		assert.True(t, h1.Contains(m))
	}
	assert.Equal(t, h1.NumBlocks(), h2.NumBlocks())
	runtime.KeepAlive(h1)
}

func TestAttachRejectsUnclassified(t *testing.T) {
	_, err := Attach([]*MetaInstruction{{insn: insn(0xff, 0, 0, 0, 0)}})
	assert.True(t, errors.Is(err, bpferrors.ErrUnknownOpcode))

	_, err = Attach([]*MetaInstruction{nil})
	assert.Error(t, err)
}

//go:noinline
func orphanInstruction(t *testing.T) *MetaInstruction {
	h, err := FromBytes(addProgram)
	require.NoError(t, err)
	m := h.Instructions()[2]
	require.NotNil(t, m.Graph())
	return m
}

func TestBackReferenceDoesNotKeepHolderAlive(t *testing.T) {
	m := orphanInstruction(t)
	for i := 0; i < 10 && m.Graph() != nil; i++ {
		runtime.GC()
	}
	assert.Nil(t, m.Graph())
	assert.Equal(t, 2, m.Pos())
}

func TestConcurrentGraphReaders(t *testing.T) {
	h, err := New(branchy)
	require.NoError(t, err)
	metas := h.Instructions()

	const rounds = 50
	holders := make([]*Holder, rounds)
	var wg sync.WaitGroup
	var failures sync.Map

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				m := metas[i%len(metas)]
				g := m.Graph()
				if g == nil || !g.Contains(m) {
					failures.Store(r, i)
					return
				}
			}
		}(r)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			nh, err := Attach(metas)
			if err != nil {
				failures.Store("attach", err)
				return
			}
			holders[i] = nh
		}
	}()
	wg.Wait()

	failures.Range(func(k, v interface{}) bool {
		t.Errorf("reader %v failed at %v", k, v)
		return true
	})
	assert.Same(t, holders[rounds-1], metas[0].Graph())
	runtime.KeepAlive(h)
	runtime.KeepAlive(holders)
}

func TestCloneAndEqual(t *testing.T) {
	h, err := FromBytes(addProgram)
	require.NoError(t, err)
	m := h.Instructions()[3]

	c := m.Clone()
	assert.NotSame(t, m, c)
	assert.True(t, m.Equal(c))
	assert.Same(t, h, c.Graph())
	assert.False(t, h.Contains(c))

	assert.False(t, m.Equal(h.Instructions()[2]))
	assert.False(t, m.Equal(nil))
	var nilMeta *MetaInstruction
	assert.True(t, nilMeta.Equal(nil))
}

func TestAccessors(t *testing.T) {
	h, err := New(branchy)
	require.NoError(t, err)

	_, ok := h.Instruction(-1)
	assert.False(t, ok)
	_, ok = h.Instruction(h.Len())
	assert.False(t, ok)
	m, ok := h.Instruction(5)
	require.True(t, ok)
	assert.Equal(t, 5, m.Pos())

	b, ok := h.BlockOf(m)
	require.True(t, ok)
	assert.Equal(t, 3, b.Index)
	assert.Same(t, m, b.First())

	_, ok = h.Block(h.NumBlocks())
	assert.False(t, ok)
	_, ok = h.BlockOf(&MetaInstruction{})
	assert.False(t, ok)

	assert.Contains(t, m.String(), "ldxdw")
	assert.Equal(t, "Holder{insns: 9, blocks: 5}", h.String())
}

func TestDigest(t *testing.T) {
	h1, err := FromBytes(addProgram)
	require.NoError(t, err)
	h2, err := FromBytes(addProgram)
	require.NoError(t, err)
	h3, err := New(branchy)
	require.NoError(t, err)

	assert.Equal(t, h1.Digest(), h2.Digest())
	assert.NotEqual(t, h1.Digest(), h3.Digest())
}
