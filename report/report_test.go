package report

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHolder(t *testing.T, insns ...ebpf.Instruction) *graph.Holder {
	t.Helper()
	h, err := graph.New(insns)
	require.NoError(t, err)
	return h
}

func sample(t *testing.T) *graph.Holder {
	return mustHolder(t,
		ebpf.Instruction{Opcode: ebpf.MOV32_IMM, Imm: 1},
		ebpf.Instruction{Opcode: ebpf.JEQ_IMM, Dst: 0, Offset: 1, Imm: 1},
		ebpf.Instruction{Opcode: ebpf.ADD32_REG, Dst: 0, Src: 1},
		ebpf.Instruction{Opcode: ebpf.EXIT},
		ebpf.Instruction{Opcode: ebpf.MOV64_REG, Dst: 0, Src: 1},
	)
}

func TestSummaryJSON(t *testing.T) {
	h := sample(t)
	got, err := SummaryJSON(h)
	require.NoError(t, err)

	digest := h.Digest()
	want := fmt.Sprintf(`{
		"digest": %q,
		"instructions": 5,
		"constants": 1,
		"blocks": [
			{"index": 0, "start": 0, "end": 1, "terminator": "jeq", "ops": ["mov32", "jeq"]},
			{"index": 1, "start": 2, "end": 3, "terminator": "exit", "ops": ["add32", "exit"]},
			{"index": 2, "start": 4, "end": 4, "ops": ["mov64"]}
		],
		"kinds": {"Arithmetic32": 2, "Arithmetic64": 1, "Branch": 1, "Exit": 1}
	}`, hex.EncodeToString(digest[:]))

	opts := jsondiff.DefaultConsoleOptions()
	diff, desc := jsondiff.Compare([]byte(want), got, &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, desc)
}

func TestSummaryEmpty(t *testing.T) {
	h := mustHolder(t)
	s := Summarize(h)
	assert.Equal(t, 0, s.Instructions)
	assert.Empty(t, s.Blocks)
	assert.Empty(t, s.Kinds)
}

func TestTree(t *testing.T) {
	out := Tree(sample(t)).String()
	assert.Contains(t, out, "(5 insns, 3 blocks)")
	assert.Contains(t, out, "block 0 [0-1]")
	assert.Contains(t, out, "block 1 [2-3]")
	assert.Contains(t, out, "block 2 [4-4] (falls off end)")
	assert.Equal(t, 1, strings.Count(out, "exit"))
}

func TestDiff(t *testing.T) {
	a := sample(t)
	b := sample(t)
	out, changed, err := Diff(a, b, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, out)

	c := mustHolder(t,
		ebpf.Instruction{Opcode: ebpf.MOV32_IMM, Imm: 1},
		ebpf.Instruction{Opcode: ebpf.EXIT},
	)
	out, changed, err = Diff(a, c, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, out, "instructions")
}

func TestWriteKindChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteKindChart(&buf, sample(t).Analyze(), "sample"))
	html := buf.String()
	assert.Contains(t, html, "Arithmetic32")
	assert.Contains(t, html, "Exit")
	assert.NotContains(t, html, "TailCall")
}
