package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// Summary is the JSON view of a partitioned program.
type Summary struct {
	Digest       string         `json:"digest"`
	Instructions int            `json:"instructions"`
	Constants    int            `json:"constants"`
	Blocks       []BlockSummary `json:"blocks"`
	Kinds        map[string]int `json:"kinds"`
}

type BlockSummary struct {
	Index      int      `json:"index"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Terminator string   `json:"terminator,omitempty"`
	Ops        []string `json:"ops"`
}

func Summarize(h *graph.Holder) Summary {
	stats := h.Analyze()
	digest := h.Digest()
	s := Summary{
		Digest:       hex.EncodeToString(digest[:]),
		Instructions: stats.InstructionCount,
		Constants:    stats.ConstantCount,
		Blocks:       make([]BlockSummary, 0, h.NumBlocks()),
		Kinds:        make(map[string]int, len(stats.KindDistribution)),
	}
	for kind, n := range stats.KindDistribution {
		s.Kinds[kind.String()] = n
	}
	for _, b := range h.Blocks() {
		bs := BlockSummary{
			Index: b.Index,
			Start: b.First().Pos(),
			End:   b.Last().Pos(),
			Ops:   make([]string, 0, b.Len()),
		}
		if b.EndsInBranch() {
			bs.Terminator = ebpf.OpcodeName(b.Last().Insn().Opcode)
		}
		for _, m := range b.Insns {
			if m.IsWideHigh() {
				continue
			}
			bs.Ops = append(bs.Ops, m.Class().Name())
		}
		s.Blocks = append(s.Blocks, bs)
	}
	return s
}

func SummaryJSON(h *graph.Holder) ([]byte, error) {
	return json.MarshalIndent(Summarize(h), "", "  ")
}

// Diff compares the summaries of two programs. It returns an empty string
// and false when the layouts are identical.
func Diff(a, b *graph.Holder, coloring bool) (string, bool, error) {
	left, err := json.Marshal(Summarize(a))
	if err != nil {
		return "", false, err
	}
	right, err := json.Marshal(Summarize(b))
	if err != nil {
		return "", false, err
	}

	differ := gojsondiff.New()
	delta, err := differ.Compare(left, right)
	if err != nil {
		return "", false, fmt.Errorf("compare summaries: %w", err)
	}
	if !delta.Modified() {
		return "", false, nil
	}

	var leftObj map[string]interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", false, err
	}
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       coloring,
	}
	out, err := formatter.NewAsciiFormatter(leftObj, cfg).Format(delta)
	if err != nil {
		return "", false, fmt.Errorf("format diff: %w", err)
	}
	return out, true, nil
}
