package report

import (
	"encoding/hex"
	"fmt"

	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/xlab/treeprint"
)

// Tree renders the block partition of h, one branch per block.
func Tree(h *graph.Holder) treeprint.Tree {
	digest := h.Digest()
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("program %s (%d insns, %d blocks)",
		hex.EncodeToString(digest[:4]), h.Len(), h.NumBlocks()))

	for _, b := range h.Blocks() {
		branch := tree.AddBranch(blockLabel(b))
		for _, m := range b.Insns {
			branch.AddNode(m.String())
		}
	}
	return tree
}

func blockLabel(b graph.Block) string {
	label := fmt.Sprintf("block %d [%d-%d]", b.Index, b.First().Pos(), b.Last().Pos())
	if !b.EndsInBranch() {
		label += " (falls off end)"
	}
	return label
}
