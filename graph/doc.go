// Package graph wraps decoded instructions and partitions them into basic
// blocks.
//
// Construction happens in two phases: NewMetaInstructions classifies every
// instruction with an empty back-reference, then Attach builds the Holder and
// points each instruction back at it. The back-reference is a weak pointer
// kept in an atomic slot, so instructions never keep their Holder alive and
// readers racing with a re-attach see either the old or the new Holder.
//
// Branch targets are not resolved; blocks are split after every jump-class
// instruction and carry no successor edges.
package graph
