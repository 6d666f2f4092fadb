package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/colorfulnotion/bpfgraph/report"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func newBlocksCmd(cfg func() Config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "blocks <program>",
		Short: "Print the basic blocks of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHolder(args[0], cfg().Input)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := report.SummaryJSON(h)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprint(out, report.Tree(h).String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the block summary as JSON")
	return cmd
}

func newStatsCmd(cfg func() Config) *cobra.Command {
	var chartPath string
	cmd := &cobra.Command{
		Use:   "stats <program>",
		Short: "Print instruction statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHolder(args[0], cfg().Input)
			if err != nil {
				return err
			}
			stats := h.Analyze()
			writeStats(cmd, stats)

			if chartPath == "" {
				return nil
			}
			f, err := os.Create(chartPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.WriteKindChart(f, stats, args[0]); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", chartPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML chart of the kind distribution to this file")
	return cmd
}

func writeStats(cmd *cobra.Command, stats *graph.ProgramStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "instructions: %d\n", stats.InstructionCount)
	fmt.Fprintf(out, "blocks:       %d\n", stats.BasicBlockCount)
	fmt.Fprintf(out, "branches:     %d\n", stats.BranchCount)
	fmt.Fprintf(out, "constants:    %d\n", stats.ConstantCount)
	fmt.Fprintf(out, "wide loads:   %d\n", stats.WideLoadCount)

	ops := make([]byte, 0, len(stats.OpcodeDistribution))
	for op := range stats.OpcodeDistribution {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	fmt.Fprintln(out, "opcodes:")
	for _, op := range ops {
		fmt.Fprintf(out, "  %#04x %-12s %d\n", op, ebpf.OpcodeName(op), stats.OpcodeDistribution[op])
	}
}

func parseOpcode(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid opcode %q: %w", s, err)
	}
	return byte(v), nil
}

func describeClass(c ebpf.Class) string {
	var flags []string
	for _, p := range []struct {
		name string
		ok   bool
	}{
		{"branch", c.IsBranch()},
		{"alu", c.IsALU()},
		{"load", c.IsLoad()},
		{"store", c.IsStore()},
		{"const", c.IsConst()},
		{"imm", c.IsImmediateSource()},
	} {
		if p.ok {
			flags = append(flags, p.name)
		}
	}
	if w, ok := c.Width(); ok {
		flags = append(flags, w.String())
	}
	return fmt.Sprintf("%#04x %-12s %-28s %s", c.Opcode, c.Name(), c.String(), strings.Join(flags, ","))
}

func newClassifyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "classify [opcode...]",
		Short: "Classify opcode bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				for _, op := range ebpf.KnownOpcodes() {
					fmt.Fprintln(out, describeClass(ebpf.MustClassify(op)))
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no opcodes given")
			}
			for _, a := range args {
				op, err := parseOpcode(a)
				if err != nil {
					return err
				}
				c, err := ebpf.Classify(op)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, describeClass(c))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every known opcode")
	return cmd
}

func newDiffCmd(cfg func() Config) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare the block layout of two programs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			a, err := loadHolder(args[0], c.Input)
			if err != nil {
				return err
			}
			b, err := loadHolder(args[1], c.Input)
			if err != nil {
				return err
			}
			d, changed, err := report.Diff(a, b, c.Output.Color)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "identical")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newDumpCmd(cfg func() Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <program>",
		Short: "Dump per-instruction details and statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHolder(args[0], cfg().Input)
			if err != nil {
				return err
			}
			sc := spew.ConfigState{Indent: "  ", SortKeys: true}
			sc.Fdump(cmd.OutOrStdout(), h.GetInstructionDetails(), h.Analyze())
			return nil
		},
	}
}
