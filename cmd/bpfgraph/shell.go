package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/colorfulnotion/bpfgraph/report"
	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  insn <n>     show instruction n and the block it belongs to
  block <n>    list the instructions of block n
  blocks       print the block tree
  stats        print instruction statistics
  help         show this text
  exit         leave the shell
`

var errQuit = errors.New("quit")

// session evaluates shell commands against one holder.
type session struct {
	h *graph.Holder
}

func (s *session) exec(line string, w io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "exit", "quit":
		return errQuit
	case "help":
		fmt.Fprint(w, shellHelp)
	case "blocks":
		fmt.Fprint(w, report.Tree(s.h).String())
	case "stats":
		st := s.h.Analyze()
		fmt.Fprintf(w, "instructions: %d blocks: %d branches: %d constants: %d\n",
			st.InstructionCount, st.BasicBlockCount, st.BranchCount, st.ConstantCount)
	case "insn":
		n, err := shellIndex(fields)
		if err != nil {
			return err
		}
		m, ok := s.h.Instruction(n)
		if !ok {
			return fmt.Errorf("no instruction %d", n)
		}
		fmt.Fprintln(w, m)
		// resolve through the instruction itself, not the session holder
		g := m.Graph()
		if g == nil {
			fmt.Fprintln(w, "  detached")
			return nil
		}
		if b, ok := g.BlockOf(m); ok {
			fmt.Fprintf(w, "  block %d [%d-%d]\n", b.Index, b.First().Pos(), b.Last().Pos())
		}
	case "block":
		n, err := shellIndex(fields)
		if err != nil {
			return err
		}
		b, ok := s.h.Block(n)
		if !ok {
			return fmt.Errorf("no block %d", n)
		}
		for _, m := range b.Insns {
			fmt.Fprintln(w, m)
		}
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

func shellIndex(fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("usage: %s <n>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", fields[1])
	}
	return n, nil
}

func newShellCmd(cfg func() Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <program>",
		Short: "Inspect a program interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHolder(args[0], cfg().Input)
			if err != nil {
				return err
			}
			return runShell(&session{h: h})
		},
	}
}

func runShell(s *session) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "bpf> ",
		HistoryFile: filepath.Join(os.TempDir(), "bpfgraph_history.txt"),
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("insn"),
			readline.PcItem("block"),
			readline.PcItem("blocks"),
			readline.PcItem("stats"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%s, type help for commands\n", s.h)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := s.exec(line, rl.Stdout()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(rl.Stderr(), errorMessage(err))
		}
	}
}
