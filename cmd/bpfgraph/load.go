package main

import (
	"bufio"
	"bytes"
	"debug/elf"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/colorfulnotion/bpfgraph/log"
)

const (
	formatRaw = "raw"
	formatHex = "hex"
	formatELF = "elf"
)

// readProgram returns the bytecode stored in path.
//
//	raw: the file is the bytecode
//	hex: hex digits, whitespace ignored, '#' starts a comment
//	elf: the bytes of the named section of an object file
func readProgram(path string, in InputConfig) ([]byte, error) {
	switch in.Format {
	case "", formatRaw:
		return os.ReadFile(path)
	case formatHex:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parseHex(data)
	case formatELF:
		return readELFSection(path, in.Section)
	default:
		return nil, fmt.Errorf("unknown input format %q", in.Format)
	}
}

func parseHex(data []byte) ([]byte, error) {
	var digits strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, f := range strings.Fields(line) {
			digits.WriteString(strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X"))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	prog, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("parse hex: %w", err)
	}
	return prog, nil
}

func readELFSection(path, section string) ([]byte, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := f.Section(section)
	if s == nil {
		return nil, fmt.Errorf("%s: no section %q", path, section)
	}
	return s.Data()
}

func loadHolder(path string, in InputConfig) (*graph.Holder, error) {
	prog, err := readProgram(path, in)
	if err != nil {
		return nil, err
	}
	h, err := graph.FromBytes(prog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CLIMonitoring, "loaded program", "path", path, "bytes", len(prog), "insns", h.Len(), "blocks", h.NumBlocks())
	return h, nil
}
