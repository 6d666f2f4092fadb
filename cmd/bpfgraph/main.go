// bpfgraph decodes eBPF bytecode and prints its basic-block layout.
package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/bpfgraph/bpferrors"
	log "github.com/colorfulnotion/bpfgraph/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage prefixes errors from the decoder with their code, e.g.
// "Error [F1_Format]: ...".
func errorMessage(err error) string {
	if code := bpferrors.GetErrorCodeWithName(err); code != "" {
		return fmt.Sprintf("Error [%s]: %v", code, err)
	}
	return fmt.Sprintf("Error: %v", err)
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        Config
	)
	v := newViper()

	rootCmd := &cobra.Command{
		Use:           "bpfgraph",
		Short:         "Decode eBPF bytecode and partition it into basic blocks",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			var err error
			if cfg, err = loadConfig(v, configPath); err != nil {
				return err
			}
			return setupLogging(cmd, cfg)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default $BPFGRAPH_CONFIG or ~/.config/bpfgraph/config.toml)")
	pf.String("log-level", "warn", "log level: trace, debug, info, warn, error, crit")
	pf.String("log-format", "terminal", "log format: terminal, json, logfmt")
	pf.String("log-modules", "", "comma separated modules with debug output enabled, or \"all\"")
	pf.Bool("color", true, "colorize output")
	pf.StringP("format", "f", formatRaw, "input format: raw, hex, elf")
	pf.String("section", ".classifier", "ELF section holding the program")

	cfgFn := func() Config { return cfg }
	rootCmd.AddCommand(
		newBlocksCmd(cfgFn),
		newStatsCmd(cfgFn),
		newClassifyCmd(),
		newDiffCmd(cfgFn),
		newDumpCmd(cfgFn),
		newShellCmd(cfgFn),
	)
	return rootCmd
}

func setupLogging(cmd *cobra.Command, cfg Config) error {
	lvl, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	h, err := log.NewHandler(cmd.ErrOrStderr(), cfg.Log.Format, lvl, cfg.Output.Color)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(h))
	log.EnableModules(cfg.Log.Modules)
	log.Debug(log.CLIMonitoring, "logging configured", "level", log.LevelString(lvl), "modules", cfg.Log.Modules)
	return nil
}
