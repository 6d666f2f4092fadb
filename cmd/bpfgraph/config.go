package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds bpfgraph configuration.
type Config struct {
	Log    LogConfig
	Output OutputConfig
	Input  InputConfig
}

// LogConfig selects level, output format and the modules whose debug output is shown.
type LogConfig struct {
	Level   string
	Format  string
	Modules string
}

type OutputConfig struct {
	Color bool
}

// InputConfig describes how program files are read.
type InputConfig struct {
	Format  string
	Section string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "terminal")
	v.SetDefault("log.modules", "")
	v.SetDefault("output.color", true)
	v.SetDefault("input.format", "raw")
	v.SetDefault("input.section", ".classifier")

	v.SetConfigType("toml")
	v.SetEnvPrefix("BPFGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// bindFlags maps persistent command line flags onto config keys. Flags win
// over env vars, which win over the config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, flag := range map[string]string{
		"log.level":     "log-level",
		"log.format":    "log-format",
		"log.modules":   "log-modules",
		"output.color":  "color",
		"input.format":  "format",
		"input.section": "section",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig reads the config file named by path, BPFGRAPH_CONFIG or
// ~/.config/bpfgraph/config.toml, in that order. A missing default file is not an error.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path == "" {
		path = os.Getenv("BPFGRAPH_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "bpfgraph"))
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
