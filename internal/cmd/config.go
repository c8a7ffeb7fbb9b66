package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/moffa90/go-upsilon/internal/configpaths"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file holding the default flag values.
type ConfigInit struct {
	Format string `help:"Output format" enum:"json,yaml,toml" default:"yaml"`
	Output string `help:"Destination file path (defaults to the user config directory)" type:"path"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

type logTemplate struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	File  string `json:"file" yaml:"file" toml:"file"`
}

// configTemplate mirrors the flag names the config loaders resolve.
type configTemplate struct {
	Log          logTemplate `json:"log" yaml:"log" toml:"log"`
	Serial       string      `json:"serial" yaml:"serial" toml:"serial"`
	Wait         bool        `json:"wait" yaml:"wait" toml:"wait"`
	WaitTimeout  string      `json:"wait_timeout" yaml:"wait_timeout" toml:"wait_timeout"`
	Timeout      string      `json:"timeout" yaml:"timeout" toml:"timeout"`
	TransferSize int         `json:"transfer_size" yaml:"transfer_size" toml:"transfer_size"`
}

func defaultTemplate() configTemplate {
	return configTemplate{
		Log:         logTemplate{Level: "info"},
		WaitTimeout: "0s",
		Timeout:     "5s",
	}
}

// Run generates the configuration template.
func (c *ConfigInit) Run(logger *slog.Logger) error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	dest := c.Output
	if dest == "" {
		var err error
		if dest, err = configpaths.DefaultConfigPath(format); err != nil {
			return err
		}
	}

	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}

	data, err := marshal(format, defaultTemplate())
	if err != nil {
		return err
	}
	if err := writeFile(dest, data, true); err != nil {
		return err
	}
	logger.Info("configuration written", "file", dest)
	return nil
}
