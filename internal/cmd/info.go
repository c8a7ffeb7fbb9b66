package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/model"
	"github.com/moffa90/go-upsilon/platform"
)

// Info prints the platform description of the connected calculator.
type Info struct {
	Device `embed:""`

	Format string `help:"Output format" enum:"yaml,json,toml" default:"yaml" short:"f"`
}

type infoReport struct {
	Serial   string        `yaml:"serial" json:"serial" toml:"serial"`
	Product  string        `yaml:"product" json:"product" toml:"product"`
	Model    model.Model   `yaml:"model" json:"model" toml:"model"`
	Platform platform.Info `yaml:"platform" json:"platform" toml:"platform"`
}

// Run is called by Kong when the info command is executed.
func (c *Info) Run(logger *slog.Logger) error {
	return c.session(logger, calculator.ModeCalculator, nil, func(ctx context.Context, calc *calculator.Calculator) error {
		return c.print(ctx, calc)
	})
}

func (c *Info) print(ctx context.Context, calc *calculator.Calculator) error {
	info, err := calc.PlatformInfo(ctx)
	if err != nil {
		return fmt.Errorf("read platform info: %w", err)
	}

	dev := calc.Info()
	data, err := marshal(c.Format, infoReport{
		Serial:   dev.Serial,
		Product:  dev.ProductName,
		Model:    calc.Model(false),
		Platform: info,
	})
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// Model prints the model of the connected calculator.
type Model struct {
	Device `embed:""`

	Recovery      bool `help:"Look for a calculator in recovery mode"`
	ExcludeModded bool `help:"Report only factory models"`
}

// Run is called by Kong when the model command is executed.
func (c *Model) Run(logger *slog.Logger) error {
	mode := calculator.ModeCalculator
	if c.Recovery {
		mode = calculator.ModeRecovery
	}
	return c.session(logger, mode, nil, func(_ context.Context, calc *calculator.Calculator) error {
		_, err := fmt.Fprintln(stdout, calc.Model(c.ExcludeModded))
		return err
	})
}
