package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/dfufile"
)

// Flash groups the firmware flashing subcommands.
type Flash struct {
	Internal FlashInternal `cmd:"" help:"Write an image to internal flash"`
	External FlashExternal `cmd:"" help:"Write an image to external flash"`
	Recovery FlashRecovery `cmd:"" help:"Upload a recovery image to RAM and run it"`
	Dfu      FlashDfu      `cmd:"" name:"dfu" help:"Write every element of a DfuSe file"`
}

// FlashInternal writes an internal flash image.
type FlashInternal struct {
	Device `embed:""`

	Image string `arg:"" help:"Firmware image" type:"existingfile"`
}

// Run is called by Kong when the flash internal command is executed.
func (c *FlashInternal) Run(logger *slog.Logger) error {
	return flashImage(&c.Device, logger, calculator.ModeCalculator, c.Image, (*calculator.Calculator).FlashInternal)
}

// FlashExternal writes an external flash image.
type FlashExternal struct {
	Device `embed:""`

	Image string `arg:"" help:"Firmware image" type:"existingfile"`
}

// Run is called by Kong when the flash external command is executed.
func (c *FlashExternal) Run(logger *slog.Logger) error {
	return flashImage(&c.Device, logger, calculator.ModeCalculator, c.Image, (*calculator.Calculator).FlashExternal)
}

// FlashRecovery uploads a recovery image to a calculator in recovery mode.
type FlashRecovery struct {
	Device `embed:""`

	Image string `arg:"" help:"Recovery image" type:"existingfile"`
}

// Run is called by Kong when the flash recovery command is executed.
func (c *FlashRecovery) Run(logger *slog.Logger) error {
	return flashImage(&c.Device, logger, calculator.ModeRecovery, c.Image, (*calculator.Calculator).FlashRecovery)
}

// FlashDfu writes a DfuSe file.
type FlashDfu struct {
	Device `embed:""`

	File string `arg:"" help:"DfuSe file" type:"existingfile"`
}

// Run is called by Kong when the flash dfu command is executed.
func (c *FlashDfu) Run(logger *slog.Logger) error {
	f, err := dfufile.Parse(c.File)
	if err != nil {
		return err
	}
	logger.Info("parsed DfuSe file", "file", c.File, "targets", len(f.Targets), "bytes", f.Size())

	return c.session(logger, calculator.ModeCalculator, newProgress(stdout, isTerminal()), func(ctx context.Context, calc *calculator.Calculator) error {
		return calc.FlashFile(ctx, f)
	})
}

type flashFunc func(*calculator.Calculator, context.Context, []byte) error

func flashImage(d *Device, logger *slog.Logger, mode calculator.Mode, path string, flash flashFunc) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	return d.session(logger, mode, newProgress(stdout, isTerminal()), func(ctx context.Context, calc *calculator.Calculator) error {
		logger.Info("flashing", "file", path, "bytes", len(image), "model", calc.Model(false))
		if err := flash(calc, ctx, image); err != nil {
			return fmt.Errorf("flash %s: %w", path, err)
		}
		logger.Info("flash complete", "file", path)
		return nil
	})
}
