package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moffa90/go-upsilon/calculator"
)

// List prints the attached calculators.
type List struct{}

// Run is called by Kong when the list command is executed.
func (c *List) Run(logger *slog.Logger) error {
	finder, closeFinder := openFinder(logger)
	defer func() { _ = closeFinder() }()
	return list(context.Background(), finder)
}

func list(ctx context.Context, finder calculator.Finder) error {
	modes := []struct {
		mode  calculator.Mode
		match calculator.Match
	}{
		{calculator.ModeCalculator, calculator.CalculatorMatch("")},
		{calculator.ModeRecovery, calculator.RecoveryMatch("")},
	}

	found := 0
	for _, m := range modes {
		transports, err := finder.Find(ctx, m.match)
		if err != nil {
			return err
		}
		for _, t := range transports {
			info := t.Info()
			fmt.Fprintf(stdout, "%04x:%04x\t%s\t%s\t%s\n", info.VendorID, info.ProductID, m.mode, info.Serial, info.ProductName)
			_ = t.Close()
			found++
		}
	}
	if found == 0 {
		return ErrNoCalculator
	}
	return nil
}
