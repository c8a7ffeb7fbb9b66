package calculator

import (
	"context"
	"fmt"
	"sort"

	"github.com/moffa90/go-upsilon/dfufile"
	"github.com/moffa90/go-upsilon/model"
)

// FlashInternal writes image to internal flash.
func (c *Calculator) FlashInternal(ctx context.Context, image []byte) error {
	if err := c.requireMode("internal flash", ModeCalculator); err != nil {
		return err
	}
	if err := c.write(ctx, InternalFlashAddress, image, true); err != nil {
		return fmt.Errorf("flash internal: %w", err)
	}
	return nil
}

// FlashExternal writes image to external flash.
func (c *Calculator) FlashExternal(ctx context.Context, image []byte) error {
	if err := c.requireMode("external flash", ModeCalculator); err != nil {
		return err
	}
	if err := c.write(ctx, ExternalFlashAddress, image, false); err != nil {
		return fmt.Errorf("flash external: %w", err)
	}
	return nil
}

// FlashRecovery loads a recovery image into RAM through the STM32 bootloader,
// which then jumps to it.
func (c *Calculator) FlashRecovery(ctx context.Context, image []byte) error {
	if err := c.requireMode("recovery flash", ModeRecovery); err != nil {
		return err
	}

	// The STM32F73x bootloader starts in dfuERROR.
	if err := c.base.ClearStatus(ctx); err != nil {
		return fmt.Errorf("flash recovery: %w", err)
	}
	if err := c.write(ctx, RecoveryAddress, image, true); err != nil {
		return fmt.Errorf("flash recovery: %w", err)
	}
	return nil
}

// FlashFile writes every element of a DfuSe file. Elements outside internal
// flash go first; the last internal flash element is manifested so the
// calculator restarts on the new firmware.
func (c *Calculator) FlashFile(ctx context.Context, f *dfufile.File) error {
	if err := c.requireMode("file flash", ModeCalculator); err != nil {
		return err
	}

	info := c.Info()
	if !f.Suffix.Matches(info.VendorID, info.ProductID) {
		return &FileMismatchError{
			VendorID:  f.Suffix.VendorID,
			ProductID: f.Suffix.ProductID,
		}
	}

	elements := f.Elements()
	sort.SliceStable(elements, func(i, j int) bool {
		return !isInternal(elements[i].Address) && isInternal(elements[j].Address)
	})

	for i, e := range elements {
		last := i == len(elements)-1
		c.config.Logger.Info("flashing element",
			"address", fmt.Sprintf("0x%08X", e.Address),
			"bytes", len(e.Data),
		)
		if err := c.write(ctx, e.Address, e.Data, last && isInternal(e.Address)); err != nil {
			return fmt.Errorf("flash element at 0x%08X: %w", e.Address, err)
		}
	}
	return nil
}

func isInternal(addr uint32) bool {
	return addr >= model.InternalFlashStart && addr <= model.InternalFlashEnd
}
