package calculator

import (
	"context"
	"fmt"

	"github.com/moffa90/go-upsilon/model"
	"github.com/moffa90/go-upsilon/platform"
)

// PlatformInfo reads the metadata of the running firmware.
//
// The slot info published in RAM by the bootloader is tried first and, when
// present, its kernel and userland headers are read. Otherwise the legacy
// platform info in internal flash is used.
func (c *Calculator) PlatformInfo(ctx context.Context) (platform.Info, error) {
	if err := c.requireMode("platform info", ModeCalculator); err != nil {
		return platform.Info{}, err
	}

	slotAddr := platform.SlotInfoAddress
	if c.Model(true) == model.N0120 {
		slotAddr = platform.SlotInfoAddressN0120
	}

	buf, err := c.read(ctx, slotAddr, platform.SlotInfoSize)
	if err != nil {
		return platform.Info{}, fmt.Errorf("read slot info: %w", err)
	}

	slot, ok := platform.ParseSlotInfo(buf).Get()
	if !ok {
		c.config.Logger.Debug("no slot info, reading legacy platform info")
		buf, err = c.read(ctx, platform.LegacyInfoAddress, platform.LegacyPlatformInfoSize)
		if err != nil {
			return platform.Info{}, fmt.Errorf("read legacy platform info: %w", err)
		}
		info := platform.FromLegacy(platform.ParseLegacyPlatformInfo(buf))
		if !info.Recognized {
			c.config.Logger.Warn("no platform info magic")
		}
		return info, nil
	}

	if !slot.Sealed {
		c.config.Logger.Warn("slot info end magic missing")
	}
	if slot.Name == platform.SlotUnknown {
		c.config.Logger.Warn("kernel header is not at a known slot", "address", fmt.Sprintf("0x%08X", slot.KernelHeader))
	}

	buf, err = c.read(ctx, slot.UserlandHeader, platform.UserlandHeaderSize)
	if err != nil {
		return platform.Info{}, fmt.Errorf("read userland header: %w", err)
	}
	userland := platform.ParseUserlandHeader(buf)
	if u, ok := userland.Get(); !ok {
		c.config.Logger.Warn("no userland magic")
	} else if !u.Sealed {
		c.config.Logger.Warn("userland header end magic missing")
	}

	buf, err = c.read(ctx, slot.KernelHeader, platform.KernelHeaderSize)
	if err != nil {
		return platform.Info{}, fmt.Errorf("read kernel header: %w", err)
	}
	kernel := platform.ParseKernelHeader(buf)
	if k, ok := kernel.Get(); !ok {
		c.config.Logger.Warn("no kernel magic")
	} else if !k.Sealed {
		c.config.Logger.Warn("kernel header end magic missing")
	}

	return platform.FromSlot(slot, userland, kernel), nil
}
