package model

import (
	"fmt"

	"github.com/moffa90/go-upsilon/dfuse"
)

// Model is a calculator hardware model name.
type Model string

const (
	N0100 Model = "0100"
	N0110 Model = "0110"
	N0115 Model = "0115"
	N0120 Model = "0120"

	// Modded variants, reported only when modded models are not excluded.
	N0110NoExternal Model = "0110-0M"
	N0110External16 Model = "0110-16M"
	N0100External8  Model = "0100-8M"
	N0100External16 Model = "0100-16M"

	Unknown Model = "????"
)

// Product names announced by the Upsilon firmwares.
const (
	ProductUpsilonBootloader = "Upsilon Bootloader"
	ProductUpsilonCalculator = "Upsilon Calculator"
)

// Flash address ranges, inclusive.
const (
	InternalFlashStart uint32 = 0x08000000
	InternalFlashEnd   uint32 = 0x080FFFFF
	ExternalFlashStart uint32 = 0x90000000
	ExternalFlashEnd   uint32 = 0x9FFFFFFF
)

const (
	mib = 0x100000

	// Epsilon 22 hides the first 192 KiB of external flash.
	externalEpsilon22 = 8*mib - 0x30000
)

// DeviceVersion is the USB device release number split into digits.
type DeviceVersion [3]uint8

// VersionFromBCD splits a bcdDevice value into major, minor and subminor.
func VersionFromBCD(bcd uint16) DeviceVersion {
	return DeviceVersion{uint8(bcd >> 8), uint8(bcd>>4) & 0x0F, uint8(bcd) & 0x0F}
}

func (v DeviceVersion) String() string {
	return fmt.Sprintf("%d%d%d", v[0], v[1], v[2])
}

// Input is what Classify looks at.
type Input struct {
	Segments    []dfuse.Segment
	ProductName string
	Version     DeviceVersion
}

// FlashSizes sums the sizes of the segments starting in internal and in
// external flash.
func FlashSizes(segments []dfuse.Segment) (internal, external uint32) {
	for _, s := range segments {
		if s.Start >= InternalFlashStart && s.Start <= InternalFlashEnd {
			internal += s.Size()
		}
		if s.Start >= ExternalFlashStart && s.Start <= ExternalFlashEnd {
			external += s.Size()
		}
	}
	return internal, external
}

// Classify guesses the model of a calculator in DFU mode.
//
// Upsilon product names and the N0110, N0115 and N0120 device versions are
// conclusive. Otherwise the flash geometry decides: 64 KiB internal flash
// means an N0110, 1 MiB an N0100, and the external flash size tells stock
// from modded units. With excludeModded, modded units report the stock model
// they derive from, or Unknown when there is none.
func Classify(in Input, excludeModded bool) Model {
	internal, external := FlashSizes(in.Segments)

	switch in.ProductName {
	case ProductUpsilonBootloader:
		return N0110
	case ProductUpsilonCalculator:
		if external != 0 {
			return N0110
		}
		return N0100
	}

	// N0110 firmwares may also report 100, so it is not matched here.
	switch in.Version.String() {
	case "120":
		return N0120
	case "115":
		return N0115
	case "110":
		return N0110
	}

	switch internal {
	case 0x10000, 0:
		switch external {
		case 0:
			return modded(N0110NoExternal, Unknown, excludeModded)
		case 8 * mib, externalEpsilon22:
			return N0110
		case 16 * mib:
			return modded(N0110External16, N0110, excludeModded)
		}
	case 1 * mib:
		switch external {
		case 0:
			return N0100
		case 8 * mib:
			return modded(N0100External8, N0100, excludeModded)
		case 16 * mib:
			return modded(N0100External16, N0100, excludeModded)
		}
	}
	return Unknown
}

// ClassifyRecovery guesses the model of a calculator in the STM32 recovery
// bootloader, which only exposes internal flash. Every STM32F73x bootloader
// advertises 512 KiB regardless of the actual flash size.
func ClassifyRecovery(segments []dfuse.Segment) Model {
	internal, _ := FlashSizes(segments)
	switch internal {
	case 0x80000:
		return N0110
	case 1 * mib:
		return N0100
	default:
		return Unknown
	}
}

func modded(m, stock Model, excludeModded bool) Model {
	if excludeModded {
		return stock
	}
	return m
}
