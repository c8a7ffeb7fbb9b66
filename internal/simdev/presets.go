package simdev

import "github.com/moffa90/go-upsilon/protocol"

// USB identifiers of the simulated calculators.
const (
	VendorID          = 0x0483
	CalculatorProduct = 0xA291
	RecoveryProduct   = 0xDF11
)

// Memory descriptors exposed by the presets.
const (
	N0110Descriptor    = "@Flash/0x08000000/04*016Kg/0x90000000/08*004Kg,01*032Kg,127*064Kg"
	N0100Descriptor    = "@Flash/0x08000000/04*016Kg,01*064Kg,07*128Kg"
	RecoveryDescriptor = "@Internal Flash  /0x08000000/04*016Kg,01*064Kg,03*128Kg"
	RecoveryRAM        = "@SRAM /0x20000000/256*001Kg"
)

func calculatorConfig(serial string, alternates ...string) Config {
	return Config{
		VendorID:      VendorID,
		ProductID:     CalculatorProduct,
		BCDDevice:     0x0100,
		Manufacturer:  "NumWorks",
		Product:       "NumWorks Calculator",
		Serial:        serial,
		Alternates:    alternates,
		Attributes:    protocol.AttrCanDownload | protocol.AttrCanUpload | protocol.AttrWillDetach,
		TransferSize:  2048,
		DetachTimeout: 1000,
		DFUVersion:    protocol.VersionDfuSe,
		DfuSe:         true,
	}
}

func ram() Region {
	return Region{Start: 0x20000000, Size: 0x40000, SectorSize: 1024, Writable: true}
}

// N0110 returns a calculator with 64 KiB of exposed internal flash and 8 MiB of external flash.
func N0110(serial string) *Device {
	return New(calculatorConfig(serial, N0110Descriptor),
		Region{Start: 0x08000000, Size: 0x10000, SectorSize: 0x4000, Erasable: true, Writable: true},
		Region{Start: 0x90000000, Size: 0x800000, SectorSize: 0x10000, Erasable: true, Writable: true},
		ram(),
	)
}

// N0100 returns a calculator with 1 MiB of internal flash and no external flash.
func N0100(serial string) *Device {
	return New(calculatorConfig(serial, N0100Descriptor),
		Region{Start: 0x08000000, Size: 0x100000, SectorSize: 0x20000, Erasable: true, Writable: true},
		ram(),
	)
}

// Recovery returns an STM32 system bootloader with 512 KiB of internal flash.
func Recovery(serial string) *Device {
	cfg := calculatorConfig(serial, RecoveryDescriptor, RecoveryRAM)
	cfg.ProductID = RecoveryProduct
	cfg.Manufacturer = "STMicroelectronics"
	cfg.Product = "STM32  BOOTLOADER"
	cfg.BCDDevice = 0x2200

	return New(cfg,
		Region{Start: 0x08000000, Size: 0x80000, SectorSize: 0x4000, Erasable: true, Writable: true},
		ram(),
	)
}
