// Package calculator drives NumWorks calculators over DFU.
//
// Connect opens a device, reads its DFU properties and upgrades it to DfuSe
// when supported. The resulting Calculator reads the firmware platform info,
// backs up and restores the record storage, flashes internal and external
// flash, and in recovery mode loads an image into RAM through the STM32
// bootloader:
//
//	calc, err := calculator.Connect(ctx, transport)
//	if err != nil {
//	    return err
//	}
//	defer calc.Close()
//
//	info, err := calc.PlatformInfo(ctx)
//	s, err := calc.BackupStorage(ctx)
//
// A Watcher polls a Finder for a matching device and connects to the first
// one that appears.
package calculator
