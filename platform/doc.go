// Package platform decodes the metadata firmwares leave in calculator memory.
//
// Calculators running the bootloader publish a slot info in RAM that points at
// the kernel and userland headers of the running slot. Older firmwares embed a
// single platform info block in internal flash instead. Custom firmwares append
// Omega and Upsilon blocks after the userland header.
//
// Magic values are compared big-endian; every other numeric field is
// little-endian, except the Upsilon OS type.
//
// Parsers never fail on foreign data. They return a Result that must be
// unpacked explicitly:
//
//	slot, ok := platform.ParseSlotInfo(buf).Get()
//	if !ok {
//	    // legacy firmware, read LegacyInfoAddress instead
//	}
package platform
