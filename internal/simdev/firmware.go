package simdev

import (
	"encoding/binary"

	"github.com/moffa90/go-upsilon/platform"
)

// Firmware describes the headers of an installed Upsilon firmware.
type Firmware struct {
	// SlotInfoAddress is where the bootloader publishes the slot info
	SlotInfoAddress uint32

	KernelAddress   uint32
	UserlandAddress uint32

	StorageAddress uint32
	StorageSize    uint32

	Version        string
	Commit         string
	UpsilonVersion string
}

// DefaultFirmware boots slot A of an N0110 with a 1 KiB storage in RAM.
func DefaultFirmware() Firmware {
	return Firmware{
		SlotInfoAddress: platform.SlotInfoAddress,
		KernelAddress:   0x90000008,
		UserlandAddress: 0x90010000,
		StorageAddress:  0x20001000,
		StorageSize:     0x400,
		Version:         "2.0.0",
		Commit:          "f00ba47",
		UpsilonVersion:  "2.0.1",
	}
}

type words []byte

func (w words) be(v uint32) words { return binary.BigEndian.AppendUint32(w, v) }
func (w words) le(v uint32) words { return binary.LittleEndian.AppendUint32(w, v) }
func (w words) str(s string, n int) words {
	field := make([]byte, n)
	copy(field, s)
	return append(w, field...)
}

// LoadFirmware writes the slot info, kernel header and userland header of f.
func (d *Device) LoadFirmware(f Firmware) {
	d.Load(f.SlotInfoAddress, words(nil).
		be(platform.MagicSlotInfo).le(f.KernelAddress).le(f.UserlandAddress).be(platform.MagicSlotInfo))

	d.Load(f.KernelAddress, words(nil).
		be(platform.MagicEpsilon).str(f.Version, 8).str(f.Commit, 8).be(platform.MagicEpsilon))

	d.Load(f.UserlandAddress, words(nil).
		be(platform.MagicEpsilon).str(f.Version, 8).
		le(f.StorageAddress).le(f.StorageSize).
		le(0x90200000).le(0x90400000).le(0x20038000).le(0x20040000).
		be(platform.MagicEpsilon).
		be(0).
		be(platform.MarkerUpsilon).str(f.UpsilonVersion, 16).be(platform.OSTypeUpsilon).be(platform.MarkerUpsilon))
}
