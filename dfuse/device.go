package dfuse

import (
	"context"
	"fmt"

	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/protocol"
	"github.com/moffa90/go-upsilon/usbdesc"
)

// Supported reports whether a device announcing these properties on this
// alternate setting speaks DfuSe.
func Supported(props *usbdesc.FunctionalDescriptor, setting usbdesc.InterfaceSetting) bool {
	if props == nil || setting.Protocol != protocol.ProtocolDFUMode {
		return false
	}
	return props.DFUVersion == protocol.VersionDfuSe || props.DFUVersion == protocol.VersionDFU10
}

// Device extends a DFU device with addressed erase, download and upload.
type Device struct {
	*dfu.Device

	memory       *MemoryMap
	startAddress uint32
	startSet     bool
}

// New wraps dev, parsing the memory map from its interface name.
func New(dev *dfu.Device) (*Device, error) {
	memory, err := ParseMemoryDescriptor(dev.Setting().Name)
	if err != nil {
		return nil, err
	}
	return &Device{Device: dev, memory: memory}, nil
}

// Memory returns the device memory map. Callers may prepend segments before first use.
func (d *Device) Memory() *MemoryMap { return d.memory }

// SetStartAddress sets the address used by DownloadAll and UploadAll.
func (d *Device) SetStartAddress(addr uint32) {
	d.startAddress = addr
	d.startSet = true
}

// StartAddress returns the session start address. When none was set it is the
// start of the first segment.
func (d *Device) StartAddress() uint32 {
	if d.startSet {
		return d.startAddress
	}
	if len(d.memory.Segments) == 0 {
		return 0
	}
	return d.memory.Segments[0].Start
}

func (d *Device) resolveStart() uint32 {
	addr := d.StartAddress()
	if !d.startSet {
		d.Logger().Warn("using inferred start address", "address", fmt.Sprintf("0x%08X", addr))
	} else if _, ok := d.memory.Segment(addr); !ok {
		d.Logger().Error("start address outside of memory map bounds", "address", fmt.Sprintf("0x%08X", addr))
	}
	return addr
}

// Command sends a DfuSe command in a block-0 DNLOAD and waits for the device to finish it.
func (d *Device) Command(ctx context.Context, command uint8, param uint32, paramLen int) error {
	payload, err := protocol.BuildDfuseCommand(command, param, paramLen)
	if err != nil {
		return err
	}

	if _, err := d.Download(ctx, payload, 0); err != nil {
		return fmt.Errorf("DfuSe command %s: %w", protocol.DfuseCommandName(command), err)
	}

	status, err := d.PollUntil(ctx, func(s protocol.State) bool { return s != protocol.DfuDownloadBusy })
	if err != nil {
		return fmt.Errorf("DfuSe command %s: %w", protocol.DfuseCommandName(command), err)
	}
	if !status.OK() {
		return &CommandError{Command: command, Param: param, Status: status}
	}
	return nil
}

// SetAddress moves the device address pointer.
func (d *Device) SetAddress(ctx context.Context, addr uint32) error {
	return d.Command(ctx, protocol.DfuseSetAddress, addr, 4)
}

// EraseSector erases the sector containing addr.
func (d *Device) EraseSector(ctx context.Context, addr uint32) error {
	return d.Command(ctx, protocol.DfuseEraseSector, addr, 4)
}

// GetCommands reads the list of supported commands with an UPLOAD of block 0.
func (d *Device) GetCommands(ctx context.Context) ([]uint8, error) {
	if err := d.AbortToIdle(ctx); err != nil {
		return nil, err
	}
	cmds, err := d.Upload(ctx, 16, 0)
	if err != nil {
		return nil, fmt.Errorf("DfuSe command %s: %w", protocol.DfuseCommandName(protocol.DfuseGetCommands), err)
	}
	return cmds, nil
}

// Erase erases every sector overlapping [start, start+length).
// Sectors of non-erasable segments are skipped but still counted as progress.
func (d *Device) Erase(ctx context.Context, start uint32, length int) error {
	if length <= 0 {
		return nil
	}

	seg, ok := d.memory.Segment(start)
	if !ok {
		return &UnmappedAddressError{Address: start}
	}
	addr := sectorStart(seg, start)

	last := uint64(start) + uint64(length) - 1
	if last > 0xFFFFFFFF {
		return &UnmappedAddressError{Address: 0xFFFFFFFF}
	}
	endAddr, err := d.memory.SectorEnd(uint32(last))
	if err != nil {
		return err
	}

	total := int(endAddr - addr)
	erased := 0
	d.ReportProgress(dfu.PhaseErase, erased, total)

	for addr < endAddr {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if seg.End <= addr {
			if seg, ok = d.memory.Segment(addr); !ok {
				return &UnmappedAddressError{Address: addr}
			}
		}

		if !seg.Erasable {
			erased += int(seg.End - addr)
			if erased > total {
				erased = total
			}
			addr = seg.End
			d.ReportProgress(dfu.PhaseErase, erased, total)
			continue
		}

		sector := sectorStart(seg, addr)
		d.Logger().Debug("erasing sector", "address", fmt.Sprintf("0x%08X", sector), "size", seg.SectorSize)
		if err := d.EraseSector(ctx, sector); err != nil {
			return fmt.Errorf("erase sector 0x%08X: %w", sector, err)
		}

		addr = sector + seg.SectorSize
		erased += int(seg.SectorSize)
		d.ReportProgress(dfu.PhaseErase, erased, total)
	}

	return nil
}

// DownloadAll erases the target range then writes data from the start address,
// setting the address before every block and sending each as block 2.
//
// A manifestation-tolerant device is then pointed back at the start address and
// sent an empty block 2. Whether it reaches dfuMANIFEST is only logged.
func (d *Device) DownloadAll(ctx context.Context, chunkSize int, data []byte, manifestationTolerant bool) error {
	if chunkSize <= 0 || chunkSize > 0xFFFF {
		return fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	start := d.resolveStart()

	d.Logger().Info("erasing DFU device memory", "address", fmt.Sprintf("0x%08X", start), "bytes", len(data))
	if err := d.Erase(ctx, start, len(data)); err != nil {
		return err
	}

	d.Logger().Info("copying data to DFU device")
	d.ReportProgress(dfu.PhaseDownload, 0, len(data))

	addr := start
	sent := 0
	for sent < len(data) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		n := chunkSize
		if len(data)-sent < n {
			n = len(data) - sent
		}

		if err := d.SetAddress(ctx, addr); err != nil {
			return fmt.Errorf("DfuSe download: %w", err)
		}
		written, err := d.Download(ctx, data[sent:sent+n], protocol.DfuseFirstDataBlock)
		if err != nil {
			return fmt.Errorf("DfuSe download: %w", err)
		}
		status, err := d.PollUntilIdle(ctx, protocol.DfuDownloadIdle)
		if err != nil {
			return fmt.Errorf("DfuSe download: %w", err)
		}
		if !status.OK() {
			return &dfu.DownloadError{Offset: sent, Status: status}
		}

		addr += uint32(n)
		sent += written
		d.ReportProgress(dfu.PhaseDownload, sent, len(data))
	}

	d.Logger().Info("download complete", "bytes", sent)

	if !manifestationTolerant {
		return nil
	}

	d.Logger().Info("manifesting new firmware")
	d.ReportProgress(dfu.PhaseManifest, 0, 0)
	if err := d.SetAddress(ctx, start); err != nil {
		return fmt.Errorf("DfuSe manifestation: %w", err)
	}
	if _, err := d.Download(ctx, nil, protocol.DfuseFirstDataBlock); err != nil {
		return fmt.Errorf("DfuSe manifestation: %w", err)
	}
	if _, err := d.PollUntilIdle(ctx, protocol.DfuManifest); err != nil {
		d.Logger().Error("DfuSe manifestation", "error", err)
	}

	d.ReportProgress(dfu.PhaseComplete, sent, len(data))
	return nil
}

// UploadAll reads up to maxSize bytes from the start address; a negative
// maxSize reads until the device returns a short block.
//
// The device derives each block address from its own wTransferSize, so a
// chunkSize that differs from it is replaced by it.
func (d *Device) UploadAll(ctx context.Context, chunkSize, maxSize int) ([]byte, error) {
	start := d.resolveStart()
	if size := d.blockSize(); size > 0 && chunkSize != size {
		d.Logger().Warn("upload block size must match wTransferSize", "requested", chunkSize, "using", size)
		chunkSize = size
	}
	d.Logger().Info("reading DFU device memory", "address", fmt.Sprintf("0x%08X", start), "max_bytes", maxSize)

	state, err := d.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if state != protocol.DfuIdle {
		if err := d.AbortToIdle(ctx); err != nil {
			return nil, err
		}
	}

	if err := d.SetAddress(ctx, start); err != nil {
		return nil, err
	}
	if err := d.AbortToIdle(ctx); err != nil {
		return nil, err
	}

	return d.Device.UploadAll(ctx, chunkSize, maxSize, protocol.DfuseFirstDataBlock)
}

// blockSize returns the wTransferSize the device announced, or 0 when unknown.
func (d *Device) blockSize() int {
	if props := d.Properties(); props != nil {
		return int(props.TransferSize)
	}
	return 0
}
