package dfuse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/dfuse"
	"github.com/moffa90/go-upsilon/internal/simdev"
	"github.com/moffa90/go-upsilon/protocol"
	"github.com/moffa90/go-upsilon/usbdesc"
)

func openDfuse(t *testing.T, sim *simdev.Device, opts ...dfu.Option) *dfuse.Device {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, sim.Open(ctx))
	settings, err := dfu.FindInterfaces(ctx, sim)
	require.NoError(t, err)
	require.NotEmpty(t, settings)

	base := dfu.New(sim, settings[0], opts...)
	require.NoError(t, base.Open(ctx))

	props, err := base.ReadProperties(ctx)
	require.NoError(t, err)
	require.True(t, dfuse.Supported(props, settings[0]))

	dev, err := dfuse.New(base)
	require.NoError(t, err)
	return dev
}

func commandsOf(sim *simdev.Device, code uint8) []uint32 {
	var params []uint32
	for _, c := range sim.Commands() {
		if c.Code == code {
			params = append(params, c.Param)
		}
	}
	return params
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*13 + 1)
	}
	return b
}

func mixedDevice() *simdev.Device {
	return simdev.New(simdev.Config{
		Alternates:   []string{"@Test/0x00000000/04*001Kg,01*001Ke"},
		Attributes:   protocol.AttrCanDownload | protocol.AttrCanUpload,
		TransferSize: 1024,
		DFUVersion:   protocol.VersionDfuSe,
		DfuSe:        true,
	}, simdev.Region{Start: 0, Size: 0x1400, SectorSize: 0x400, Erasable: true, Writable: true})
}

func TestEraseSkipsNonErasableSegments(t *testing.T) {
	var progress []dfu.Progress
	sim := mixedDevice()
	dev := openDfuse(t, sim, dfu.WithProgressCallback(func(p dfu.Progress) {
		progress = append(progress, p)
	}))

	require.NoError(t, dev.Erase(context.Background(), 0x0, 0x1400))

	assert.Equal(t, []uint32{0x000, 0x400, 0x800, 0xC00}, commandsOf(sim, protocol.DfuseEraseSector))

	last := progress[len(progress)-1]
	assert.Equal(t, dfu.PhaseErase, last.Phase)
	assert.Equal(t, 0x1400, last.Done)
	assert.Equal(t, 0x1400, last.Total)
}

func TestEraseRoundsToSectors(t *testing.T) {
	sim := mixedDevice()
	dev := openDfuse(t, sim)

	require.NoError(t, dev.Erase(context.Background(), 0x500, 0x400))
	assert.Equal(t, []uint32{0x400, 0x800}, commandsOf(sim, protocol.DfuseEraseSector))
}

func TestEraseZeroLength(t *testing.T) {
	sim := mixedDevice()
	dev := openDfuse(t, sim)

	require.NoError(t, dev.Erase(context.Background(), 0x0, 0))
	assert.Empty(t, sim.Commands())
}

func TestEraseUnmapped(t *testing.T) {
	sim := mixedDevice()
	dev := openDfuse(t, sim)

	err := dev.Erase(context.Background(), 0x1000, 0x800)
	var ue *dfuse.UnmappedAddressError
	require.ErrorAs(t, err, &ue)
	assert.Empty(t, sim.Commands())
}

func TestCommandFailure(t *testing.T) {
	sim := mixedDevice()
	dev := openDfuse(t, sim)
	sim.FailNextOperation(protocol.StatusErrErase)

	err := dev.EraseSector(context.Background(), 0x400)

	var ce *dfuse.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint8(protocol.DfuseEraseSector), ce.Command)
	assert.Equal(t, uint32(0x400), ce.Param)
	assert.Equal(t, protocol.StatusErrErase, ce.Status.Code)
	assert.Contains(t, err.Error(), "ERASE_SECTOR")
}

func TestSetAddressPayload(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)

	require.NoError(t, dev.SetAddress(context.Background(), 0x08000000))

	reqs := sim.ClassRequests(protocol.RequestDownload)
	require.Len(t, reqs, 1)
	assert.Equal(t, uint16(0), reqs[0].Setup.Value)
	assert.Equal(t, []byte{0x21, 0x00, 0x00, 0x00, 0x08}, reqs[0].Data)
}

func TestDownloadAll(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)
	dev.SetStartAddress(0x08000000)
	data := pattern(5000)

	require.NoError(t, dev.DownloadAll(context.Background(), 2048, data, false))

	assert.Equal(t, []uint32{0x08000000}, commandsOf(sim, protocol.DfuseEraseSector))
	assert.Equal(t, []uint32{0x08000000, 0x08000800, 0x08001000}, commandsOf(sim, protocol.DfuseSetAddress))

	var blocks []uint16
	var sizes []int
	for _, r := range sim.ClassRequests(protocol.RequestDownload) {
		if r.Setup.Value != 0 {
			blocks = append(blocks, r.Setup.Value)
			sizes = append(sizes, len(r.Data))
		}
	}
	assert.Equal(t, []uint16{2, 2, 2}, blocks)
	assert.Equal(t, []int{2048, 2048, 904}, sizes)

	assert.Equal(t, data, sim.Memory(0x08000000, len(data)))
	assert.Equal(t, protocol.DfuDownloadIdle, sim.State())
	assert.Zero(t, sim.Resets())
}

func TestDownloadAllManifests(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)
	dev.SetStartAddress(0x90000000)

	require.NoError(t, dev.DownloadAll(context.Background(), 2048, pattern(100), true))

	setAddrs := commandsOf(sim, protocol.DfuseSetAddress)
	assert.Equal(t, []uint32{0x90000000, 0x90000000}, setAddrs)

	reqs := sim.ClassRequests(protocol.RequestDownload)
	lastDownload := reqs[len(reqs)-1]
	assert.Empty(t, lastDownload.Data)
	assert.Equal(t, uint16(protocol.DfuseFirstDataBlock), lastDownload.Setup.Value)
	assert.Equal(t, protocol.DfuManifest, sim.State())
}

func TestDownloadAllManifestPollFailureIsLogged(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)
	dev.SetStartAddress(0x90000000)
	sim.FailNext(protocol.RequestGetStatus, nil)
	sim.FailNext(protocol.RequestGetStatus, nil)
	sim.FailNext(protocol.RequestGetStatus, nil)
	sim.FailNext(protocol.RequestGetStatus, nil)
	sim.FailNext(protocol.RequestGetStatus, dfu.ErrDeviceDisconnected)

	// erase, set address, block, set address: four polls; the fifth fails
	assert.NoError(t, dev.DownloadAll(context.Background(), 2048, pattern(10), true))
}

func TestDownloadAllWriteRejected(t *testing.T) {
	sim := simdev.New(simdev.Config{
		Alternates:   []string{"@Test/0x00000000/04*001Kg"},
		Attributes:   protocol.AttrCanDownload,
		TransferSize: 1024,
		DFUVersion:   protocol.VersionDfuSe,
		DfuSe:        true,
	}, simdev.Region{Start: 0, Size: 0x1000, SectorSize: 0x400, Erasable: true})
	dev := openDfuse(t, sim)
	dev.SetStartAddress(0)

	err := dev.DownloadAll(context.Background(), 1024, pattern(100), false)

	var de *dfu.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, protocol.StatusErrAddress, de.Status.Code)
}

func TestUploadAll(t *testing.T) {
	sim := simdev.N0110("SIM")
	data := pattern(5000)
	sim.Load(0x90000000, data)
	dev := openDfuse(t, sim)
	dev.SetStartAddress(0x90000000)

	got, err := dev.UploadAll(context.Background(), 2048, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.Equal(t, []uint32{0x90000000}, commandsOf(sim, protocol.DfuseSetAddress))

	var blocks []uint16
	for _, r := range sim.ClassRequests(protocol.RequestUpload) {
		blocks = append(blocks, r.Setup.Value)
	}
	assert.Equal(t, []uint16{2, 3, 4}, blocks)
	assert.Equal(t, protocol.DfuIdle, sim.State())
}

func TestUploadAllUsesDeviceBlockSize(t *testing.T) {
	sim := simdev.N0110("SIM")
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i / 512)
	}
	sim.Load(0x90000000, data)
	dev := openDfuse(t, sim, dfu.WithTransferSize(512))
	dev.SetStartAddress(0x90000000)
	require.Equal(t, 512, dev.TransferSize())

	got, err := dev.UploadAll(context.Background(), dev.TransferSize(), len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	var blocks []uint16
	for _, r := range sim.ClassRequests(protocol.RequestUpload) {
		blocks = append(blocks, r.Setup.Value)
		assert.Equal(t, uint16(2048), r.Length)
	}
	assert.Equal(t, []uint16{2, 3}, blocks)
}

func TestUploadAllFromErrorState(t *testing.T) {
	sim := simdev.N0110("SIM")
	sim.Load(0x08000000, []byte("kernel"))
	dev := openDfuse(t, sim)
	sim.SetState(protocol.DfuError)

	got, err := dev.UploadAll(context.Background(), 2048, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("kernel"), got)
	assert.Len(t, sim.ClassRequests(protocol.RequestClearStatus), 1)
}

func TestGetCommands(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)

	cmds, err := dev.GetCommands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint8{protocol.DfuseGetCommands, protocol.DfuseSetAddress, protocol.DfuseEraseSector}, cmds)
}

func TestStartAddress(t *testing.T) {
	sim := simdev.N0110("SIM")
	dev := openDfuse(t, sim)

	assert.Equal(t, uint32(0x08000000), dev.StartAddress())
	dev.SetStartAddress(0x90000000)
	assert.Equal(t, uint32(0x90000000), dev.StartAddress())
	assert.Equal(t, "Flash", dev.Memory().Name)
}

func TestSupported(t *testing.T) {
	dfuMode := usbdesc.InterfaceSetting{Protocol: protocol.ProtocolDFUMode}
	runtime := usbdesc.InterfaceSetting{Protocol: protocol.ProtocolRuntime}

	assert.True(t, dfuse.Supported(&usbdesc.FunctionalDescriptor{DFUVersion: 0x011A}, dfuMode))
	assert.True(t, dfuse.Supported(&usbdesc.FunctionalDescriptor{DFUVersion: 0x0100}, dfuMode))
	assert.False(t, dfuse.Supported(&usbdesc.FunctionalDescriptor{DFUVersion: 0x0110}, dfuMode))
	assert.False(t, dfuse.Supported(&usbdesc.FunctionalDescriptor{DFUVersion: 0x011A}, runtime))
	assert.False(t, dfuse.Supported(nil, dfuMode))
}

func TestNewRejectsBadDescriptor(t *testing.T) {
	sim := simdev.New(simdev.Config{Alternates: []string{"Flash"}, DfuSe: true})
	_, err := dfuse.New(dfu.New(sim, usbdesc.InterfaceSetting{Configuration: 1, Name: "Flash"}))

	var me *dfuse.MemoryDescriptorError
	assert.ErrorAs(t, err, &me)
}
