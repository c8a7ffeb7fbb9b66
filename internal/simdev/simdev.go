// Package simdev simulates a DFU or DfuSe device behind the dfu.Transport interface.
//
// The simulator keeps a sparse memory made of regions, runs the DFU state machine
// (a DNLOAD is executed by the GETSTATUS that follows it), serves descriptors and
// strings, and records every control request for inspection by tests.
package simdev

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/protocol"
)

// ErrStall is returned for requests the device refuses in its current state.
var ErrStall = errors.New("pipe stalled")

// Region is a span of simulated memory.
type Region struct {
	Start      uint32
	Size       int
	SectorSize uint32
	Erasable   bool
	Writable   bool
}

// Config describes the simulated device.
type Config struct {
	VendorID     uint16
	ProductID    uint16
	BCDDevice    uint16
	Manufacturer string
	Product      string
	Serial       string

	// Alternates holds one interface name per alternate setting of interface 0
	Alternates []string

	// Attributes is bmAttributes of the functional descriptor
	Attributes uint8

	TransferSize  uint16
	DetachTimeout uint16
	DFUVersion    uint16

	// DfuSe enables block-0 commands and address translation
	DfuSe bool

	// PollTimeout is reported in every status
	PollTimeout time.Duration

	// BusyPolls is the number of dfuDNBUSY statuses reported before dfuDNLOAD-IDLE
	BusyPolls int

	// GoneOnManifest makes the device leave the bus when it starts manifesting
	GoneOnManifest bool
}

// Request is one recorded control transfer.
type Request struct {
	In     bool
	Setup  protocol.Setup
	Length uint16
	Data   []byte
}

// Command is one DfuSe command received by the device.
type Command struct {
	Code  uint8
	Param uint32
}

type memory struct {
	Region
	data []byte
}

type pendingDownload struct {
	block uint16
	data  []byte
}

// Device is a simulated device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	cfg     Config
	regions []*memory

	open          bool
	configuration uint8
	alternate     uint8
	gone          bool

	state   protocol.State
	status  protocol.StatusCode
	pointer uint32
	pending *pendingDownload
	busy    int
	offset  int

	requests []Request
	commands []Command
	resets   int

	failures   map[uint8][]error
	nextStatus protocol.StatusCode
	resetErr   error
}

// New creates a device in dfuIDLE with the given memory regions, filled with 0xFF.
func New(cfg Config, regions ...Region) *Device {
	if cfg.TransferSize == 0 {
		cfg.TransferSize = dfu.DefaultTransferSize
	}
	if len(cfg.Alternates) == 0 {
		cfg.Alternates = []string{""}
	}

	d := &Device{
		cfg:      cfg,
		state:    protocol.DfuIdle,
		failures: make(map[uint8][]error),
	}
	for _, r := range regions {
		m := &memory{Region: r, data: make([]byte, r.Size)}
		for i := range m.data {
			m.data[i] = 0xFF
		}
		d.regions = append(d.regions, m)
	}
	return d
}

// Load writes data into memory without any state machine involvement.
func (d *Device) Load(addr uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.copyIn(addr, data, true); err != nil {
		panic(err)
	}
}

// Memory returns a copy of n bytes of memory at addr.
func (d *Device) Memory(addr uint32, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.copyOut(addr, n)
}

// Requests returns the recorded control transfers.
func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Request(nil), d.requests...)
}

// ClassRequests returns the recorded class requests with the given request code.
func (d *Device) ClassRequests(request uint8) []Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Request
	for _, r := range d.requests {
		if r.Setup.Type == protocol.RequestTypeClass && r.Setup.Request == request {
			out = append(out, r)
		}
	}
	return out
}

// Commands returns the DfuSe commands received so far.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Command(nil), d.commands...)
}

// Resets returns the number of USB resets received.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resets
}

// State returns the current DFU state.
func (d *Device) State() protocol.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// SetState forces the DFU state.
func (d *Device) SetState(s protocol.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = s
}

// ClearRecords forgets recorded requests and commands.
func (d *Device) ClearRecords() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = nil
	d.commands = nil
}

// FailNext makes the next request with the given class request code fail with err.
// Calls queue up.
func (d *Device) FailNext(request uint8, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failures[request] = append(d.failures[request], err)
}

// FailNextOperation makes the next executed download or command report code.
func (d *Device) FailNextOperation(code protocol.StatusCode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextStatus = code
}

// SetResetError makes Reset fail with err.
func (d *Device) SetResetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resetErr = err
}

// Disconnect makes the device leave the bus.
func (d *Device) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gone = true
}

// Open implements dfu.Transport.
func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gone {
		return dfu.ErrDeviceUnavailable
	}
	d.open = true
	return nil
}

// Close implements dfu.Transport.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.open = false
	return nil
}

// SelectConfiguration implements dfu.Transport.
func (d *Device) SelectConfiguration(ctx context.Context, value uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if value != 1 {
		return fmt.Errorf("configuration %d: %w", value, ErrStall)
	}
	d.configuration = value
	return nil
}

// ClaimInterface implements dfu.Transport.
func (d *Device) ClaimInterface(ctx context.Context, intf uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if intf != 0 {
		return fmt.Errorf("interface %d: %w", intf, ErrStall)
	}
	return nil
}

// SelectAlternateInterface implements dfu.Transport.
func (d *Device) SelectAlternateInterface(ctx context.Context, intf, alt uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if intf != 0 || int(alt) >= len(d.cfg.Alternates) {
		return fmt.Errorf("interface %d alt %d: %w", intf, alt, ErrStall)
	}
	d.alternate = alt
	return nil
}

// Reset implements dfu.Transport.
func (d *Device) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.resetErr != nil {
		return d.resetErr
	}
	if d.gone {
		return dfu.ErrDeviceDisconnected
	}
	d.resets++
	d.state = protocol.DfuIdle
	d.status = protocol.StatusOK
	d.pending = nil
	d.offset = 0
	return nil
}

// Info implements dfu.Transport.
func (d *Device) Info() dfu.DeviceInfo {
	return dfu.DeviceInfo{
		VendorID:    d.cfg.VendorID,
		ProductID:   d.cfg.ProductID,
		Serial:      d.cfg.Serial,
		ProductName: d.cfg.Product,
		BCDDevice:   d.cfg.BCDDevice,
	}
}

// ControlIn implements dfu.Transport.
func (d *Device) ControlIn(ctx context.Context, setup protocol.Setup, length uint16) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, Request{In: true, Setup: setup, Length: length})
	if err := d.usable(); err != nil {
		return nil, err
	}

	if setup.Type == protocol.RequestTypeStandard && setup.Request == protocol.RequestGetDescriptor {
		return d.descriptor(setup, length)
	}
	if setup.Type != protocol.RequestTypeClass {
		return nil, ErrStall
	}
	if err := d.injected(setup.Request); err != nil {
		return nil, err
	}

	switch setup.Request {
	case protocol.RequestGetStatus:
		return d.getStatus(), nil
	case protocol.RequestGetState:
		return []byte{byte(d.state)}, nil
	case protocol.RequestUpload:
		return d.upload(setup.Value, int(length))
	default:
		return nil, d.stall()
	}
}

// ControlOut implements dfu.Transport.
func (d *Device) ControlOut(ctx context.Context, setup protocol.Setup, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, Request{Setup: setup, Length: uint16(len(data)), Data: append([]byte(nil), data...)})
	if err := d.usable(); err != nil {
		return 0, err
	}
	if setup.Type != protocol.RequestTypeClass {
		return 0, ErrStall
	}
	if err := d.injected(setup.Request); err != nil {
		return 0, err
	}

	switch setup.Request {
	case protocol.RequestDownload:
		return d.download(setup.Value, data)
	case protocol.RequestClearStatus:
		if d.state == protocol.DfuError {
			d.state = protocol.DfuIdle
			d.status = protocol.StatusOK
		}
		return 0, nil
	case protocol.RequestAbort:
		switch d.state {
		case protocol.DfuIdle, protocol.DfuDownloadSync, protocol.DfuDownloadIdle,
			protocol.DfuManifestSync, protocol.DfuUploadIdle:
			d.state = protocol.DfuIdle
			d.pending = nil
			d.offset = 0
			return 0, nil
		case protocol.DfuError, protocol.DfuManifestWaitReset:
			return 0, nil
		}
		return 0, d.stall()
	case protocol.RequestDetach:
		return 0, nil
	default:
		return 0, d.stall()
	}
}

func (d *Device) usable() error {
	if d.gone {
		return dfu.ErrDeviceDisconnected
	}
	if !d.open {
		return dfu.ErrDeviceUnavailable
	}
	return nil
}

func (d *Device) injected(request uint8) error {
	queue := d.failures[request]
	if len(queue) == 0 {
		return nil
	}
	d.failures[request] = queue[1:]
	return queue[0]
}

func (d *Device) stall() error {
	d.state = protocol.DfuError
	d.status = protocol.StatusErrStalledPacket
	return ErrStall
}

func (d *Device) statusBytes() []byte {
	return protocol.EncodeStatus(protocol.Status{
		Code:        d.status,
		PollTimeout: d.cfg.PollTimeout,
		State:       d.state,
	})
}

func (d *Device) tolerant() bool {
	return d.cfg.Attributes&protocol.AttrManifestationTolerant != 0
}

func (d *Device) getStatus() []byte {
	switch d.state {
	case protocol.DfuDownloadSync:
		d.execute()
		if d.state == protocol.DfuDownloadSync {
			if d.cfg.BusyPolls > 0 {
				d.busy = d.cfg.BusyPolls
				d.state = protocol.DfuDownloadBusy
			} else {
				d.state = protocol.DfuDownloadIdle
			}
		}
	case protocol.DfuDownloadBusy:
		d.busy--
		if d.busy <= 0 {
			d.state = protocol.DfuDownloadIdle
		}
	case protocol.DfuManifestSync:
		if d.cfg.GoneOnManifest {
			d.gone = true
		}
		d.state = protocol.DfuManifest
	case protocol.DfuManifest:
		if d.tolerant() {
			d.state = protocol.DfuIdle
		} else {
			d.state = protocol.DfuManifestWaitReset
		}
		d.offset = 0
	}

	return d.statusBytes()
}

func (d *Device) download(block uint16, data []byte) (int, error) {
	if len(data) == 0 {
		if d.state != protocol.DfuDownloadIdle {
			return 0, d.stall()
		}
		d.state = protocol.DfuManifestSync
		return 0, nil
	}

	if d.state != protocol.DfuIdle && d.state != protocol.DfuDownloadIdle {
		return 0, d.stall()
	}
	if len(data) > int(d.cfg.TransferSize) {
		return 0, d.stall()
	}

	d.pending = &pendingDownload{block: block, data: append([]byte(nil), data...)}
	d.state = protocol.DfuDownloadSync
	return len(data), nil
}

func (d *Device) fail(code protocol.StatusCode) {
	d.state = protocol.DfuError
	d.status = code
}

func (d *Device) execute() {
	p := d.pending
	d.pending = nil
	if p == nil {
		return
	}

	if d.nextStatus != protocol.StatusOK {
		d.fail(d.nextStatus)
		d.nextStatus = protocol.StatusOK
		return
	}

	if !d.cfg.DfuSe {
		addr := d.regions[0].Start + uint32(d.offset)
		if err := d.copyIn(addr, p.data, false); err != nil {
			d.fail(protocol.StatusErrAddress)
			return
		}
		d.offset += len(p.data)
		return
	}

	switch {
	case p.block == 0:
		d.command(p.data)
	case p.block == 1:
		d.fail(protocol.StatusErrStalledPacket)
	default:
		addr := d.pointer + uint32(p.block-protocol.DfuseFirstDataBlock)*uint32(d.cfg.TransferSize)
		if err := d.copyIn(addr, p.data, false); err != nil {
			d.fail(protocol.StatusErrAddress)
		}
	}
}

func (d *Device) command(payload []byte) {
	code, param, err := protocol.ParseDfuseCommand(payload)
	if err != nil {
		d.fail(protocol.StatusErrStalledPacket)
		return
	}
	d.commands = append(d.commands, Command{Code: code, Param: param})

	switch code {
	case protocol.DfuseGetCommands:
	case protocol.DfuseSetAddress:
		if d.region(param) == nil {
			d.fail(protocol.StatusErrTarget)
			return
		}
		d.pointer = param
	case protocol.DfuseEraseSector:
		m := d.region(param)
		if m == nil || !m.Erasable || m.SectorSize == 0 {
			d.fail(protocol.StatusErrTarget)
			return
		}
		start := param - (param-m.Start)%m.SectorSize
		for i := uint32(0); i < m.SectorSize && int(start-m.Start+i) < len(m.data); i++ {
			m.data[start-m.Start+i] = 0xFF
		}
	default:
		d.fail(protocol.StatusErrStalledPacket)
	}
}

func (d *Device) upload(block uint16, length int) ([]byte, error) {
	if d.state != protocol.DfuIdle && d.state != protocol.DfuUploadIdle {
		return nil, d.stall()
	}

	if d.cfg.DfuSe && block == 0 {
		d.state = protocol.DfuIdle
		return []byte{protocol.DfuseGetCommands, protocol.DfuseSetAddress, protocol.DfuseEraseSector}, nil
	}
	if d.cfg.DfuSe && block == 1 {
		return nil, d.stall()
	}

	var addr uint32
	if d.cfg.DfuSe {
		addr = d.pointer + uint32(block-protocol.DfuseFirstDataBlock)*uint32(d.cfg.TransferSize)
	} else {
		addr = d.regions[0].Start + uint32(d.offset)
	}

	data := d.copyOut(addr, length)
	if !d.cfg.DfuSe {
		d.offset += len(data)
	}

	if len(data) < length {
		d.state = protocol.DfuIdle
		d.offset = 0
	} else {
		d.state = protocol.DfuUploadIdle
	}
	return data, nil
}

func (d *Device) region(addr uint32) *memory {
	for _, m := range d.regions {
		if addr >= m.Start && uint64(addr) < uint64(m.Start)+uint64(len(m.data)) {
			return m
		}
	}
	return nil
}

func (d *Device) copyIn(addr uint32, data []byte, force bool) error {
	m := d.region(addr)
	if m == nil {
		return fmt.Errorf("address 0x%08X is not mapped", addr)
	}
	if !force && !m.Writable {
		return fmt.Errorf("address 0x%08X is read-only", addr)
	}
	off := int(addr - m.Start)
	if off+len(data) > len(m.data) {
		return fmt.Errorf("write of %d bytes at 0x%08X overruns region", len(data), addr)
	}
	copy(m.data[off:], data)
	return nil
}

// copyOut returns the bytes available from addr up to the end of its region.
func (d *Device) copyOut(addr uint32, n int) []byte {
	m := d.region(addr)
	if m == nil {
		return []byte{}
	}
	off := int(addr - m.Start)
	end := off + n
	if end > len(m.data) {
		end = len(m.data)
	}
	return append([]byte{}, m.data[off:end]...)
}
