package dfu

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-upsilon/protocol"
	"github.com/moffa90/go-upsilon/usbdesc"
)

// Device drives one DFU alternate setting of a USB device.
//
// Device is not safe for concurrent use: the device is a single state machine
// and control requests must be strictly ordered.
type Device struct {
	transport Transport
	setting   usbdesc.InterfaceSetting
	config    Config
	props     *usbdesc.FunctionalDescriptor
}

// New creates a Device for the given alternate setting.
//
// Example:
//
//	settings, _ := dfu.FindInterfaces(ctx, transport)
//	dev := dfu.New(transport, settings[0],
//	    dfu.WithProgressCallback(progressFunc),
//	    dfu.WithLogger(slog.Default()),
//	)
func New(transport Transport, setting usbdesc.InterfaceSetting, opts ...Option) *Device {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	return &Device{
		transport: transport,
		setting:   setting,
		config:    cfg,
	}
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport { return d.transport }

// Setting returns the alternate setting this device drives.
func (d *Device) Setting() usbdesc.InterfaceSetting { return d.setting }

// Logger returns the configured logger; never nil.
func (d *Device) Logger() Logger { return d.config.Logger }

// Open selects the configuration, claims the interface and selects the alternate setting.
func (d *Device) Open(ctx context.Context) error {
	if err := d.transport.Open(ctx); err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	if err := d.transport.SelectConfiguration(ctx, d.setting.Configuration); err != nil {
		return &TransportError{Op: "select configuration", Err: err}
	}
	if err := d.transport.ClaimInterface(ctx, d.setting.Interface); err != nil {
		return &TransportError{Op: "claim interface", Err: err}
	}
	if err := d.transport.SelectAlternateInterface(ctx, d.setting.Interface, d.setting.Alternate); err != nil {
		return &TransportError{Op: "select alternate", Err: err}
	}

	d.config.Logger.Debug("dfu interface opened",
		"configuration", d.setting.Configuration,
		"interface", d.setting.Interface,
		"alternate", d.setting.Alternate,
		"name", d.setting.Name,
	)
	return nil
}

// Close releases the device.
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// ReadProperties returns the DFU functional descriptor of the first configuration.
// The result is cached for the lifetime of the Device.
func (d *Device) ReadProperties(ctx context.Context) (*usbdesc.FunctionalDescriptor, error) {
	if d.props != nil {
		return d.props, nil
	}

	cfg, err := ReadConfigurationDescriptor(ctx, d.transport, 0)
	if err != nil {
		return nil, err
	}

	fd, ok := cfg.Functional()
	if !ok {
		return nil, fmt.Errorf("configuration %d has no DFU functional descriptor", cfg.ConfigurationValue)
	}

	d.props = fd
	return fd, nil
}

// Properties returns the cached functional descriptor, or nil before ReadProperties.
func (d *Device) Properties() *usbdesc.FunctionalDescriptor { return d.props }

// TransferSize returns the block size: the configured one, else wTransferSize, else DefaultTransferSize.
func (d *Device) TransferSize() int {
	if d.config.TransferSize > 0 {
		return d.config.TransferSize
	}
	if d.props != nil && d.props.TransferSize > 0 {
		return int(d.props.TransferSize)
	}
	return DefaultTransferSize
}

// ManifestationTolerant reports the bitManifestationTolerant attribute.
// Devices that cannot download, or whose properties were never read, count as tolerant.
func (d *Device) ManifestationTolerant() bool {
	if d.props != nil && d.props.CanDownload {
		return d.props.ManifestationTolerant
	}
	return true
}

func (d *Device) requestIn(ctx context.Context, op string, request uint8, value, length uint16) ([]byte, error) {
	ctx, cancel := d.transferContext(ctx)
	defer cancel()

	data, err := d.transport.ControlIn(ctx, protocol.ClassRequest(request, value, uint16(d.setting.Interface)), length)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return data, nil
}

func (d *Device) requestOut(ctx context.Context, op string, request uint8, value uint16, data []byte) (int, error) {
	ctx, cancel := d.transferContext(ctx)
	defer cancel()

	n, err := d.transport.ControlOut(ctx, protocol.ClassRequest(request, value, uint16(d.setting.Interface)), data)
	if err != nil {
		return n, &TransportError{Op: op, Err: err}
	}
	return n, nil
}

func (d *Device) transferContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// Detach asks a runtime-mode device to re-enumerate in DFU mode.
func (d *Device) Detach(ctx context.Context) error {
	_, err := d.requestOut(ctx, "detach", protocol.RequestDetach, DefaultDetachTimeout, nil)
	return err
}

// Download sends one DNLOAD block and returns the number of bytes accepted.
func (d *Device) Download(ctx context.Context, data []byte, blockNum uint16) (int, error) {
	return d.requestOut(ctx, "dnload", protocol.RequestDownload, blockNum, data)
}

// Upload reads one UPLOAD block of at most length bytes.
func (d *Device) Upload(ctx context.Context, length, blockNum uint16) ([]byte, error) {
	return d.requestIn(ctx, "upload", protocol.RequestUpload, blockNum, length)
}

// GetStatus reads the device status.
func (d *Device) GetStatus(ctx context.Context) (protocol.Status, error) {
	data, err := d.requestIn(ctx, "getstatus", protocol.RequestGetStatus, 0, protocol.StatusResponseSize)
	if err != nil {
		return protocol.Status{}, err
	}
	return protocol.ParseStatus(data)
}

// GetState reads the device state.
func (d *Device) GetState(ctx context.Context) (protocol.State, error) {
	data, err := d.requestIn(ctx, "getstate", protocol.RequestGetState, 0, protocol.StateResponseSize)
	if err != nil {
		return 0, err
	}
	return protocol.ParseState(data)
}

// ClearStatus leaves dfuERROR.
func (d *Device) ClearStatus(ctx context.Context) error {
	_, err := d.requestOut(ctx, "clrstatus", protocol.RequestClearStatus, 0, nil)
	return err
}

// Abort returns the device to dfuIDLE from any idle state.
func (d *Device) Abort(ctx context.Context) error {
	_, err := d.requestOut(ctx, "abort", protocol.RequestAbort, 0, nil)
	return err
}

// AbortToIdle sends ABORT, clears a pending error and checks that the device is in dfuIDLE.
func (d *Device) AbortToIdle(ctx context.Context) error {
	if err := d.Abort(ctx); err != nil {
		return err
	}

	state, err := d.GetState(ctx)
	if err != nil {
		return err
	}
	if state == protocol.DfuError {
		if err := d.ClearStatus(ctx); err != nil {
			return err
		}
		if state, err = d.GetState(ctx); err != nil {
			return err
		}
	}

	if state != protocol.DfuIdle {
		return &RecoveryError{State: state}
	}
	return nil
}

// PollUntil reads the status until pred holds, sleeping the device poll timeout
// between reads. It also stops on dfuERROR, in which case pred does not hold:
// callers must check the returned status.
func (d *Device) PollUntil(ctx context.Context, pred func(protocol.State) bool) (protocol.Status, error) {
	status, err := d.GetStatus(ctx)
	if err != nil {
		return status, err
	}

	for !pred(status.State) && status.State != protocol.DfuError {
		if err := sleep(ctx, status.PollTimeout); err != nil {
			return status, err
		}
		if status, err = d.GetStatus(ctx); err != nil {
			return status, err
		}
	}

	return status, nil
}

// PollUntilIdle polls until the device reaches the given idle state.
func (d *Device) PollUntilIdle(ctx context.Context, idle protocol.State) (protocol.Status, error) {
	return d.PollUntil(ctx, func(s protocol.State) bool { return s == idle })
}

// UploadAll reads consecutive blocks starting at firstBlock. Each request asks for
// min(chunkSize, remaining) bytes. It stops on a short block or once maxSize bytes
// were read; in the latter case the device is aborted back to idle, since it
// would otherwise stay in dfuUPLOAD-IDLE. A negative maxSize reads until a short block.
func (d *Device) UploadAll(ctx context.Context, chunkSize, maxSize int, firstBlock uint16) ([]byte, error) {
	if chunkSize <= 0 || chunkSize > 0xFFFF {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	var out []byte
	if maxSize > 0 {
		out = make([]byte, 0, maxSize)
	}

	block := firstBlock
	for maxSize < 0 || len(out) < maxSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		want := chunkSize
		if maxSize >= 0 && maxSize-len(out) < want {
			want = maxSize - len(out)
		}

		chunk, err := d.Upload(ctx, uint16(want), block)
		if err != nil {
			return nil, fmt.Errorf("upload block %d: %w", block, err)
		}
		block++
		out = append(out, chunk...)

		d.ReportProgress(PhaseUpload, len(out), maxSize)

		if len(chunk) < want {
			break
		}
	}

	if maxSize >= 0 && len(out) == maxSize {
		d.config.Logger.Debug("upload reached requested size, aborting to idle", "bytes", len(out))
		if err := d.AbortToIdle(ctx); err != nil {
			return nil, err
		}
	}

	d.config.Logger.Info("upload complete", "bytes", len(out))
	return out, nil
}

// DownloadAll sends data in chunkSize blocks starting at block 0, waiting for
// dfuDNLOAD-IDLE after each one, then sends a zero-length block and manifests.
//
// A manifestation-tolerant device is polled until dfuIDLE or dfuMANIFEST-WAIT-RESET;
// losing the device during that poll is expected. Other devices get one
// best-effort GETSTATUS. The device is then reset.
func (d *Device) DownloadAll(ctx context.Context, chunkSize int, data []byte, manifestationTolerant bool) error {
	if chunkSize <= 0 || chunkSize > 0xFFFF {
		return fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	startTime := time.Now()
	d.ReportProgress(PhaseDownload, 0, len(data))

	var block uint16
	sent := 0
	for sent < len(data) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		n := chunkSize
		if len(data)-sent < n {
			n = len(data) - sent
		}

		written, err := d.Download(ctx, data[sent:sent+n], block)
		if err != nil {
			return fmt.Errorf("download block %d: %w", block, err)
		}
		block++

		status, err := d.PollUntilIdle(ctx, protocol.DfuDownloadIdle)
		if err != nil {
			return fmt.Errorf("poll after block %d: %w", block-1, err)
		}
		if !status.OK() {
			return &DownloadError{Offset: sent, Status: status}
		}

		sent += written
		d.ReportProgress(PhaseDownload, sent, len(data))
	}

	d.config.Logger.Debug("sending empty block", "block", block)
	if _, err := d.Download(ctx, nil, block); err != nil {
		return fmt.Errorf("final download: %w", err)
	}

	d.config.Logger.Info("download complete",
		"bytes", sent,
		"elapsed", time.Since(startTime).String(),
	)

	if err := d.Manifest(ctx, manifestationTolerant); err != nil {
		return err
	}

	return d.Reset(ctx)
}

// Manifest waits for the device to commit a finished download.
func (d *Device) Manifest(ctx context.Context, manifestationTolerant bool) error {
	d.ReportProgress(PhaseManifest, 0, 0)

	if !manifestationTolerant {
		if _, err := d.GetStatus(ctx); err != nil {
			d.config.Logger.Debug("ignored status error during manifestation", "error", err)
		}
		return nil
	}

	status, err := d.PollUntil(ctx, func(s protocol.State) bool {
		return s == protocol.DfuIdle || s == protocol.DfuManifestWaitReset
	})
	if err != nil {
		if IsDeviceGone(err) {
			d.config.Logger.Debug("device gone during manifestation", "error", err)
			return nil
		}
		return fmt.Errorf("manifest: %w", err)
	}

	if status.State == protocol.DfuManifestWaitReset {
		d.config.Logger.Warn("device entered dfuMANIFEST-WAIT-RESET although it is manifestation tolerant")
	}
	if !status.OK() {
		return &protocol.ProtocolError{Operation: "manifest", Status: status.Code, State: status.State}
	}

	return nil
}

// Reset issues a USB reset. Errors caused by the device already being gone are ignored.
func (d *Device) Reset(ctx context.Context) error {
	if err := d.transport.Reset(ctx); err != nil {
		if isResetNoise(err) {
			d.config.Logger.Debug("ignored reset error", "error", err)
			d.ReportProgress(PhaseComplete, 0, 0)
			return nil
		}
		return &TransportError{Op: "reset", Err: err}
	}

	d.ReportProgress(PhaseComplete, 0, 0)
	return nil
}

// ReportProgress calls the progress callback if configured.
func (d *Device) ReportProgress(phase string, done, total int) {
	if d.config.ProgressCallback != nil {
		d.config.ProgressCallback(Progress{Phase: phase, Done: done, Total: total})
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
