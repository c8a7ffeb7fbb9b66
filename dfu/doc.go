// Package dfu implements the host side of the USB DFU 1.1 protocol engine.
//
// # Overview
//
// A Device drives one DFU alternate setting through a Transport, the USB host
// stack supplied by the caller (see package usbtransport for a libusb one):
//   - Locating DFU interfaces from the device descriptors
//   - Single requests: DNLOAD, UPLOAD, GETSTATUS, GETSTATE, CLRSTATUS, ABORT, DETACH
//   - Status polling honouring the device poll timeout
//   - Chunked upload and download, manifestation and reset
//
// # Basic Usage
//
//	settings, err := dfu.FindInterfaces(ctx, transport)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev := dfu.New(transport, settings[0])
//	if err := dev.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	props, err := dev.ReadProperties(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = dev.DownloadAll(ctx, int(props.TransferSize), image, props.ManifestationTolerant)
//
// # Progress Tracking
//
//	dev := dfu.New(transport, setting,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("[%s] %d/%d\n", p.Phase, p.Done, p.Total)
//	    }),
//	)
//
// # Logging
//
// Any value with Debug, Info, Warn and Error methods taking a message and
// key-value pairs can be used. *slog.Logger works as is:
//
//	dev := dfu.New(transport, setting, dfu.WithLogger(slog.Default()))
//
// # Error Handling
//
// The package returns typed errors:
//   - *TransportError: a control transfer failed; unwraps to the transport error
//   - *DownloadError: the device reported a bad status after a block
//   - *RecoveryError: ABORT did not bring the device back to dfuIDLE
//   - *protocol.ProtocolError: a bad status outside block transfers
//
// A device that vanishes while manifesting or resetting is expected. Transports
// report it with ErrDeviceUnavailable or ErrDeviceDisconnected, which the engine
// ignores at those two points only. No multi-block operation is retried.
//
// # Concurrency
//
// A Device must be used from one goroutine at a time.
package dfu
