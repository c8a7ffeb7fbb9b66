// Package protocol implements the wire level of the USB DFU 1.1 class protocol
// and of the ST DfuSe extension.
//
// This package only builds setup packets and payloads and decodes device
// responses. It performs no I/O; see package dfu for the engine that drives a device.
//
// # Requests
//
// DFU requests are class requests addressed to the DFU interface:
//
//	DETACH=0x00 DNLOAD=0x01 UPLOAD=0x02 GETSTATUS=0x03
//	CLRSTATUS=0x04 GETSTATE=0x05 ABORT=0x06
//
// Use ClassRequest to build their setup packets:
//
//	setup := protocol.ClassRequest(protocol.RequestDownload, blockNum, intf)
//
// # Responses
//
// GETSTATUS returns six bytes:
//
//	[bStatus][bwPollTimeout(3)][bState][iString]
//
// Use ParseStatus and ParseState to decode them:
//
//	status, err := protocol.ParseStatus(data)
//	if !status.OK() {
//	    return &protocol.ProtocolError{Operation: "download", Status: status.Code, State: status.State}
//	}
//
// # DfuSe
//
// DfuSe commands travel in a DNLOAD with block number 0:
//
//	[CMD][PARAM]
//
// where CMD is SET_ADDRESS (0x21), ERASE_SECTOR (0x41) or GET_COMMANDS (0x00).
// Data blocks start at block number 2; the device computes the target address as
//
//	address = pointer + (blockNum - 2) * transferSize
//
// # Reference
//
// Universal Serial Bus Device Class Specification for Device Firmware Upgrade, Version 1.1.
// ST AN3156, USB DFU protocol used in the STM32 bootloader.
package protocol
