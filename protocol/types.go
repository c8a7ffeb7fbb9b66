package protocol

import (
	"fmt"
	"time"
)

// State is the DFU device state reported by GETSTATUS and GETSTATE.
type State uint8

// DFU states per USB DFU 1.1 section 6.1.2.
const (
	AppIdle              State = 0
	AppDetach            State = 1
	DfuIdle              State = 2
	DfuDownloadSync      State = 3
	DfuDownloadBusy      State = 4
	DfuDownloadIdle      State = 5
	DfuManifestSync      State = 6
	DfuManifest          State = 7
	DfuManifestWaitReset State = 8
	DfuUploadIdle        State = 9
	DfuError             State = 10
)

var stateNames = [...]string{
	AppIdle:              "appIDLE",
	AppDetach:            "appDETACH",
	DfuIdle:              "dfuIDLE",
	DfuDownloadSync:      "dfuDNLOAD-SYNC",
	DfuDownloadBusy:      "dfuDNBUSY",
	DfuDownloadIdle:      "dfuDNLOAD-IDLE",
	DfuManifestSync:      "dfuMANIFEST-SYNC",
	DfuManifest:          "dfuMANIFEST",
	DfuManifestWaitReset: "dfuMANIFEST-WAIT-RESET",
	DfuUploadIdle:        "dfuUPLOAD-IDLE",
	DfuError:             "dfuERROR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// StatusCode is the bStatus field of a GETSTATUS response.
type StatusCode uint8

// Status codes per USB DFU 1.1 section 6.1.2.
const (
	StatusOK               StatusCode = 0x00
	StatusErrTarget        StatusCode = 0x01
	StatusErrFile          StatusCode = 0x02
	StatusErrWrite         StatusCode = 0x03
	StatusErrErase         StatusCode = 0x04
	StatusErrCheckErased   StatusCode = 0x05
	StatusErrProg          StatusCode = 0x06
	StatusErrVerify        StatusCode = 0x07
	StatusErrAddress       StatusCode = 0x08
	StatusErrNotDone       StatusCode = 0x09
	StatusErrFirmware      StatusCode = 0x0A
	StatusErrVendor        StatusCode = 0x0B
	StatusErrUSBReset      StatusCode = 0x0C
	StatusErrPowerOnReset  StatusCode = 0x0D
	StatusErrUnknown       StatusCode = 0x0E
	StatusErrStalledPacket StatusCode = 0x0F
)

// Status is a decoded GETSTATUS response. It is only valid for the request
// it was read after.
type Status struct {
	// Code is bStatus; anything but StatusOK is a device-reported error
	Code StatusCode

	// PollTimeout is how long the host should wait before the next GETSTATUS
	PollTimeout time.Duration

	// State is bState
	State State
}

// OK reports whether the device returned StatusOK.
func (s Status) OK() bool {
	return s.Code == StatusOK
}

// RequestType selects the bmRequestType type bits.
type RequestType uint8

const (
	RequestTypeStandard RequestType = 0
	RequestTypeClass    RequestType = 1
	RequestTypeVendor   RequestType = 2
)

// Recipient selects the bmRequestType recipient bits.
type Recipient uint8

const (
	RecipientDevice    Recipient = 0
	RecipientInterface Recipient = 1
	RecipientEndpoint  Recipient = 2
)

// Setup describes a control transfer without its direction and length,
// which are implied by the transport call that carries it.
type Setup struct {
	Type      RequestType
	Recipient Recipient
	Request   uint8
	Value     uint16
	Index     uint16
}

// RequestTypeByte assembles bmRequestType for the given direction.
func (s Setup) RequestTypeByte(in bool) uint8 {
	b := uint8(s.Type)<<5 | uint8(s.Recipient)
	if in {
		b |= 0x80
	}
	return b
}
