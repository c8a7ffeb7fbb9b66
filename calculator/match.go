package calculator

import "github.com/moffa90/go-upsilon/dfu"

// Match selects devices for auto-connection.
//
// A non-empty Serial matches on the serial number alone. Otherwise the
// non-zero IDs must all match, and a Match with neither ID matches nothing.
type Match struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// CalculatorMatch matches calculators in DFU mode, optionally by serial number.
func CalculatorMatch(serial string) Match {
	return Match{VendorID: VendorID, ProductID: CalculatorProduct, Serial: serial}
}

// RecoveryMatch matches calculators in the STM32 recovery bootloader.
func RecoveryMatch(serial string) Match {
	return Match{VendorID: VendorID, ProductID: RecoveryProduct, Serial: serial}
}

// Matches reports whether info is selected by m.
func (m Match) Matches(info dfu.DeviceInfo) bool {
	if m.Serial != "" {
		return info.Serial == m.Serial
	}
	if m.VendorID == 0 && m.ProductID == 0 {
		return false
	}
	if m.VendorID != 0 && info.VendorID != m.VendorID {
		return false
	}
	if m.ProductID != 0 && info.ProductID != m.ProductID {
		return false
	}
	return true
}
