package usbtransport

import (
	"errors"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/dfu"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(gousb.ErrorNoDevice)
	assert.ErrorIs(t, err, dfu.ErrDeviceDisconnected)
	assert.True(t, dfu.IsDeviceGone(err))

	err = mapError(gousb.ErrorNotFound)
	assert.ErrorIs(t, err, dfu.ErrDeviceUnavailable)

	err = mapError(gousb.ErrorPipe)
	assert.False(t, dfu.IsDeviceGone(err))
	assert.True(t, errors.Is(err, gousb.ErrorPipe))
}

func TestDescriptorMatches(t *testing.T) {
	calc := &gousb.DeviceDesc{Vendor: 0x0483, Product: 0xA291}
	rec := &gousb.DeviceDesc{Vendor: 0x0483, Product: 0xDF11}

	assert.True(t, descriptorMatches(calculator.CalculatorMatch(""), calc))
	assert.False(t, descriptorMatches(calculator.CalculatorMatch(""), rec))
	assert.True(t, descriptorMatches(calculator.RecoveryMatch(""), rec))

	// Serial numbers are checked once the device is open.
	assert.True(t, descriptorMatches(calculator.CalculatorMatch("123"), calc))
	assert.False(t, descriptorMatches(calculator.CalculatorMatch("123"), rec))
	assert.False(t, descriptorMatches(calculator.CalculatorMatch("123"), &gousb.DeviceDesc{Vendor: 0x046D, Product: 0xC52B}))
	assert.True(t, descriptorMatches(calculator.RecoveryMatch("123"), rec))

	assert.True(t, descriptorMatches(calculator.Match{Serial: "123"}, rec))
	assert.False(t, descriptorMatches(calculator.Match{}, rec))
}
