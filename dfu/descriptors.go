package dfu

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-upsilon/protocol"
	"github.com/moffa90/go-upsilon/usbdesc"
)

const deviceDescriptorLength = 18

func getDescriptor(ctx context.Context, t Transport, descType, index uint8, langID, length uint16) ([]byte, error) {
	data, err := t.ControlIn(ctx, protocol.GetDescriptorRequest(descType, index, langID), length)
	if err != nil {
		return nil, &TransportError{Op: "get descriptor", Err: err}
	}
	return data, nil
}

// ReadDeviceDescriptor reads the device descriptor.
func ReadDeviceDescriptor(ctx context.Context, t Transport) (*usbdesc.DeviceDescriptor, error) {
	data, err := getDescriptor(ctx, t, protocol.DescriptorTypeDevice, 0, 0, deviceDescriptorLength)
	if err != nil {
		return nil, err
	}
	return usbdesc.ParseDeviceDescriptor(data)
}

// ReadConfigurationDescriptor reads the configuration descriptor at index,
// first fetching its header to learn wTotalLength.
func ReadConfigurationDescriptor(ctx context.Context, t Transport, index uint8) (*usbdesc.ConfigurationDescriptor, error) {
	header, err := getDescriptor(ctx, t, protocol.DescriptorTypeConfiguration, index, 0, 4)
	if err != nil {
		return nil, err
	}
	if len(header) < 4 {
		return nil, &usbdesc.DescriptorError{Offset: len(header), Reason: "configuration header too short"}
	}

	total := binary.LittleEndian.Uint16(header[2:])
	data, err := getDescriptor(ctx, t, protocol.DescriptorTypeConfiguration, index, 0, total)
	if err != nil {
		return nil, err
	}
	return usbdesc.ParseConfigurationDescriptor(data)
}

// ReadStringDescriptor reads string descriptor index in language langID,
// first fetching bLength.
func ReadStringDescriptor(ctx context.Context, t Transport, index uint8, langID uint16) (string, error) {
	data, err := readRawString(ctx, t, index, langID)
	if err != nil {
		return "", err
	}
	return usbdesc.ParseStringDescriptor(data)
}

// ReadLanguageIDs reads string descriptor zero.
func ReadLanguageIDs(ctx context.Context, t Transport) ([]uint16, error) {
	data, err := readRawString(ctx, t, 0, 0)
	if err != nil {
		return nil, err
	}
	return usbdesc.ParseLanguageIDs(data)
}

func readRawString(ctx context.Context, t Transport, index uint8, langID uint16) ([]byte, error) {
	head, err := getDescriptor(ctx, t, protocol.DescriptorTypeString, index, langID, 1)
	if err != nil {
		return nil, err
	}
	if len(head) < 1 {
		return nil, &usbdesc.DescriptorError{Offset: 0, Reason: "empty string descriptor"}
	}

	return getDescriptor(ctx, t, protocol.DescriptorTypeString, index, langID, uint16(head[0]))
}

// FindInterfaces reads every configuration and returns its DFU alternate settings,
// with interface names resolved in US English.
func FindInterfaces(ctx context.Context, t Transport) ([]usbdesc.InterfaceSetting, error) {
	dev, err := ReadDeviceDescriptor(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("read device descriptor: %w", err)
	}

	configs := make([]*usbdesc.ConfigurationDescriptor, 0, dev.NumConfigurations)
	for i := uint8(0); i < dev.NumConfigurations; i++ {
		cfg, err := ReadConfigurationDescriptor(ctx, t, i)
		if err != nil {
			return nil, fmt.Errorf("read configuration %d: %w", i, err)
		}
		configs = append(configs, cfg)
	}

	settings := usbdesc.FindDFUInterfaces(configs)
	for i := range settings {
		if settings[i].NameIndex == 0 {
			continue
		}
		name, err := ReadStringDescriptor(ctx, t, settings[i].NameIndex, protocol.LangIDEnglishUS)
		if err != nil {
			return nil, fmt.Errorf("read name of interface %d alt %d: %w",
				settings[i].Interface, settings[i].Alternate, err)
		}
		settings[i].Name = name
	}

	return settings, nil
}
