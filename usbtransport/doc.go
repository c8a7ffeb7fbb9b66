// Package usbtransport connects package dfu to real hardware through libusb.
//
//	finder := usbtransport.NewFinder()
//	defer finder.Close()
//
//	transports, err := finder.Find(ctx, calculator.CalculatorMatch(""))
//	if err != nil || len(transports) == 0 {
//	    return err
//	}
//	calc, err := calculator.Connect(ctx, transports[0])
//
// Building requires cgo and the libusb-1.0 headers.
package usbtransport
