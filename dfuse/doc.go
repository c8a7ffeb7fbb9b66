// Package dfuse adds the ST DfuSe extension on top of package dfu.
//
// DfuSe devices describe their memory in the interface name of each alternate
// setting, for example
//
//	@Internal Flash  /0x08000000/04*016Kg,01*064Kg,07*128Kg
//
// and accept SET_ADDRESS and ERASE_SECTOR commands carried by block-0 downloads.
// A Device embeds *dfu.Device, so the plain DFU requests remain available:
//
//	base := dfu.New(transport, setting)
//	props, _ := base.ReadProperties(ctx)
//	if dfuse.Supported(props, setting) {
//	    dev, err := dfuse.New(base)
//	    if err != nil {
//	        return err
//	    }
//	    dev.SetStartAddress(0x08000000)
//	    err = dev.DownloadAll(ctx, base.TransferSize(), image, false)
//	}
//
// Reads rely on the device computing addresses as pointer + (block - 2) * transferSize,
// so UploadAll must use the device transfer size as chunk size.
package dfuse
