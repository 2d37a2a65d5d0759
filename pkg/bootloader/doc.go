// Package bootloader drives firmware updates through the device HID
// bootloader.
//
// A Session owns a hid.ReportDevice and runs one command at a time: each
// request is written as a single report and answered by a single report.
// A full update is:
//
//	RequestVersion -> [EraseFlash] -> ProgramFlash x N -> JumpToApplication
//
// Any failure while programming is fatal for the update. The remaining
// records are not sent and the caller must restart from the beginning;
// there is no resume.
//
// Example:
//
//	dev, _ := hid.OpenUSB(0x04D8, 0x003C, hid.Options{})
//	s := bootloader.New(dev,
//	    bootloader.WithEraseBeforeFlash(true),
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%s %d%%\n", p.Phase, p.Percent)
//	    }),
//	)
//	records, _ := hexfile.LoadFile("app.hex", hexfile.Range{Begin: 0x1FC00000, End: 0x1FC02FFF})
//	err := s.Flash(ctx, hexfile.RawRecords(records))
package bootloader
