package device

import "strings"

// DuplicateCheckResult reports whether a new device is already connected
// over another transport. The device references are borrowed.
type DuplicateCheckResult struct {
	IsDuplicate bool
	Existing    *Info
	New         *Info

	ExistingLabel string
	NewLabel      string
}

// CheckDuplicate compares newDev against connected by serial number,
// ignoring case. A blank serial number never matches. The result only
// describes the match; what to do about it is up to the caller.
func CheckDuplicate(newDev *Info, connected []*Info) DuplicateCheckResult {
	res := DuplicateCheckResult{New: newDev}
	if newDev == nil {
		return res
	}
	res.NewLabel = label(newDev)

	serial := strings.TrimSpace(newDev.SerialNo)
	if serial == "" {
		return res
	}
	for _, dev := range connected {
		if dev == nil || dev == newDev {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(dev.SerialNo), serial) {
			res.IsDuplicate = true
			res.Existing = dev
			res.ExistingLabel = label(dev)
			return res
		}
	}
	return res
}

func label(d *Info) string {
	switch d.Transport {
	case TransportUSB:
		return "USB"
	case TransportWiFi:
		return "WiFi"
	default:
		return string(d.Transport)
	}
}
