package bootloader

import "fmt"

// FirmwareUpdateError reports the record at which programming failed. The
// device is left partially programmed and the update must be restarted.
type FirmwareUpdateError struct {
	// Index is the 0-based record index.
	Index int
	Total int
	Cause error
}

func (e *FirmwareUpdateError) Error() string {
	return fmt.Sprintf("firmware update failed at record %d of %d: %v", e.Index+1, e.Total, e.Cause)
}

// Unwrap returns the cause.
func (e *FirmwareUpdateError) Unwrap() error {
	return e.Cause
}
