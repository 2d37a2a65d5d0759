package device

import (
	"errors"
	"sync"
)

// ErrAlreadyRegistered is returned by Add for a device already in the registry.
var ErrAlreadyRegistered = errors.New("device already registered")

// Registry holds the set of connected devices. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	devices []*Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers dev. Duplicates by serial number are allowed; use
// CheckDuplicate first to detect them.
func (r *Registry) Add(dev *Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d == dev {
			return ErrAlreadyRegistered
		}
	}
	r.devices = append(r.devices, dev)
	return nil
}

// Remove unregisters dev and reports whether it was present.
func (r *Registry) Remove(dev *Info) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.devices {
		if d == dev {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a snapshot of the registered devices.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Info, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// CheckDuplicate checks newDev against the registered devices.
func (r *Registry) CheckDuplicate(newDev *Info) DuplicateCheckResult {
	return CheckDuplicate(newDev, r.List())
}
