// Package registry tracks the devices currently online, keyed by
// serial number. Each entry is a live session; resolving a serial
// retains the session so it cannot be torn down mid-use.
package registry

import (
	"errors"
	"sync"

	"github.com/easydarwin/easycms-go/pkg/protocol"
)

// Registry errors.
var (
	// ErrNotFound indicates no device with the serial is online.
	ErrNotFound = errors.New("registry: device not found")

	// ErrSerialConflict indicates the serial is already registered
	// by another session.
	ErrSerialConflict = errors.New("registry: serial already registered")
)

// Device is the registry's view of a registered device session.
type Device interface {
	// ID returns the session's unique identifier.
	ID() string

	// Entry returns the device's directory information.
	Entry() protocol.DeviceEntry

	// Retain increments the session's holder count, preventing
	// teardown until a matching Release.
	Retain()

	// Release decrements the holder count.
	Release()

	// Kill tears the session down asynchronously.
	Kill(reason string)
}

// Registry is the serial-keyed index of online devices.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device

	// callbacks for presence events.
	onRegistered func(serial string, d Device)
	onRemoved    func(serial string)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices: make(map[string]Device),
	}
}

// OnRegistered sets the callback invoked after a successful Register.
func (r *Registry) OnRegistered(fn func(serial string, d Device)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRegistered = fn
}

// OnRemoved sets the callback invoked after a device is removed.
func (r *Registry) OnRemoved(fn func(serial string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemoved = fn
}

// Register adds d under serial. If another session already holds the
// serial it returns that session and ErrSerialConflict; the caller
// decides the incumbent's fate.
func (r *Registry) Register(serial string, d Device) (Device, error) {
	r.mu.Lock()
	if existing, ok := r.devices[serial]; ok && existing.ID() != d.ID() {
		r.mu.Unlock()
		return existing, ErrSerialConflict
	}
	r.devices[serial] = d
	fn := r.onRegistered
	r.mu.Unlock()

	if fn != nil {
		fn(serial, d)
	}
	return nil, nil
}

// Unregister removes serial, but only while it still maps to d.
// A session that lost its serial to a newer registration must not
// remove the newer session on its way out.
func (r *Registry) Unregister(serial string, d Device) {
	r.mu.Lock()
	existing, ok := r.devices[serial]
	if !ok || existing.ID() != d.ID() {
		r.mu.Unlock()
		return
	}
	delete(r.devices, serial)
	fn := r.onRemoved
	r.mu.Unlock()

	if fn != nil {
		fn(serial)
	}
}

// Resolve returns the device registered under serial, retained.
// The caller must Release the device when done with it.
func (r *Registry) Resolve(serial string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[serial]
	if !ok {
		return nil, ErrNotFound
	}
	d.Retain()
	return d, nil
}

// Has reports whether serial is currently registered.
func (r *Registry) Has(serial string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[serial]
	return ok
}

// Len returns the number of online devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Snapshot returns the directory entries of all online devices.
func (r *Registry) Snapshot() []protocol.DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]protocol.DeviceEntry, 0, len(r.devices))
	for _, d := range r.devices {
		entries = append(entries, d.Entry())
	}
	return entries
}
