package blockdev

import (
	"fmt"
	"sync"
)

// maxRegisteredDevices is a small, fixed ceiling: a handful of ramdisks
// and disk images, no hot-plug.
const maxRegisteredDevices = 16

// Registry is a process-wide named directory of block devices. Name
// uniqueness is enforced at registration time.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]Device
	ordered []string
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Device)}
}

// Register adds a device under its own Name(). Fails if a device with the
// same name is already registered or the registry is full.
func (r *Registry) Register(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name()]; exists {
		return fmt.Errorf("blockdev: device %q already registered", d.Name())
	}
	if len(r.ordered) >= maxRegisteredDevices {
		return fmt.Errorf("blockdev: registry full (max %d devices)", maxRegisteredDevices)
	}
	r.byName[d.Name()] = d
	r.ordered = append(r.ordered, d.Name())
	return nil
}

// Lookup returns the device registered under name, or false if none exists.
func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	return d, ok
}

// Unregister removes a device by name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for i, n := range r.ordered {
		if n == name {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
}

// Names returns the registered device names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// DefaultRegistry is the process-wide registry vfs.MountRootDefault looks
// the root device up in.
var DefaultRegistry = NewRegistry()
