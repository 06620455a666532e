package gputune

import (
	"fmt"
	"sync"
)

// fakeDriver is an in-memory Driver double for the package's tests
// (cmd/gputune-harness uses its own simDriver). It models a device with a configurable capacity
// and an effectively unbounded pinned-host pool, so device-exhaustion
// fallback (spec §8 property 6) is exercisable deterministically.
type fakeDriver struct {
	mu          sync.Mutex
	deviceTotal uint64
	deviceFree  uint64
	nextPtr     uintptr
	contextLive bool
	deviceSize  map[uintptr]uint64  // device ptr -> size, for DeviceFree accounting
	hostToDev   map[uintptr]uintptr // host ptr -> synthetic mapped device ptr
}

// newFakeDriver returns a fakeDriver whose device has deviceTotal bytes
// of capacity, all initially free.
func newFakeDriver(deviceTotal uint64) *fakeDriver {
	return &fakeDriver{
		deviceTotal: deviceTotal,
		deviceFree:  deviceTotal,
		nextPtr:     1,
		deviceSize:  make(map[uintptr]uint64),
		hostToDev:   make(map[uintptr]uintptr),
	}
}

func (d *fakeDriver) allocPtr() uintptr {
	p := d.nextPtr
	d.nextPtr++
	return p
}

func (d *fakeDriver) ContextAttach() (uintptr, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.contextLive {
		return 1, true
	}
	return 0, false
}

func (d *fakeDriver) ContextCreate(uintptr) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contextLive = true
	return 1, nil
}

func (d *fakeDriver) ContextDestroy(uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contextLive = false
	return nil
}

func (d *fakeDriver) DeviceAlloc(size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size > d.deviceFree {
		return 0, fmt.Errorf("fakedriver: device alloc %d bytes: %w", size, ErrDeviceOutOfMemory)
	}
	d.deviceFree -= size
	ptr := d.allocPtr()
	d.deviceSize[ptr] = size
	return ptr, nil
}

func (d *fakeDriver) DeviceFree(ptr uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size, ok := d.deviceSize[ptr]; ok {
		d.deviceFree += size
		delete(d.deviceSize, ptr)
	}
	return nil
}

func (d *fakeDriver) HostPinnedAlloc(size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	host := d.allocPtr()
	d.hostToDev[host] = d.allocPtr()
	return host, nil
}

func (d *fakeDriver) HostPinnedFree(hostPtr uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.hostToDev, hostPtr)
	return nil
}

func (d *fakeDriver) HostPinnedToDevicePtr(hostPtr uintptr) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostToDev[hostPtr], nil
}

func (d *fakeDriver) QueryFreeMemory() (free, total uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceFree, d.deviceTotal, nil
}
