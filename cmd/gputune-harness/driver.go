package main

import (
	"fmt"
	"sync"
)

// simDriver is a minimal, in-process stand-in for an accelerator driver,
// used only to give this demo harness something to tune against. Real
// callers supply their own gputune.Driver backed by an actual CUDA/ROCm
// binding.
type simDriver struct {
	mu          sync.Mutex
	deviceTotal uint64
	deviceFree  uint64
	nextPtr     uintptr
	contextLive bool
	deviceSize  map[uintptr]uint64
	hostToDev   map[uintptr]uintptr
}

func newSimDriver(deviceTotal uint64) *simDriver {
	return &simDriver{
		deviceTotal: deviceTotal,
		deviceFree:  deviceTotal,
		nextPtr:     1,
		deviceSize:  make(map[uintptr]uint64),
		hostToDev:   make(map[uintptr]uintptr),
	}
}

func (d *simDriver) allocPtr() uintptr {
	p := d.nextPtr
	d.nextPtr++
	return p
}

func (d *simDriver) ContextAttach() (uintptr, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.contextLive {
		return 1, true
	}
	return 0, false
}

func (d *simDriver) ContextCreate(uintptr) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contextLive = true
	return 1, nil
}

func (d *simDriver) ContextDestroy(uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contextLive = false
	return nil
}

func (d *simDriver) DeviceAlloc(size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size > d.deviceFree {
		return 0, fmt.Errorf("simdriver: device alloc %d bytes exceeds %d free", size, d.deviceFree)
	}
	d.deviceFree -= size
	ptr := d.allocPtr()
	d.deviceSize[ptr] = size
	return ptr, nil
}

func (d *simDriver) DeviceFree(ptr uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size, ok := d.deviceSize[ptr]; ok {
		d.deviceFree += size
		delete(d.deviceSize, ptr)
	}
	return nil
}

func (d *simDriver) HostPinnedAlloc(size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	host := d.allocPtr()
	d.hostToDev[host] = d.allocPtr()
	return host, nil
}

func (d *simDriver) HostPinnedFree(hostPtr uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.hostToDev, hostPtr)
	return nil
}

func (d *simDriver) HostPinnedToDevicePtr(hostPtr uintptr) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostToDev[hostPtr], nil
}

func (d *simDriver) QueryFreeMemory() (free, total uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceFree, d.deviceTotal, nil
}
