package gputune

import "errors"

// ErrDeviceOutOfMemory is returned by Driver allocation methods when the
// accelerator has insufficient free memory to satisfy the request. The
// interposer treats this as recoverable: it triggers fallback to pinned
// host memory (placeEntry) or, if that also fails, propagates as an
// allocation failure to the caller.
var ErrDeviceOutOfMemory = errors.New("gputune: device out of memory")

// Driver is the accelerator driver surface the core assumes but never
// implements (spec §1, §6): device/host-pinned allocation, the
// corresponding frees, host-to-device pointer mapping, free-memory
// queries, and the minimal context lifecycle the framework glue drives.
// A production binding wraps a real accelerator API (e.g. the CUDA
// driver API's cuMemAlloc/cuMemHostAlloc/cuMemGetInfo family); the
// package's tests use fakeDriver, and cmd/gputune-harness carries its own
// simDriver.
type Driver interface {
	// ContextAttach latches onto an accelerator context the host runtime
	// already created, reporting ok=false if none exists.
	ContextAttach() (handle uintptr, ok bool)
	// ContextCreate creates a fresh accelerator context on device, with
	// automatic scheduling and host-mapping enabled.
	ContextCreate(device uintptr) (handle uintptr, err error)
	ContextDestroy(handle uintptr) error

	// DeviceAlloc allocates size bytes of device global memory.
	DeviceAlloc(size uint64) (ptr uintptr, err error)
	DeviceFree(ptr uintptr) error

	// HostPinnedAlloc allocates size bytes of portable, device-mapped,
	// write-combined pinned host memory.
	HostPinnedAlloc(size uint64) (hostPtr uintptr, err error)
	HostPinnedFree(hostPtr uintptr) error
	// HostPinnedToDevicePtr returns the device-side view of a pinned
	// host allocation.
	HostPinnedToDevicePtr(hostPtr uintptr) (devPtr uintptr, err error)

	// QueryFreeMemory reports free and total device memory, in bytes.
	QueryFreeMemory() (free, total uint64, err error)
}
