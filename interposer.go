package gputune

import (
	"fmt"

	"github.com/pbnjay/memory"
)

// placeEntry is the core allocation primitive with fallback (spec §4.3).
// If entry.Loc is LocationDevice, it tries device allocation first,
// falling back to pinned host memory on failure — an environment-induced
// mutation of entry.Loc that search engines must observe and reconcile
// against their candidate state. If entry.Loc is LocationPinnedHost, it
// allocates pinned host memory directly.
func placeEntry(ctx *Context, entry *PlanEntry, size uint64) error {
	switch entry.Loc {
	case LocationDevice:
		ptr, err := ctx.Driver.DeviceAlloc(size)
		if err == nil {
			entry.DevicePtr = ptr
			entry.Size = size
			return nil
		}
		logFallback(ctx, entry, err.Error())
		entry.Loc = LocationPinnedHost
		return placePinned(ctx, entry, size)
	case LocationPinnedHost:
		return placePinned(ctx, entry, size)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownLocation, entry.Loc)
	}
}

// placePinned allocates pinned host memory and its device mapping,
// consulting an advisory host-memory free-space check first so a
// predictable exhaustion produces an earlier, clearer diagnostic than
// waiting for the driver call to fail (the driver call remains the
// authoritative source of truth).
func placePinned(ctx *Context, entry *PlanEntry, size uint64) error {
	if free := memory.FreeMemory(); free != 0 && size > free {
		logFallback(ctx, entry, fmt.Sprintf("host free memory %d below requested %d", free, size))
	}

	host, err := ctx.Driver.HostPinnedAlloc(size)
	if err != nil {
		return fmt.Errorf("gputune: pinned host alloc of %d bytes: %w", size, err)
	}
	dev, err := ctx.Driver.HostPinnedToDevicePtr(host)
	if err != nil {
		_ = ctx.Driver.HostPinnedFree(host)
		return fmt.Errorf("gputune: map pinned host memory: %w", err)
	}
	entry.HostPtr = host
	entry.DevicePtr = dev
	entry.Size = size
	return nil
}

// Allocate is the interposed allocation entry point (spec §4.3).
func Allocate(ctx *Context, size uint64) (uintptr, error) {
	switch ctx.Mode {
	case ModeRun:
		return allocateRun(ctx, size)
	case ModeTune:
		return allocateTune(ctx, size)
	default:
		return 0, fmt.Errorf("%w: mode %v", ErrUnknownTunerAction, ctx.Mode)
	}
}

func allocateRun(ctx *Context, size uint64) (uintptr, error) {
	if entry := ctx.Plan.ByID(ctx.CurrentKnob); entry != nil {
		if err := placeEntry(ctx, entry, size); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		ctx.CurrentKnob++
		return entry.DevicePtr, nil
	}

	// Knob id exceeds those found in plan: must be a re-hit of a
	// malloc/free loop.
	entry := ctx.Plan.findReleasedBySize(size, true)
	if entry == nil {
		logFatal(ctx, ErrPlanInconsistent)
		return 0, ErrPlanInconsistent
	}
	if err := placeEntry(ctx, entry, size); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	return entry.DevicePtr, nil
}

func allocateTune(ctx *Context, size uint64) (uintptr, error) {
	entry, err := ctx.engine.Lookup(ctx, size)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, ErrAllocationFailed
	}
	if ctx.TuneIter == 0 {
		ctx.AllocatedMem += size
	}
	return entry.DevicePtr, nil
}

// Release is the interposed release entry point (spec §4.3).
func Release(ctx *Context, ptr uintptr) error {
	entry := ctx.Plan.ByDevicePtr(ptr)
	if entry == nil {
		logFatal(ctx, ErrInvalidPointer)
		return ErrInvalidPointer
	}

	if ctx.Mode == ModeTune && ctx.TuneIter == 0 {
		trackPeakLive(ctx, entry)
	}

	return freeEntry(ctx, entry)
}

// trackPeakLive implements the zeroth-iteration gold-member accounting
// (spec §4.3): whenever a free leaves the running live-set at a new peak,
// every currently-live entry is snapshotted as a gold member.
func trackPeakLive(ctx *Context, freed *PlanEntry) {
	if ctx.AllocatedMem > ctx.MostMemAllocated {
		ctx.MostMemAllocated = ctx.AllocatedMem
		for i := 0; i < ctx.Plan.Len(); i++ {
			e := ctx.Plan.At(i)
			e.GoldMember = e.live()
		}
	}
	ctx.AllocatedMem -= freed.Size
}

func freeEntry(ctx *Context, entry *PlanEntry) error {
	if entry.HostPtr != 0 {
		if err := ctx.Driver.HostPinnedFree(entry.HostPtr); err != nil {
			return fmt.Errorf("gputune: free pinned host memory: %w", err)
		}
		entry.HostPtr = 0
		entry.DevicePtr = 0
		return nil
	}
	if err := ctx.Driver.DeviceFree(entry.DevicePtr); err != nil {
		return fmt.Errorf("gputune: free device memory: %w", err)
	}
	entry.DevicePtr = 0
	return nil
}
