package gputune

import "fmt"

// deviceHeadroomBytes is the fixed safety margin subtracted from free
// device memory when judging candidate feasibility (spec §4.4).
const deviceHeadroomBytes = 20 * 1024 * 1024

// zerothLookup is the shared zeroth-iteration allocate() handler used by
// every Engine (spec §4.4 "Zeroth-iteration lookup"). handled is false
// when ctx.TuneIter != 0, signalling the caller to use its own
// steady-state lookup path instead of falling through silently.
func zerothLookup(ctx *Context, size uint64) (handled bool, entry *PlanEntry, err error) {
	if ctx.TuneIter != 0 {
		return false, nil, nil
	}

	if loopy := ctx.Plan.findReleasedBySize(size, false); loopy != nil {
		loopy.InLoop = true
		if err := placeEntry(ctx, loopy, size); err != nil {
			return true, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		return true, loopy, nil
	}

	e := &PlanEntry{
		ID:       ctx.CurrentKnob,
		Loc:      LocationDevice,
		FirstHit: true,
	}
	if err := placeEntry(ctx, e, size); err != nil {
		return true, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	ctx.Plan.Append(e)
	ctx.CurrentKnob++
	return true, e, nil
}

// zerothEnd is the shared zeroth-iteration end() handler (spec §4.4
// "Zeroth-iteration end"). done is true when the plan fit entirely in
// device memory and the session has already transitioned to RUN.
func zerothEnd(ctx *Context) (handled bool, done bool, err error) {
	if ctx.TuneIter != 0 {
		return false, false, nil
	}

	if ctx.Plan.AllDevice() {
		ctx.Mode = ModeRun
		if err := WritePlan(ctx); err != nil {
			return true, false, err
		}
		logTuneEvent(ctx, "zeroth iteration fit entirely in device memory")
		return true, true, nil
	}

	ctx.NumKnobs = ctx.CurrentKnob
	if ctx.NumKnobs > 64 {
		logFatal(ctx, ErrSearchSpaceOverflow)
		return true, false, ErrSearchSpaceOverflow
	}
	return true, false, nil
}

// loopyLookup is the shared post-zeroth-iteration allocate() handler
// (spec §4.4 "Post-zeroth lookup", the original's loopy_entry). When
// rehit is true, entry has already been placed by this call and the
// caller must return it without advancing CurrentKnob. When rehit is
// false, entry is the knob at ctx.CurrentKnob (with FirstHit cleared if
// it is an InLoop entry seeing its first hit); the caller owns assigning
// Loc, calling placeEntry, and advancing CurrentKnob.
func loopyLookup(ctx *Context, size uint64) (rehit bool, entry *PlanEntry, err error) {
	if e := ctx.Plan.findLoopyRehit(size); e != nil {
		if err := placeEntry(ctx, e, size); err != nil {
			return true, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		return true, e, nil
	}

	e := ctx.Plan.ByID(ctx.CurrentKnob)
	if e == nil {
		logFatal(ctx, ErrPlanInconsistent)
		return false, nil, fmt.Errorf("%w: no entry for knob %d", ErrPlanInconsistent, ctx.CurrentKnob)
	}
	if e.InLoop {
		e.FirstHit = false
	}
	return false, e, nil
}

// goldMemberDeviceDemand sums the sizes of gold-member entries that the
// candidate bit-vector dna assigns to device placement (spec §4.4).
func goldMemberDeviceDemand(ctx *Context, dna uint64) uint64 {
	var demand uint64
	for i := 0; i < ctx.Plan.Len(); i++ {
		e := ctx.Plan.At(i)
		if !e.GoldMember {
			continue
		}
		if locationFromBit((dna>>uint(e.ID))&1) == LocationDevice {
			demand += e.Size
		}
	}
	return demand
}

// withinUtilizationWindow reports whether demand falls in
// [gpuMemFree*percent/100, gpuMemFree-deviceHeadroomBytes), the
// acceptance window a candidate's gold-member device demand must satisfy
// to be considered during search (spec §4.4, §8 property 4).
func withinUtilizationWindow(demand, gpuMemFree uint64, percent int) bool {
	if gpuMemFree < deviceHeadroomBytes {
		return false
	}
	min := gpuMemFree * uint64(percent) / 100
	max := gpuMemFree - deviceHeadroomBytes
	return demand >= min && demand < max
}
