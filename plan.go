package gputune

import "golang.org/x/exp/constraints"

// PlanEntry is one allocation site ("knob"), stable across tuning
// iterations once assigned during the zeroth iteration.
type PlanEntry struct {
	ID   int
	Size uint64
	Loc  Location

	// InLoop marks a knob whose allocation is repeatedly performed and
	// released within a single tuning iteration. Loop detection keys on
	// (Size, no live pointer), which aliases distinct knobs that happen
	// to share a size and be released simultaneously within an
	// iteration; this is an acknowledged, documented limitation carried
	// from the original implementation, not a bug to silently patch.
	InLoop bool

	// FirstHit is true until this knob is consumed once in the current
	// tuning iteration; only meaningful for InLoop entries.
	FirstHit bool

	// GoldMember marks a knob that was live at the peak-aggregate-live
	// moment of the zeroth iteration. Only gold members count toward the
	// device-memory-utilization constraint during search.
	GoldMember bool

	// HostPtr is the host-side pointer when Loc == LocationPinnedHost,
	// else 0.
	HostPtr uintptr
	// DevicePtr is the device-side pointer (direct device memory, or the
	// device mapping of pinned host memory); 0 when released.
	DevicePtr uintptr
}

// live reports whether the entry currently holds an allocation.
func (e *PlanEntry) live() bool { return e.DevicePtr != 0 }

// Plan is the ordered list of PlanEntry values that make up one placement
// assignment. Order is insertion order at the zeroth tuning iteration,
// which is also id order; this ordering must be reproducible across
// iterations for knob stability (spec §8 property 2) to hold.
type Plan struct {
	entries []*PlanEntry
}

// Len returns the number of knobs currently in the plan.
func (p *Plan) Len() int { return len(p.entries) }

// At returns the entry at position i in insertion order.
func (p *Plan) At(i int) *PlanEntry { return p.entries[i] }

// Append adds a newly-materialized entry to the end of the plan.
func (p *Plan) Append(e *PlanEntry) { p.entries = append(p.entries, e) }

// ByID returns the entry whose ID matches id, or nil.
func (p *Plan) ByID(id int) *PlanEntry {
	for _, e := range p.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ByDevicePtr returns the entry currently holding ptr as its device
// pointer, or nil.
func (p *Plan) ByDevicePtr(ptr uintptr) *PlanEntry {
	for _, e := range p.entries {
		if e.DevicePtr == ptr {
			return e
		}
	}
	return nil
}

// findReleasedBySize returns the first entry with the given size and no
// live pointer. When requireInLoop is true, only entries already marked
// InLoop are considered (the post-zeroth re-hit scan); otherwise any
// released entry of matching size qualifies (the zeroth-iteration loop
// detector, which is what marks InLoop in the first place).
func (p *Plan) findReleasedBySize(size uint64, requireInLoop bool) *PlanEntry {
	for _, e := range p.entries {
		if e.Size == size && !e.live() {
			if requireInLoop && !e.InLoop {
				continue
			}
			return e
		}
	}
	return nil
}

// findLoopyRehit returns the InLoop entry of the given size that has
// already been through its first hit this iteration and is currently
// released, or nil. This is the post-zeroth-iteration re-hit test (the
// original's loopy_entry second-hit-or-later branch).
func (p *Plan) findLoopyRehit(size uint64) *PlanEntry {
	for _, e := range p.entries {
		if e.Size == size && e.InLoop && !e.live() && !e.FirstHit {
			return e
		}
	}
	return nil
}

// AllDevice reports whether every entry in the plan is placed in device
// global memory (used at zeroth-iteration end to short-circuit search).
func (p *Plan) AllDevice() bool {
	for _, e := range p.entries {
		if e.Loc != LocationDevice {
			return false
		}
	}
	return true
}

// Equal reports whether two plans describe the same assignment, ignoring
// transient runtime-only fields (HostPtr, DevicePtr, FirstHit,
// GoldMember) per spec §4.1's round-trip property.
func (p *Plan) Equal(o *Plan) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i, e := range p.entries {
		f := o.entries[i]
		if e.ID != f.ID || e.Size != f.Size || e.Loc != f.Loc || e.InLoop != f.InLoop {
			return false
		}
	}
	return true
}

// bitset is a small fixed-width bit container over an unsigned integer,
// one bit per knob. The search engines do not use it: they shift plain
// uint64 bit-vectors directly and share only mask below.
type bitset[T constraints.Unsigned] struct {
	bits T
}

func (b bitset[T]) get(i int) uint64 {
	return uint64((b.bits >> uint(i)) & 1)
}

func (b *bitset[T]) set(i int, v uint64) {
	mask := T(1) << uint(i)
	if v&1 != 0 {
		b.bits |= mask
	} else {
		b.bits &^= mask
	}
}

// mask returns a T with the low n bits set, the rest clear.
func mask[T constraints.Unsigned](n int) T {
	if n <= 0 {
		return 0
	}
	var full T
	full = ^full
	if n >= bitWidth[T]() {
		return full
	}
	return ^(full << uint(n))
}

func bitWidth[T constraints.Unsigned]() int {
	var z T
	switch any(z).(type) {
	case uint8:
		return 8
	case uint16:
		return 16
	case uint32:
		return 32
	case uint64:
		return 64
	default:
		return 64
	}
}
