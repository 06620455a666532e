package gputune

import "errors"

// Fatal conditions (spec §7). The original terminates the process on
// each of these; this port returns them as errors instead, leaving the
// decision to abort to the caller (see cmd/gputune-harness for a
// terminate-on-fatal caller).
var (
	// ErrPlanInconsistent is returned by Allocate during RUN mode when an
	// allocation matches neither the current knob nor any inloop entry:
	// the plan file does not describe the running program.
	ErrPlanInconsistent = errors.New("gputune: allocation does not match plan (plan inconsistent with program)")

	// ErrInvalidPointer is returned by Release when no plan entry holds
	// the given device pointer.
	ErrInvalidPointer = errors.New("gputune: release of pointer not owned by any plan entry")

	// ErrSearchSpaceOverflow is returned at zeroth-iteration end when the
	// number of discovered knobs exceeds the 64-bit bit-vector capacity.
	ErrSearchSpaceOverflow = errors.New("gputune: number of knobs exceeds 64-bit search space limit")

	// ErrUnknownLocation is returned when a PlanEntry or plan file record
	// names a placement other than device/pinned-host.
	ErrUnknownLocation = errors.New("gputune: unrecognized memory location")

	// ErrUnknownTunerAction indicates a programming error: an Engine was
	// invoked outside its Start/Lookup/End contract.
	ErrUnknownTunerAction = errors.New("gputune: unknown tuner action")

	// ErrPlanNotFound is returned by ReadPlan when the named plan file
	// does not exist.
	ErrPlanNotFound = errors.New("gputune: plan file not found")

	// ErrAllocationFailed is returned by Allocate when both device and
	// pinned-host placement attempts fail.
	ErrAllocationFailed = errors.New("gputune: allocation failed on every placement strategy")

	// ErrContextLimitReached is returned by Registry.Acquire when the
	// configured maximum number of simultaneous Contexts is already in use
	// and ctx is canceled before a slot frees up.
	ErrContextLimitReached = errors.New("gputune: context registry at capacity")
)
