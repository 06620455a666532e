package gputune

import (
	stdcontext "context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mode is the Context's operation mode (spec §3).
type Mode uint8

const (
	// ModeRun replays a previously discovered plan.
	ModeRun Mode = iota
	// ModeTune searches for a plan.
	ModeTune
)

func (m Mode) String() string {
	if m == ModeTune {
		return "tune"
	}
	return "run"
}

// defaultGPUMemPercent is the default lower bound on device utilization a
// candidate must satisfy to be considered during search (spec §4.2).
const defaultGPUMemPercent = 90

// Context is per-session tuning state (spec §3). One Context exists per
// logical tuning session, acquired from a Registry by caller identity.
type Context struct {
	Project  string
	PlanName string

	Mode Mode
	Plan Plan

	NumKnobs    int
	CurrentKnob int

	TuneIter    uint64
	TuneIterMax uint64

	BestPlan uint64
	BestTime float64 // seconds; +Inf until a feasible candidate is timed

	StartTime float64 // seconds, per Driver-agnostic wall clock (see now())

	GPUMemPercent int

	AllocatedMem     uint64 // only valid during the zeroth tuning iteration
	MostMemAllocated uint64

	AcceleratorContext uintptr
	ownsAccelerator    bool

	Driver Driver
	engine Engine

	// engineState is the opaque per-engine state slot (spec §3's
	// "tuner_state"); each Engine implementation owns its own type here.
	engineState any
}

// ContextOption configures a Context at acquisition time.
type ContextOption func(*Context)

// WithProject sets the on-disk plan project directory.
func WithProject(name string) ContextOption {
	return func(c *Context) { c.Project = name }
}

// WithPlanName sets the on-disk plan file name.
func WithPlanName(name string) ContextOption {
	return func(c *Context) { c.PlanName = name }
}

// WithEngine selects the tuner engine. Defaults to ExhaustiveEngine.
func WithEngine(e Engine) ContextOption {
	return func(c *Context) { c.engine = e }
}

// WithMinimumUtilization sets the lower bound, as a percentage, on device
// memory utilization a candidate must meet to be considered during
// search.
func WithMinimumUtilization(percent int) ContextOption {
	return func(c *Context) { c.GPUMemPercent = percent }
}

// WithDriver sets the accelerator driver. Acquire does not check for one;
// SessionStart returns an error if the Context has no driver.
func WithDriver(d Driver) ContextOption {
	return func(c *Context) { c.Driver = d }
}

func newContext(opts ...ContextOption) *Context {
	c := &Context{
		Project:       "phantom_project",
		PlanName:      "phantom_plan",
		Mode:          ModeRun,
		GPUMemPercent: defaultGPUMemPercent,
		BestTime:      math.Inf(1),
		engine:        &ExhaustiveEngine{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetProject is the user-facing equivalent of the original's
// cuzmem_set_project.
func (c *Context) SetProject(name string) { c.Project = name }

// SetPlanName is the user-facing equivalent of cuzmem_set_plan.
func (c *Context) SetPlanName(name string) { c.PlanName = name }

// SetEngine is the user-facing equivalent of cuzmem_set_tuner.
func (c *Context) SetEngine(e Engine) { c.engine = e }

// SetMinimumUtilization is the user-facing equivalent of
// cuzmem_set_minimum.
func (c *Context) SetMinimumUtilization(percent int) { c.GPUMemPercent = percent }

// Registry owns a bounded set of Contexts, keyed by an arbitrary caller
// identity (spec §4.2, §9: "better expressed as a map from caller-identity
// to owning Context pointer, guarded by a lock"). The bound on
// simultaneous sessions — fixed at 256 in the original and called out in
// spec §9 as "arbitrary and should be lifted" — is instead a constructor
// parameter enforced with a weighted semaphore.
type Registry struct {
	mu       sync.Mutex
	sessions map[any]*Context
	sem      *semaphore.Weighted
}

// NewRegistry returns a Registry admitting at most maxContexts
// simultaneous sessions.
func NewRegistry(maxContexts int64) *Registry {
	return &Registry{
		sessions: make(map[any]*Context),
		sem:      semaphore.NewWeighted(maxContexts),
	}
}

// Acquire returns the Context for callerID, creating one with defaults
// (and the supplied options) if absent. If the registry is at capacity,
// Acquire blocks until a slot frees or ctx is canceled.
func (r *Registry) Acquire(ctx stdcontext.Context, callerID any, opts ...ContextOption) (*Context, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[callerID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextLimitReached, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// re-check: a racing Acquire for the same callerID may have won while
	// we waited on the semaphore (single-threaded-per-session contract
	// still allows distinct callers to contend on admission).
	if existing, ok := r.sessions[callerID]; ok {
		r.sem.Release(1)
		return existing, nil
	}
	c := newContext(opts...)
	r.sessions[callerID] = c
	return c, nil
}

// Release destroys the Context for callerID, if one exists, and frees its
// registry slot.
func (r *Registry) Release(callerID any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callerID]; ok {
		delete(r.sessions, callerID)
		r.sem.Release(1)
	}
}
