// Package gputune implements a GPU memory placement auto-tuner: it
// interposes on an accelerator allocation API, tracks the ordered stream
// of allocation sites issued by repeated executions of a target program's
// compute loop, and searches for the placement (device-global vs.
// device-mapped pinned host memory) of each site that minimizes observed
// wall-clock time.
//
// The package never talks to an accelerator driver directly; callers
// supply a Driver implementation. A Context holds all state for one
// logical tuning session; a Registry owns a bounded set of Contexts keyed
// by an arbitrary caller identity, so that multiple independent sessions
// may coexist.
//
// Typical use mirrors the framework glue a target program would call
// around its compute loop:
//
//	reg := gputune.NewRegistry(16)
//	ctx, _ := reg.Acquire(context.Background(), callerID, gputune.WithDriver(drv))
//	mode := gputune.ModeTune
//	for {
//	    _ = gputune.SessionStart(ctx, mode, device)
//	    // ... target program calls gputune.Allocate/gputune.Release ...
//	    mode, _ = gputune.SessionEnd(ctx)
//	    if mode == gputune.ModeRun {
//	        break
//	    }
//	}
package gputune
