package gputune

import "fmt"

// SessionStart is the framework entry point invoked at the top of every
// plan invocation (spec §4.5). On the very first call for a Context it
// attaches to (or creates) the accelerator context; every call resets
// CurrentKnob and either loads a persisted plan (RUN) or starts the
// configured Engine (TUNE).
func SessionStart(ctx *Context, mode Mode, device uintptr) error {
	if ctx.Driver == nil {
		return fmt.Errorf("%w: no driver configured on context", ErrUnknownTunerAction)
	}

	if ctx.TuneIter == 0 && ctx.AcceleratorContext == 0 {
		if handle, ok := ctx.Driver.ContextAttach(); ok {
			ctx.AcceleratorContext = handle
			ctx.ownsAccelerator = false
		} else {
			handle, err := ctx.Driver.ContextCreate(device)
			if err != nil {
				return fmt.Errorf("gputune: create accelerator context: %w", err)
			}
			ctx.AcceleratorContext = handle
			ctx.ownsAccelerator = true
		}
	}

	ctx.CurrentKnob = 0
	ctx.Mode = mode

	switch mode {
	case ModeRun:
		plan, err := ReadPlan(ctx.Project, ctx.PlanName)
		if err != nil {
			logFatal(ctx, err)
			return err
		}
		ctx.Plan = plan
		return nil
	case ModeTune:
		if err := ctx.engine.Start(ctx); err != nil {
			logFatal(ctx, err)
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: mode %v", ErrUnknownTunerAction, mode)
	}
}

// SessionEnd is the framework entry point invoked at the bottom of every
// plan invocation (spec §4.5). Under TUNE it runs the Engine's End and
// advances TuneIter unconditionally, returning the (possibly transitioned)
// mode so the caller knows whether to keep looping. Under RUN, once the
// session owns the accelerator context, it is torn down.
func SessionEnd(ctx *Context) (Mode, error) {
	if ctx.Mode == ModeTune {
		if err := ctx.engine.End(ctx); err != nil {
			logFatal(ctx, err)
			return ctx.Mode, err
		}
		ctx.TuneIter++
	}

	if ctx.Mode == ModeRun && ctx.ownsAccelerator {
		if err := ctx.Driver.ContextDestroy(ctx.AcceleratorContext); err != nil {
			return ctx.Mode, fmt.Errorf("gputune: destroy accelerator context: %w", err)
		}
		ctx.AcceleratorContext = 0
		ctx.ownsAccelerator = false
	}

	return ctx.Mode, nil
}
