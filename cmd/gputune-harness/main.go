// Command gputune-harness is a runnable demonstration of the gputune
// framework glue, playing the role the original implementation's test.c
// played: a stand-in target program that allocates a handful of buffers
// under TUNE until the exhaustive engine converges on a plan, then
// replays that plan once under RUN.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/KimMachineGun/automemlimit/automemlimit"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gpuplace/tuner"
)

// targetBufferSizes is the fixed allocation sequence this demo target
// program issues every iteration, modelling spec §8 scenario S2 (forced
// spill): three 512 MiB buffers against a 700 MiB device.
var targetBufferSizes = []uint64{
	512 << 20,
	512 << 20,
	512 << 20,
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "gputune-harness: GOMAXPROCS tuning skipped: %v\n", err)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gputune-harness: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reg := gputune.NewRegistry(16)
	drv := newSimDriver(700 << 20)

	ctx, err := reg.Acquire(context.Background(), "demo-caller",
		gputune.WithDriver(drv),
		gputune.WithProject("gputune-harness"),
		gputune.WithPlanName("demo"),
		gputune.WithEngine(&gputune.ExhaustiveEngine{}),
	)
	if err != nil {
		return fmt.Errorf("acquire tuning context: %w", err)
	}
	defer reg.Release("demo-caller")

	mode := gputune.ModeTune
	for mode == gputune.ModeTune {
		if err := gputune.SessionStart(ctx, mode, 0); err != nil {
			return fmt.Errorf("session start: %w", err)
		}

		ptrs := make([]uintptr, 0, len(targetBufferSizes))
		for _, size := range targetBufferSizes {
			ptr, err := gputune.Allocate(ctx, size)
			if err != nil {
				return fmt.Errorf("allocate: %w", err)
			}
			ptrs = append(ptrs, ptr)
		}
		for _, ptr := range ptrs {
			if err := gputune.Release(ctx, ptr); err != nil {
				return fmt.Errorf("release: %w", err)
			}
		}

		mode, err = gputune.SessionEnd(ctx)
		if err != nil {
			return fmt.Errorf("session end: %w", err)
		}
	}

	fmt.Printf("gputune-harness: tuning complete, best time %.6fs\n", ctx.BestTime)

	if err := gputune.SessionStart(ctx, gputune.ModeRun, 0); err != nil {
		return fmt.Errorf("replay session start: %w", err)
	}
	for _, size := range targetBufferSizes {
		ptr, err := gputune.Allocate(ctx, size)
		if err != nil {
			return fmt.Errorf("replay allocate: %w", err)
		}
		if err := gputune.Release(ctx, ptr); err != nil {
			return fmt.Errorf("replay release: %w", err)
		}
	}
	if _, err := gputune.SessionEnd(ctx); err != nil {
		return fmt.Errorf("replay session end: %w", err)
	}

	return nil
}
