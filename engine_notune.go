package gputune

// NoTuneEngine accepts the zeroth-iteration plan as-is: a single-iteration
// pass-through that still spills into pinned host memory on device
// exhaustion, but never searches and never persists a plan (spec §4.4
// "NoTune engine").
type NoTuneEngine struct{}

func (e *NoTuneEngine) Start(ctx *Context) error {
	ctx.StartTime = now()
	return nil
}

func (e *NoTuneEngine) Lookup(ctx *Context, size uint64) (*PlanEntry, error) {
	_, entry, err := zerothLookup(ctx, size)
	return entry, err
}

func (e *NoTuneEngine) End(ctx *Context) error {
	return nil
}
