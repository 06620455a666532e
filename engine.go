package gputune

// Engine is the tuner contract (spec §4.4): a capability object with
// three methods. Engine values carry no per-session state; an engine that
// needs state across iterations (GeneticEngine) keeps it in the Context's
// engineState slot.
type Engine interface {
	// Start runs at the top of each tuning iteration.
	Start(ctx *Context) error
	// Lookup runs once per allocate() call during the iteration.
	Lookup(ctx *Context, size uint64) (*PlanEntry, error)
	// End runs at the bottom of each tuning iteration, before
	// ctx.TuneIter is advanced by the framework.
	End(ctx *Context) error
}
