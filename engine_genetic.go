package gputune

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Genetic engine parameters (spec §4.4 "Genetic engine").
const (
	geneticGenerations = 10
	geneticPopulation  = 20
	geneticElite       = 0.25
	geneticMinGPUMem   = 0.90
)

// candidate is one member of the genetic search population: a bit-vector
// placement assignment and its measured fitness (lower is better).
type candidate struct {
	dna uint64
	fit float64
}

// geneticState is the per-Context engine-private state (spec §3's
// "tuner_state"), carried in Context.engineState between calls.
type geneticState struct {
	population []*candidate
}

// GeneticEngine is an elitist genetic-algorithm search over bit-string
// placement candidates (spec §4.4 "Genetic engine").
type GeneticEngine struct{}

func (g *GeneticEngine) Start(ctx *Context) error {
	if ctx.TuneIter == 0 {
		ctx.engineState = &geneticState{}
		return nil
	}

	state, ok := ctx.engineState.(*geneticState)
	if !ok {
		return fmt.Errorf("%w: genetic engine state missing or of wrong type", ErrUnknownTunerAction)
	}

	if ctx.TuneIter%geneticPopulation == 1 {
		if ctx.TuneIter == 1 {
			free, _, err := ctx.Driver.QueryFreeMemory()
			if err != nil {
				return fmt.Errorf("gputune: query free memory: %w", err)
			}
			pop := make([]*candidate, geneticPopulation)
			for i := range pop {
				pop[i] = immaculateConception(ctx, free)
			}
			state.population = pop
		} else {
			state.population = breed(ctx, state.population)
		}
	}

	ctx.StartTime = now()
	return nil
}

func (g *GeneticEngine) Lookup(ctx *Context, size uint64) (*PlanEntry, error) {
	if ctx.TuneIter == 0 {
		_, entry, err := zerothLookup(ctx, size)
		return entry, err
	}

	rehit, entry, err := loopyLookup(ctx, size)
	if err != nil {
		return nil, err
	}
	if rehit {
		return entry, nil
	}

	state, ok := ctx.engineState.(*geneticState)
	if !ok {
		return nil, fmt.Errorf("%w: genetic engine state missing or of wrong type", ErrUnknownTunerAction)
	}
	cand := state.population[(ctx.TuneIter-1)%geneticPopulation]

	wantLoc := locationFromBit((cand.dna >> uint(entry.ID)) & 1)
	entry.Loc = wantLoc
	if err := placeEntry(ctx, entry, size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	if entry.Loc != wantLoc {
		// environment-induced mutation: reflect the fallback back into
		// this candidate's DNA so future generations inherit it.
		cand.dna &^= uint64(1) << uint(entry.ID)
		cand.dna |= entry.Loc.bit() << uint(entry.ID)
	}

	ctx.CurrentKnob++
	return entry, nil
}

func (g *GeneticEngine) End(ctx *Context) error {
	if ctx.TuneIter == 0 {
		_, done, err := zerothEnd(ctx)
		if err != nil || done {
			return err
		}
		ctx.TuneIterMax = uint64(geneticGenerations) * uint64(geneticPopulation)
		ctx.CurrentKnob = 0
		return nil
	}

	state, ok := ctx.engineState.(*geneticState)
	if !ok {
		return fmt.Errorf("%w: genetic engine state missing or of wrong type", ErrUnknownTunerAction)
	}
	cand := state.population[(ctx.TuneIter-1)%geneticPopulation]
	cand.fit = now() - ctx.StartTime
	if cand.fit < ctx.BestTime {
		ctx.BestTime = cand.fit
		ctx.BestPlan = cand.dna
	}

	ctx.CurrentKnob = 0

	if ctx.TuneIter >= ctx.TuneIterMax {
		for i := 0; i < ctx.Plan.Len(); i++ {
			e := ctx.Plan.At(i)
			e.Loc = locationFromBit((ctx.BestPlan >> uint(e.ID)) & 1)
		}
		ctx.Mode = ModeRun
		logTuneEvent(ctx, "genetic search complete")
		return WritePlan(ctx)
	}
	return nil
}

// immaculateConception draws generation-0 candidates: random bit-vectors,
// masked to num_knobs bits, rejected until gold-member device demand
// clears MIN_GPU_MEM of free device memory (spec §4.4).
func immaculateConception(ctx *Context, gpuMemFree uint64) *candidate {
	m := mask[uint64](ctx.NumKnobs)
	for {
		dna := randUint64() & m
		demand := goldMemberDeviceDemand(ctx, dna)
		if float64(demand) > geneticMinGPUMem*float64(gpuMemFree) {
			return &candidate{dna: dna}
		}
	}
}

// breed produces the next generation: the fittest ELITE*POPULATION
// candidates survive unchanged, the remainder are uniform-crossover
// offspring of two distinct parents drawn from the top half (spec §4.4).
func breed(ctx *Context, population []*candidate) []*candidate {
	slices.SortFunc(population, func(a, b *candidate) int {
		switch {
		case a.fit < b.fit:
			return -1
		case a.fit > b.fit:
			return 1
		default:
			return 0
		}
	})

	numElite := int(geneticPopulation * geneticElite)
	next := make([]*candidate, geneticPopulation)
	for i := 0; i < numElite; i++ {
		next[i] = &candidate{dna: population[i].dna, fit: population[i].fit}
	}

	half := geneticPopulation / 2
	m := mask[uint64](ctx.NumKnobs)
	for i := numElite; i < geneticPopulation; i++ {
		var mom, dad int
		for {
			mom = randIntn(half)
			dad = randIntn(half)
			if mom != dad {
				break
			}
		}
		mixMask := randUint64() & m
		dna := (population[mom].dna & mixMask) | (population[dad].dna &^ mixMask & m)
		next[i] = &candidate{dna: dna}
	}
	return next
}
