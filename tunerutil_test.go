package gputune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerothLookupCreatesNewKnob(t *testing.T) {
	ctx := newTestContext(t, 4096)

	handled, entry, err := zerothLookup(ctx, 64)
	require.NoError(t, err)
	assert.True(t, handled)
	require.NotNil(t, entry)
	assert.Equal(t, 0, entry.ID)
	assert.True(t, entry.FirstHit)
	assert.False(t, entry.InLoop)
	assert.Equal(t, 1, ctx.CurrentKnob)
}

func TestZerothLookupNotHandledAfterZerothIteration(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.TuneIter = 1

	handled, entry, err := zerothLookup(ctx, 64)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, entry)
}

func TestZerothLookupDetectsInloop(t *testing.T) {
	ctx := newTestContext(t, 4096)

	_, first, err := zerothLookup(ctx, 64)
	require.NoError(t, err)
	require.NoError(t, Release(ctx, first.DevicePtr))

	_, second, err := zerothLookup(ctx, 64)
	require.NoError(t, err)
	assert.Same(t, first, second, "a released same-size entry must be reused, not recreated")
	assert.True(t, second.InLoop)
	assert.Equal(t, 1, ctx.CurrentKnob, "reused entries do not mint a new knob id")
}

func TestZerothEndAllDeviceTransitionsToRun(t *testing.T) {
	withHome(t)
	ctx := newTestContext(t, 4096)
	ctx.Project, ctx.PlanName = "gputune-test-proj", "allDevice"
	ctx.Plan.Append(&PlanEntry{ID: 0, Loc: LocationDevice, Size: 16})

	handled, done, err := zerothEnd(ctx)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, done)
	assert.Equal(t, ModeRun, ctx.Mode)
}

func TestZerothEndFreezesSearchSpace(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.Mode = ModeTune
	ctx.Plan.Append(&PlanEntry{ID: 0, Loc: LocationPinnedHost, Size: 16})
	ctx.CurrentKnob = 1

	handled, done, err := zerothEnd(ctx)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.False(t, done)
	assert.Equal(t, 1, ctx.NumKnobs)
	assert.Equal(t, ModeTune, ctx.Mode)
}

func TestZerothEndSearchSpaceOverflow(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.Plan.Append(&PlanEntry{ID: 0, Loc: LocationPinnedHost, Size: 16})
	ctx.CurrentKnob = 65

	_, _, err := zerothEnd(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchSpaceOverflow)
}

func TestLoopyLookupRehit(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.TuneIter = 1
	entry := &PlanEntry{ID: 0, Size: 16, InLoop: true, FirstHit: false}
	ctx.Plan.Append(entry)

	rehit, got, err := loopyLookup(ctx, 16)
	require.NoError(t, err)
	assert.True(t, rehit)
	assert.Same(t, entry, got)
	assert.NotZero(t, got.DevicePtr)
}

func TestLoopyLookupFirstHitClearsFlag(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.TuneIter = 1
	ctx.CurrentKnob = 0
	entry := &PlanEntry{ID: 0, Size: 16, InLoop: true, FirstHit: true}
	ctx.Plan.Append(entry)

	rehit, got, err := loopyLookup(ctx, 16)
	require.NoError(t, err)
	assert.False(t, rehit)
	assert.Same(t, entry, got)
	assert.False(t, got.FirstHit)
}

func TestLoopyLookupPlanInconsistent(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.TuneIter = 1
	ctx.CurrentKnob = 5

	_, _, err := loopyLookup(ctx, 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanInconsistent)
}

func TestGoldMemberDeviceDemand(t *testing.T) {
	ctx := newTestContext(t, 4096)
	ctx.Plan.Append(&PlanEntry{ID: 0, Size: 100, GoldMember: true})
	ctx.Plan.Append(&PlanEntry{ID: 1, Size: 200, GoldMember: true})
	ctx.Plan.Append(&PlanEntry{ID: 2, Size: 300, GoldMember: false})

	// bit0=1 (device), bit1=0 (pinned), bit2=1 (device, but not gold)
	dna := uint64(0b101)
	assert.Equal(t, uint64(100), goldMemberDeviceDemand(ctx, dna))
}

func TestWithinUtilizationWindow(t *testing.T) {
	// below deviceHeadroomBytes entirely: no candidate can ever be feasible.
	assert.False(t, withinUtilizationWindow(50, 100, 90))

	// realistic byte scale: 700MiB free, 90%, 20MiB headroom -> window [630MiB, 680MiB)
	free := uint64(700) << 20
	assert.False(t, withinUtilizationWindow(629<<20, free, 90), "below minimum")
	assert.True(t, withinUtilizationWindow(650<<20, free, 90), "inside window")
	assert.False(t, withinUtilizationWindow(680<<20, free, 90), "at headroom boundary, exclusive")
}
