package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/depot-fleet/internal/avoid"
	"github.com/talgya/depot-fleet/internal/claim"
	"github.com/talgya/depot-fleet/internal/lifecycle"
	"github.com/talgya/depot-fleet/internal/protocol"
)

func newTestDecider() *Decider {
	return New(claim.DefaultConfig(), avoid.DefaultConfig(), lifecycle.DefaultConfig())
}

func TestDecideOneClaimsAndWalks(t *testing.T) {
	d := newTestDecider()
	p := &protocol.Perception{
		ID: "1", X: 0, Z: 0,
		VisibleTasks: []protocol.TaskRef{{ID: "t", X: 4, Z: 0}},
	}

	dec, state, err := d.DecideOne(p)
	require.NoError(t, err)

	assert.Equal(t, protocol.MoveWalk, dec.Movement.Type)
	assert.Equal(t, protocol.ActionNone, dec.Action.Type)
	assert.Equal(t, "t", dec.Action.TargetID, "claim announced while en route")
	assert.Equal(t, lifecycle.StateTargeting, state)
	assert.InDelta(t, 4.0, dec.Movement.TargetX, 1e-9)
}

func TestDecideOneCarryingNeverClaims(t *testing.T) {
	d := newTestDecider()
	p := &protocol.Perception{
		ID: "1", X: 0, Z: 0, Carrying: true,
		VisibleTasks:  []protocol.TaskRef{{ID: "t", X: 1, Z: 0}},
		DeliveryZones: []protocol.Zone{{X: 8, Z: 0}},
	}

	dec, state, err := d.DecideOne(p)
	require.NoError(t, err)

	assert.Equal(t, protocol.NoTarget, dec.Action.TargetID)
	assert.Equal(t, lifecycle.StateDelivering, state)
}

func TestAvoidanceOffsetsMovementTarget(t *testing.T) {
	d := newTestDecider()
	p := &protocol.Perception{
		ID: "1", X: 0, Z: 0,
		VisibleTasks: []protocol.TaskRef{{ID: "t", X: 10, Z: 0}},
		Obstacles:    []protocol.Obstacle{{X: 0, Z: 1}},
	}

	dec, _, err := d.DecideOne(p)
	require.NoError(t, err)

	// Target still pulls toward the task; the obstacle to the north pushes
	// the emitted target south of the straight line.
	assert.InDelta(t, 10.0, dec.Movement.TargetX, 1e-9)
	assert.Less(t, dec.Movement.TargetZ, 0.0)
}

func TestDecideOneRejectsBadPerceptions(t *testing.T) {
	d := newTestDecider()

	_, _, err := d.DecideOne(nil)
	assert.Error(t, err)

	_, _, err = d.DecideOne(&protocol.Perception{X: 1, Z: 2})
	assert.Error(t, err)
}

func TestBatchFaultIsolation(t *testing.T) {
	d := newTestDecider()
	batch := map[string]*protocol.Perception{
		"1": {ID: "1", X: 0, Z: 0, VisibleTasks: []protocol.TaskRef{{ID: "t", X: 2, Z: 0}}},
		"2": nil, // malformed entry
		"3": {ID: "3", X: 9, Z: 9},
	}

	results := d.DecideAll(batch)
	require.Len(t, results, 3)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.AgentID] = r
	}

	// The bad agent gets the safe default and an error.
	require.Error(t, byID["2"].Err)
	assert.Equal(t, protocol.MoveStop, byID["2"].Decision.Movement.Type)
	assert.Equal(t, protocol.ActionNone, byID["2"].Decision.Action.Type)
	assert.Equal(t, protocol.NoTarget, byID["2"].Decision.Action.TargetID)

	// Healthy agents are unaffected.
	assert.NoError(t, byID["1"].Err)
	assert.Equal(t, "t", byID["1"].Decision.Action.TargetID)
	assert.NoError(t, byID["3"].Err)
}

func TestBatchEvaluatedInIDOrder(t *testing.T) {
	d := newTestDecider()
	batch := map[string]*protocol.Perception{
		"10": {ID: "10"},
		"2":  {ID: "2"},
		"1":  {ID: "1"},
	}

	results := d.DecideAll(batch)
	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].AgentID)
	assert.Equal(t, "2", results[1].AgentID)
	assert.Equal(t, "10", results[2].AgentID)
}

func TestSafeDefaultHoldsPosition(t *testing.T) {
	d := newTestDecider()
	batch := map[string]*protocol.Perception{
		// Missing id triggers the error path; the safe decision must stop
		// at the agent's reported position, not the origin.
		"7": {X: 3, Z: -4},
	}

	results := d.DecideAll(batch)
	require.Len(t, results, 1)
	assert.InDelta(t, 3.0, results[0].Decision.Movement.TargetX, 1e-12)
	assert.InDelta(t, -4.0, results[0].Decision.Movement.TargetZ, 1e-12)
}

func TestContextSurvivesAcrossTicks(t *testing.T) {
	d := newTestDecider()

	// Tick 1: carrying with a visible zone records the destination.
	p := &protocol.Perception{
		ID: "1", X: 0, Z: 0, Carrying: true,
		DeliveryZones: []protocol.Zone{{X: 6, Z: 0}},
	}
	_, _, err := d.DecideOne(p)
	require.NoError(t, err)

	// Tick 2: zones gone, the retained destination still steers movement.
	p2 := &protocol.Perception{ID: "1", X: 1, Z: 0, Carrying: true}
	dec, state, err := d.DecideOne(p2)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDelivering, state)
	assert.InDelta(t, 6.0, dec.Movement.TargetX, 1e-9)

	assert.Equal(t, 1, d.Contexts().Len())
}
