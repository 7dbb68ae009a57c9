package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFoldsLegacyZeroSentinel(t *testing.T) {
	p := &Perception{
		ID: "1",
		PreviousTargetID: "0",
		OtherAgents: map[string]PeerEntry{
			"2": {CurrentTargetID: "0"},
			"3": {CurrentTargetID: "7"},
		},
	}
	p.Normalize()

	assert.Equal(t, NoTarget, p.PreviousTargetID)
	assert.Equal(t, NoTarget, p.OtherAgents["2"].CurrentTargetID)
	assert.Equal(t, "7", p.OtherAgents["3"].CurrentTargetID)
}

func TestNormalizeDefaultsNilCollections(t *testing.T) {
	p := &Perception{ID: "1"}
	p.Normalize()

	assert.NotNil(t, p.VisibleTasks)
	assert.NotNil(t, p.DeliveryZones)
	assert.NotNil(t, p.Obstacles)
	assert.NotNil(t, p.OtherAgents)
	assert.Empty(t, p.VisibleTasks)
}

func TestSafeDecisionShape(t *testing.T) {
	d := SafeDecision(3, -4)

	assert.Equal(t, MoveStop, d.Movement.Type)
	assert.Equal(t, 3.0, d.Movement.TargetX)
	assert.Equal(t, -4.0, d.Movement.TargetZ)
	assert.Equal(t, ActionNone, d.Action.Type)
	assert.Equal(t, NoTarget, d.Action.TargetID)
}

func TestPerceptionRoundTrip(t *testing.T) {
	raw := `{
		"id": "4",
		"x": 1.5, "z": -2.5,
		"spawn_x": 10, "spawn_z": 10,
		"carrying": false,
		"visible_tasks": [{"id": "t1", "x": 0, "z": 0}],
		"delivery_zones": [{"x": -18, "z": 0}],
		"obstacles": [{"x": 2, "z": 2}],
		"other_agents": {"5": {"x": 3, "z": 3, "carrying": true, "current_target_id": ""}},
		"previous_target_id": "t1"
	}`

	var p Perception
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "4", p.ID)
	assert.Equal(t, 1.5, p.X)
	assert.Len(t, p.VisibleTasks, 1)
	assert.True(t, p.OtherAgents["5"].Carrying)
	assert.Equal(t, "t1", p.PreviousTargetID)
}
