package protocol

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
	require.NoError(t, err, "schema %s must compile", name)
	return schema
}

func validate(t *testing.T, schema *jsonschema.Schema, v any) error {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var doc any
	require.NoError(t, json.Unmarshal(data, &doc))
	return schema.Validate(doc)
}

func TestPerceptionMatchesSchema(t *testing.T) {
	schema := compileSchema(t, "perception.schema.json")

	p := Perception{
		ID: "1", X: 0, Z: 0, SpawnX: 5, SpawnZ: 5,
		VisibleTasks:  []TaskRef{{ID: "t", X: 1, Z: 1}},
		DeliveryZones: []Zone{{X: -18, Z: 0}},
		Obstacles:     []Obstacle{{X: 2, Z: 2}},
		OtherAgents: map[string]PeerEntry{
			"2": {X: 3, Z: 3, Carrying: true, CurrentTargetID: "u"},
		},
	}
	assert.NoError(t, validate(t, schema, p))
}

func TestSchemaRejectsMissingAgentID(t *testing.T) {
	schema := compileSchema(t, "perception.schema.json")

	doc := map[string]any{
		"id": "", "x": 0, "z": 0, "spawn_x": 0, "spawn_z": 0,
		"carrying":       false,
		"visible_tasks":  []any{},
		"delivery_zones": []any{},
		"obstacles":      []any{},
		"other_agents":   map[string]any{},
		"previous_target_id": "",
	}
	assert.Error(t, schema.Validate(doc), "empty agent id must fail validation")
}

func TestDecisionMatchesSchema(t *testing.T) {
	schema := compileSchema(t, "decision.schema.json")

	assert.NoError(t, validate(t, schema, Decision{
		Movement: Movement{Type: MoveWalk, TargetX: 1, TargetZ: 2},
		Action:   Action{Type: ActionPickUp, TargetID: "t"},
	}))
	assert.NoError(t, validate(t, schema, SafeDecision(0, 0)))
}

func TestSchemaRejectsUnknownMovementType(t *testing.T) {
	schema := compileSchema(t, "decision.schema.json")

	doc := map[string]any{
		"movement": map[string]any{"type": "teleport", "target_x": 0, "target_z": 0},
		"action":   map[string]any{"type": "none", "target_id": ""},
	}
	assert.Error(t, schema.Validate(doc))
}
