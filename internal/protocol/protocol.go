// Package protocol defines the per-agent, per-tick wire format: the
// perception snapshot handed to an agent and the decision record it emits.
// The host exchanges these as JSON; everything inside the module works on
// the typed forms.
package protocol

import (
	"github.com/talgya/depot-fleet/internal/geom"
)

// Movement types an agent may emit.
const (
	MoveWalk = "walk"
	MoveRun  = "run"
	MoveStop = "stop"
	MoveNone = "none"
)

// Action types an agent may emit.
const (
	ActionNone    = "none"
	ActionPickUp  = "pick_up"
	ActionDropOff = "drop_off"
)

// NoTarget is the canonical "no task locked" id. The legacy payload used
// "0" for the same purpose; Normalize folds that into NoTarget.
const NoTarget = ""

// TaskRef is a task (item) visible to the agent this tick.
type TaskRef struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

// Pos returns the task position as a vector.
func (t TaskRef) Pos() geom.Vec2 { return geom.Vec2{X: t.X, Z: t.Z} }

// Zone is a delivery zone. Static for the lifetime of a run.
type Zone struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Pos returns the zone position as a vector.
func (z Zone) Pos() geom.Vec2 { return geom.Vec2{X: z.X, Z: z.Z} }

// Obstacle is a static obstruction on the floor.
type Obstacle struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Pos returns the obstacle position as a vector.
func (o Obstacle) Pos() geom.Vec2 { return geom.Vec2{X: o.X, Z: o.Z} }

// PeerEntry is the publicly visible slice of another agent's state. It is a
// stale read: the state as committed at the end of the previous tick, never
// a live view of decisions being made this tick.
type PeerEntry struct {
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
	Carrying        bool    `json:"carrying"`
	CurrentTargetID string  `json:"current_target_id"`
}

// Pos returns the peer position as a vector.
func (p PeerEntry) Pos() geom.Vec2 { return geom.Vec2{X: p.X, Z: p.Z} }

// Perception is everything one agent gets to see for one tick.
type Perception struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	SpawnX float64 `json:"spawn_x"`
	SpawnZ float64 `json:"spawn_z"`

	Carrying bool `json:"carrying"`

	VisibleTasks  []TaskRef  `json:"visible_tasks"`
	DeliveryZones []Zone     `json:"delivery_zones"`
	Obstacles     []Obstacle `json:"obstacles"`

	// OtherAgents maps peer id to its last-committed public state.
	OtherAgents map[string]PeerEntry `json:"other_agents"`

	// PreviousTargetID is this agent's own lock from the previous tick.
	PreviousTargetID string `json:"previous_target_id"`
}

// Pos returns the agent's own position.
func (p *Perception) Pos() geom.Vec2 { return geom.Vec2{X: p.X, Z: p.Z} }

// Spawn returns the agent's spawn position.
func (p *Perception) Spawn() geom.Vec2 { return geom.Vec2{X: p.SpawnX, Z: p.SpawnZ} }

// Movement is the movement half of a decision.
type Movement struct {
	Type    string  `json:"type"`
	TargetX float64 `json:"target_x"`
	TargetZ float64 `json:"target_z"`
}

// Action is the action half of a decision. TargetID carries the claimed
// task id every tick a lock is held, not only on pick_up — peers read it
// back through the next snapshot as current_target_id.
type Action struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

// Decision is the complete per-agent, per-tick output record.
type Decision struct {
	Movement Movement `json:"movement"`
	Action   Action   `json:"action"`
}

// SafeDecision is the fallback substituted when an agent's decision logic
// fails: stop in place, do nothing, claim nothing.
func SafeDecision(x, z float64) Decision {
	return Decision{
		Movement: Movement{Type: MoveStop, TargetX: x, TargetZ: z},
		Action:   Action{Type: ActionNone, TargetID: NoTarget},
	}
}

// Normalize folds legacy and missing-field forms into canonical ones so the
// decision layers never see them: the "0" no-target sentinel becomes
// NoTarget, and nil collections become empty. Positions default to zero
// values already by JSON decoding.
func (p *Perception) Normalize() {
	if p.PreviousTargetID == "0" {
		p.PreviousTargetID = NoTarget
	}
	if p.VisibleTasks == nil {
		p.VisibleTasks = []TaskRef{}
	}
	if p.DeliveryZones == nil {
		p.DeliveryZones = []Zone{}
	}
	if p.Obstacles == nil {
		p.Obstacles = []Obstacle{}
	}
	if p.OtherAgents == nil {
		p.OtherAgents = map[string]PeerEntry{}
	}
	for id, e := range p.OtherAgents {
		if e.CurrentTargetID == "0" {
			e.CurrentTargetID = NoTarget
			p.OtherAgents[id] = e
		}
	}
}
