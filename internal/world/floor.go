// Package world holds the depot floor: items, delivery zones, obstacles,
// and the physical state of every agent. The floor builds the read-only
// perception snapshot each tick and integrates the decisions back into
// physical movement and pickups/drop-offs. The decision core never touches
// the floor directly — it only ever sees snapshots.
package world

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/depot-fleet/internal/config"
	"github.com/talgya/depot-fleet/internal/decision"
	"github.com/talgya/depot-fleet/internal/geom"
	"github.com/talgya/depot-fleet/internal/protocol"
)

// Item is a task on the floor awaiting pickup.
type Item struct {
	ID  string    `json:"id"`
	Pos geom.Vec2 `json:"pos"`
}

// AgentState is the authoritative physical state of one agent. TargetID is
// the commitment made by the agent's last decision — peers read it through
// the next tick's snapshot, never live.
type AgentState struct {
	ID          string    `json:"id"`
	Pos         geom.Vec2 `json:"pos"`
	Spawn       geom.Vec2 `json:"spawn"`
	Carrying    bool      `json:"carrying"`
	CarriedItem string    `json:"carried_item,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	Delivered   int       `json:"delivered"`
	Movement    string    `json:"movement"`
	State       string    `json:"state"`
}

// Event is a notable occurrence on the floor.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
}

// Stats aggregates floor-level counters.
type Stats struct {
	Tick           uint64 `json:"tick"`
	Delivered      int    `json:"delivered"`
	ItemsRemaining int    `json:"items_remaining"`
	AgentsCarrying int    `json:"agents_carrying"`
}

// Floor is the complete mutable world state for one run.
type Floor struct {
	mu sync.RWMutex

	extent      float64
	visibility  float64
	walkSpeed   float64
	runSpeed    float64
	pickupRange float64
	dropRange   float64
	respawn     bool

	agents     []*AgentState
	agentIndex map[string]*AgentState
	items      []*Item
	zones      []geom.Vec2
	obstacles  []geom.Vec2

	delivered int
	lastTick  uint64
	events    []Event
	nextItem  uint64
	rng       *rand.Rand
}

// NewFloor assembles a floor from a generated layout. pickupRange and
// dropRange mirror the lifecycle thresholds so physical resolution agrees
// with what the agents decided.
func NewFloor(l Layout, cfg config.World, pickupRange, dropRange float64, seed int64) *Floor {
	f := &Floor{
		extent:      cfg.Extent,
		visibility:  cfg.VisibilityRadius,
		walkSpeed:   cfg.WalkSpeed,
		runSpeed:    cfg.RunSpeed,
		pickupRange: pickupRange,
		dropRange:   dropRange,
		respawn:     cfg.RespawnItems,
		agentIndex:  make(map[string]*AgentState),
		zones:       l.Zones,
		obstacles:   l.Obstacles,
		rng:         rand.New(rand.NewSource(seed + 2)),
	}

	for i, spawn := range l.Spawns {
		a := &AgentState{
			ID:       fmt.Sprintf("%d", i+1),
			Pos:      spawn,
			Spawn:    spawn,
			TargetID: protocol.NoTarget,
			Movement: protocol.MoveStop,
			State:    "seeking",
		}
		f.agents = append(f.agents, a)
		f.agentIndex[a.ID] = a
	}

	for _, pos := range l.Items {
		f.addItem(pos)
	}

	return f
}

func (f *Floor) addItem(pos geom.Vec2) {
	f.nextItem++
	f.items = append(f.items, &Item{
		ID:  fmt.Sprintf("item-%d", f.nextItem),
		Pos: pos,
	})
}

// BuildPerceptions captures the snapshot every agent decides against this
// tick. All perceptions are built before any decision is applied, so each
// agent sees the same stale, consistent view: the state committed at the
// end of the previous tick.
func (f *Floor) BuildPerceptions() map[string]*protocol.Perception {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Shared read-only slices, built once.
	zones := make([]protocol.Zone, len(f.zones))
	for i, z := range f.zones {
		zones[i] = protocol.Zone{X: z.X, Z: z.Z}
	}

	batch := make(map[string]*protocol.Perception, len(f.agents))
	for _, a := range f.agents {
		p := &protocol.Perception{
			ID:               a.ID,
			X:                a.Pos.X,
			Z:                a.Pos.Z,
			SpawnX:           a.Spawn.X,
			SpawnZ:           a.Spawn.Z,
			Carrying:         a.Carrying,
			DeliveryZones:    zones,
			PreviousTargetID: a.TargetID,
			OtherAgents:      make(map[string]protocol.PeerEntry, len(f.agents)-1),
		}

		for _, t := range f.items {
			if f.visible(a.Pos, t.Pos) {
				p.VisibleTasks = append(p.VisibleTasks, protocol.TaskRef{ID: t.ID, X: t.Pos.X, Z: t.Pos.Z})
			}
		}
		for _, o := range f.obstacles {
			if f.visible(a.Pos, o) {
				p.Obstacles = append(p.Obstacles, protocol.Obstacle{X: o.X, Z: o.Z})
			}
		}
		for _, peer := range f.agents {
			if peer.ID == a.ID {
				continue
			}
			p.OtherAgents[peer.ID] = protocol.PeerEntry{
				X:               peer.Pos.X,
				Z:               peer.Pos.Z,
				Carrying:        peer.Carrying,
				CurrentTargetID: peer.TargetID,
			}
		}

		batch[a.ID] = p
	}
	return batch
}

func (f *Floor) visible(self, other geom.Vec2) bool {
	if f.visibility <= 0 {
		return true
	}
	return geom.DistSq(self, other) <= f.visibility*f.visibility
}

// Apply integrates one tick's decisions: movement first, then commitments,
// then pickups and drop-offs. Results arrive in agent-id order from the
// decider, which makes the same-tick double-claim race resolve the same
// way every run: the first applied pickup wins, the loser re-resolves next
// tick.
func (f *Floor) Apply(tick uint64, results []decision.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastTick = tick

	for _, r := range results {
		a, ok := f.agentIndex[r.AgentID]
		if !ok {
			slog.Warn("decision for unknown agent", "agent", r.AgentID)
			continue
		}

		f.move(a, r.Decision.Movement)
		a.Movement = r.Decision.Movement.Type
		a.State = r.State.String()

		// Commit the lock peers will see next tick.
		target := r.Decision.Action.TargetID
		if target == "0" {
			target = protocol.NoTarget
		}
		a.TargetID = target

		switch r.Decision.Action.Type {
		case protocol.ActionPickUp:
			f.resolvePickup(tick, a)
		case protocol.ActionDropOff:
			f.resolveDropOff(tick, a)
		}
	}
}

func (f *Floor) move(a *AgentState, m protocol.Movement) {
	var speed float64
	switch m.Type {
	case protocol.MoveWalk:
		speed = f.walkSpeed
	case protocol.MoveRun:
		speed = f.runSpeed
	default:
		return
	}

	target := geom.Vec2{X: m.TargetX, Z: m.TargetZ}
	delta := target.Sub(a.Pos)
	if delta.Len() <= speed {
		a.Pos = target
	} else {
		a.Pos = a.Pos.Add(delta.Normalize().Scale(speed))
	}
	a.Pos = clampToFloor(a.Pos, f.extent)
}

// resolvePickup grants the nearest item within pickup range. When two
// agents claimed the same item in the same tick only the first one applied
// gets it; the other finds nothing in range and re-resolves next tick.
func (f *Floor) resolvePickup(tick uint64, a *AgentState) {
	if a.Carrying {
		return
	}

	bestIdx := -1
	bestDist := f.pickupRange * f.pickupRange
	for i, t := range f.items {
		d := geom.DistSq(a.Pos, t.Pos)
		if d <= bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return
	}

	item := f.items[bestIdx]
	f.items = append(f.items[:bestIdx], f.items[bestIdx+1:]...)
	a.Carrying = true
	a.CarriedItem = item.ID
	a.TargetID = protocol.NoTarget

	f.events = append(f.events, Event{
		Tick:        tick,
		Description: fmt.Sprintf("agent %s picked up %s", a.ID, item.ID),
		Category:    "pickup",
	})
}

func (f *Floor) resolveDropOff(tick uint64, a *AgentState) {
	if !a.Carrying {
		return
	}
	inRange := false
	for _, z := range f.zones {
		if geom.DistSq(a.Pos, z) <= f.dropRange*f.dropRange {
			inRange = true
			break
		}
	}
	if !inRange {
		return
	}

	item := a.CarriedItem
	a.Carrying = false
	a.CarriedItem = ""
	a.Delivered++
	f.delivered++

	f.events = append(f.events, Event{
		Tick:        tick,
		Description: fmt.Sprintf("agent %s delivered %s", a.ID, item),
		Category:    "delivery",
	})

	if f.respawn {
		f.respawnItem()
	}
}

// respawnItem places a fresh item at a clear seeded-random position.
// Deterministic: the rng is seeded and Apply runs in a fixed order.
func (f *Floor) respawnItem() {
	for attempt := 0; attempt < 64; attempt++ {
		pos := geom.Vec2{
			X: (f.rng.Float64()*2 - 1) * (f.extent - 2),
			Z: (f.rng.Float64()*2 - 1) * (f.extent - 2),
		}
		if nearAny(pos, f.obstacles, clearance) || nearAny(pos, f.zones, clearance) {
			continue
		}
		f.addItem(pos)
		return
	}
}

// Agents returns a copy of every agent's state for the API.
func (f *Floor) Agents() []AgentState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]AgentState, len(f.agents))
	for i, a := range f.agents {
		out[i] = *a
	}
	return out
}

// Items returns a copy of the remaining items.
func (f *Floor) Items() []Item {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Item, len(f.items))
	for i, t := range f.items {
		out[i] = *t
	}
	return out
}

// Zones returns the delivery zones.
func (f *Floor) Zones() []geom.Vec2 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]geom.Vec2(nil), f.zones...)
}

// Obstacles returns the obstacle positions.
func (f *Floor) Obstacles() []geom.Vec2 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]geom.Vec2(nil), f.obstacles...)
}

// Stats returns aggregate counters.
func (f *Floor) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	carrying := 0
	for _, a := range f.agents {
		if a.Carrying {
			carrying++
		}
	}
	return Stats{
		Tick:           f.lastTick,
		Delivered:      f.delivered,
		ItemsRemaining: len(f.items),
		AgentsCarrying: carrying,
	}
}

// DrainEvents returns accumulated events and clears the buffer. The caller
// owns persistence.
func (f *Floor) DrainEvents() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.events
	f.events = nil
	return events
}

// RecentEvents returns up to limit of the buffered (not yet drained)
// events, newest last.
func (f *Floor) RecentEvents(limit int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	start := 0
	if len(f.events) > limit {
		start = len(f.events) - limit
	}
	return append([]Event(nil), f.events[start:]...)
}

// Checkpoint is the serializable full floor state.
type Checkpoint struct {
	Tick      uint64       `json:"tick"`
	Delivered int          `json:"delivered"`
	Agents    []AgentState `json:"agents"`
	Items     []Item       `json:"items"`
	Zones     []geom.Vec2  `json:"zones"`
	Obstacles []geom.Vec2  `json:"obstacles"`
}

// Snapshot captures the complete floor state for persistence.
func (f *Floor) Snapshot() Checkpoint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := Checkpoint{
		Tick:      f.lastTick,
		Delivered: f.delivered,
		Zones:     append([]geom.Vec2(nil), f.zones...),
		Obstacles: append([]geom.Vec2(nil), f.obstacles...),
	}
	for _, a := range f.agents {
		cp.Agents = append(cp.Agents, *a)
	}
	for _, t := range f.items {
		cp.Items = append(cp.Items, *t)
	}
	return cp
}
