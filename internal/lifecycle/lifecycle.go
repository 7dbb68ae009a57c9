// Package lifecycle turns "have a target or not / carrying or not" plus
// distance into a movement type and an action. It owns the only mutable
// state in the decision core: a volatile per-agent context store keyed by
// agent id. The store lives exactly as long as the process — a restart
// loses every context with no recovery, and each agent simply re-derives
// its state from the next snapshot.
package lifecycle

import (
	"sync"

	"github.com/talgya/depot-fleet/internal/claim"
	"github.com/talgya/depot-fleet/internal/geom"
	"github.com/talgya/depot-fleet/internal/protocol"
)

// State is the agent's position in the pickup/delivery cycle. There is no
// terminal state; the cycle repeats for the agent's lifetime.
type State uint8

const (
	StateSeeking    State = iota // No lock, not carrying — heading to spawn.
	StateTargeting               // Lock held, moving toward the task.
	StateArriving                // Within pickup range — emitting pick_up.
	StateDelivering              // Carrying, moving to the nearest zone.
	StateDropping                // Within drop range — emitting drop_off.
)

// String returns the state name for logs and the API.
func (s State) String() string {
	switch s {
	case StateTargeting:
		return "targeting"
	case StateArriving:
		return "arriving"
	case StateDelivering:
		return "delivering"
	case StateDropping:
		return "dropping"
	default:
		return "seeking"
	}
}

// Config holds the lifecycle thresholds. All distances are plain Euclidean.
type Config struct {
	// PickupThreshold is the distance under which the agent stops and
	// emits pick_up.
	PickupThreshold float64
	// DropThreshold is the distance under which a carrying agent stops
	// and emits drop_off.
	DropThreshold float64
	// RunWhileEnRoute switches movement to run beyond RunDistance,
	// reserving walk for the final approach.
	RunWhileEnRoute bool
	RunDistance     float64
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{
		PickupThreshold: 0.6,
		DropThreshold:   0.7,
		RunWhileEnRoute: false,
		RunDistance:     5.0,
	}
}

// Context is the small persisted record an agent keeps across ticks.
type Context struct {
	State State
	// LastDestination is retained so a carrying agent that momentarily
	// sees zero delivery zones keeps heading somewhere valid.
	LastDestination geom.Vec2
	HasDestination  bool
}

// Store holds per-agent contexts, created on first contact. In-memory
// only; see the package comment for the volatility contract.
type Store struct {
	mu   sync.Mutex
	ctxs map[string]*Context
}

// NewStore creates an empty context store.
func NewStore() *Store {
	return &Store{ctxs: make(map[string]*Context)}
}

// Get returns the context for an agent id, creating it on first contact.
func (s *Store) Get(id string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.ctxs[id]
	if !ok {
		ctx = &Context{State: StateSeeking}
		s.ctxs[id] = ctx
	}
	return ctx
}

// Len returns the number of tracked agents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ctxs)
}

// Sweep drops contexts whose ids are absent from keep. Callers with a
// bounded-memory requirement run this periodically; everyone else can
// retain contexts indefinitely.
func (s *Store) Sweep(keep map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ctxs {
		if !keep[id] {
			delete(s.ctxs, id)
		}
	}
}

// Outcome is what the lifecycle derived for this tick.
type Outcome struct {
	Target       geom.Vec2
	Movement     string
	Action       string
	ActionTarget string
	State        State
}

// Step advances one agent's lifecycle for one tick, given its perception
// and the claim resolution. It mutates ctx and returns the movement target
// (before avoidance), the movement type, and the action.
func Step(ctx *Context, p *protocol.Perception, res claim.Resolution, cfg Config) Outcome {
	self := p.Pos()

	if p.Carrying {
		return stepCarrying(ctx, p, self, cfg)
	}

	if res.Found {
		target := res.Target
		ctx.LastDestination = target
		ctx.HasDestination = true

		dist := geom.Dist(self, target)
		if dist < cfg.PickupThreshold {
			ctx.State = StateArriving
			return Outcome{
				Target:       target,
				Movement:     protocol.MoveStop,
				Action:       protocol.ActionPickUp,
				ActionTarget: res.TargetID,
				State:        ctx.State,
			}
		}
		ctx.State = StateTargeting
		return Outcome{
			Target:       target,
			Movement:     movementFor(dist, cfg.PickupThreshold, cfg),
			Action:       protocol.ActionNone,
			ActionTarget: res.TargetID,
			State:        ctx.State,
		}
	}

	// Nothing won: head back to spawn and wait.
	ctx.State = StateSeeking
	target := res.Target
	dist := geom.Dist(self, target)
	movement := protocol.MoveWalk
	if dist < cfg.PickupThreshold {
		movement = protocol.MoveStop
	}
	return Outcome{
		Target:       target,
		Movement:     movement,
		Action:       protocol.ActionNone,
		ActionTarget: protocol.NoTarget,
		State:        ctx.State,
	}
}

func stepCarrying(ctx *Context, p *protocol.Perception, self geom.Vec2, cfg Config) Outcome {
	target, ok := nearestZone(self, p.DeliveryZones)
	if ok {
		ctx.LastDestination = target
		ctx.HasDestination = true
	} else if ctx.HasDestination {
		// Zero zones this tick: keep the last valid destination.
		target = ctx.LastDestination
	} else {
		target = self
	}

	dist := geom.Dist(self, target)
	if dist < cfg.DropThreshold {
		ctx.State = StateDropping
		return Outcome{
			Target:       target,
			Movement:     protocol.MoveStop,
			Action:       protocol.ActionDropOff,
			ActionTarget: protocol.NoTarget,
			State:        ctx.State,
		}
	}
	ctx.State = StateDelivering
	return Outcome{
		Target:       target,
		Movement:     movementFor(dist, cfg.DropThreshold, cfg),
		Action:       protocol.ActionNone,
		ActionTarget: protocol.NoTarget,
		State:        ctx.State,
	}
}

// nearestZone returns the delivery zone minimizing squared distance to
// self. Ties break by encounter order — the first zone seen wins.
func nearestZone(self geom.Vec2, zones []protocol.Zone) (geom.Vec2, bool) {
	if len(zones) == 0 {
		return geom.Vec2{}, false
	}
	best := zones[0].Pos()
	bestDist := geom.DistSq(self, best)
	for _, z := range zones[1:] {
		d := geom.DistSq(self, z.Pos())
		if d < bestDist {
			best = z.Pos()
			bestDist = d
		}
	}
	return best, true
}

// movementFor selects stop/walk/run from the distance to target. Below the
// threshold the agent stops — moving further only causes overshoot jitter.
func movementFor(dist, threshold float64, cfg Config) string {
	if dist < threshold {
		return protocol.MoveStop
	}
	if cfg.RunWhileEnRoute && dist > cfg.RunDistance {
		return protocol.MoveRun
	}
	return protocol.MoveWalk
}
