// Package claim implements the decentralized task-claim tournament.
//
// Every agent runs the identical deterministic procedure over the same
// one-tick-stale snapshot. No messages, no locks: convergence on a
// one-agent-per-task allocation comes from everyone applying the same
// comparator to the same data. Two agents can still win the same task in
// the same tick — the snapshot only reflects tick T-1 commitments — and
// that race is accepted; it resolves on the following tick once one lock
// becomes visible.
package claim

import (
	"math"
	"sort"
	"strconv"

	"github.com/talgya/depot-fleet/internal/geom"
	"github.com/talgya/depot-fleet/internal/protocol"
)

// Policy selects how an existing lock is treated on re-resolution.
type Policy uint8

const (
	// PolicySticky keeps the previous lock while it remains a valid
	// candidate (and within LockDistance, when set). Damps thrashing.
	PolicySticky Policy = iota
	// PolicyReevaluate recomputes the winner from scratch every tick.
	PolicyReevaluate
)

// ParsePolicy maps a config string to a Policy. Unknown values fall back
// to sticky.
func ParsePolicy(s string) Policy {
	if s == "reevaluate" {
		return PolicyReevaluate
	}
	return PolicySticky
}

// Config holds the tournament parameters. Every agent in a fleet must run
// with identical values — a divergent tolerance or ordering breaks
// convergence.
type Config struct {
	Policy Policy

	// LockDistance bounds how far a sticky lock may be kept. Zero means
	// unbounded.
	LockDistance float64

	// DistanceTolerance is the relative band within which two squared
	// distances count as a tie and the smaller id wins.
	DistanceTolerance float64
}

// DefaultConfig returns the fleet-wide tournament defaults.
func DefaultConfig() Config {
	return Config{
		Policy:            PolicySticky,
		LockDistance:      0,
		DistanceTolerance: 0.01,
	}
}

// Resolution is the outcome of one claim pass.
type Resolution struct {
	// TargetID is the winning task id, or protocol.NoTarget.
	TargetID string
	// Target is the position to move toward: the task when one was won,
	// the spawn position otherwise.
	Target geom.Vec2
	// Found reports whether a task was claimed.
	Found bool
}

// Resolver runs the claim tournament. It is stateless and safe for
// concurrent use; all per-agent state arrives in the perception.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver with the given fleet-wide config.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve decides which task, if any, this agent should pursue.
//
// A carrying agent never claims: a carried item is not a claimable task.
// With no winning candidate the fallback destination is the spawn point.
func (r *Resolver) Resolve(p *protocol.Perception) Resolution {
	none := Resolution{TargetID: protocol.NoTarget, Target: p.Spawn()}
	if p.Carrying {
		return none
	}

	// Reservation set: every task some peer committed to last tick.
	reserved := make(map[string]bool, len(p.OtherAgents))
	for _, peer := range p.OtherAgents {
		if peer.CurrentTargetID != protocol.NoTarget {
			reserved[peer.CurrentTargetID] = true
		}
	}

	candidates := make([]protocol.TaskRef, 0, len(p.VisibleTasks))
	for _, t := range p.VisibleTasks {
		if !reserved[t.ID] {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return none
	}

	self := p.Pos()

	// Sticky: hold the previous lock while it is still a live candidate.
	// A lock on a vanished or newly reserved task is stale and forces a
	// fresh tournament below.
	if r.cfg.Policy == PolicySticky && p.PreviousTargetID != protocol.NoTarget {
		for _, t := range candidates {
			if t.ID != p.PreviousTargetID {
				continue
			}
			if r.cfg.LockDistance > 0 && geom.Dist(self, t.Pos()) > r.cfg.LockDistance {
				break
			}
			return Resolution{TargetID: t.ID, Target: t.Pos(), Found: true}
		}
	}

	// Free peers: not carrying and holding no reservation. Only they
	// compete in the tournament — everyone else is already committed.
	type contender struct {
		id  string
		pos geom.Vec2
	}
	free := make([]contender, 0, len(p.OtherAgents))
	for id, peer := range p.OtherAgents {
		if id == p.ID {
			continue
		}
		if peer.Carrying || peer.CurrentTargetID != protocol.NoTarget {
			continue
		}
		free = append(free, contender{id: id, pos: peer.Pos()})
	}

	// Greedy nearest-first over my candidates, deterministic order.
	sort.Slice(candidates, func(i, j int) bool {
		di := geom.DistSq(self, candidates[i].Pos())
		dj := geom.DistSq(self, candidates[j].Pos())
		if di != dj {
			return di < dj
		}
		return LessID(candidates[i].ID, candidates[j].ID)
	})

	for _, t := range candidates {
		myDist := geom.DistSq(self, t.Pos())
		beaten := false
		for _, other := range free {
			otherDist := geom.DistSq(other.pos, t.Pos())
			if withinTolerance(otherDist, myDist, r.cfg.DistanceTolerance) {
				if LessID(other.id, p.ID) {
					beaten = true
					break
				}
			} else if otherDist < myDist {
				beaten = true
				break
			}
		}
		if !beaten {
			return Resolution{TargetID: t.ID, Target: t.Pos(), Found: true}
		}
	}

	return none
}

// withinTolerance reports whether a and b are equal within the relative
// tolerance band. Symmetric, so every agent sees the same ties.
func withinTolerance(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(a, b)
	if scale < geom.Epsilon {
		return true
	}
	return diff <= tol*scale
}

// idSentinel orders every malformed id after every numeric one.
const idSentinel = math.MaxUint64

// idKey maps an agent or task id to its numeric ordering key. Non-numeric
// ids share the sentinel and fall back to lexicographic order in LessID,
// keeping the comparator total.
func idKey(id string) uint64 {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return idSentinel
	}
	return n
}

// LessID is the fleet-wide total order on ids. Numeric ids compare as
// numbers; everything else compares after them, lexicographically.
// Every agent must use exactly this order or the tournament diverges.
func LessID(a, b string) bool {
	ka, kb := idKey(a), idKey(b)
	if ka != kb {
		return ka < kb
	}
	return a < b
}
