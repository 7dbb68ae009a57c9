// Package avoid computes the local repulsion offset that keeps agents off
// obstacles and out of each other. Purely reactive potential field: no
// path planning, no lookahead, O(k) in the number of nearby entities.
// Symmetric opposing forces can cancel into a temporary stall; recovery is
// left to the outer re-decision loop.
package avoid

import (
	"github.com/talgya/depot-fleet/internal/geom"
)

// Config holds the per-category field parameters. Obstacles are typically
// weighted heavier than peers — walking into a shelf is worse than brushing
// a teammate.
type Config struct {
	ObstacleRadius   float64
	ObstacleStrength float64
	PeerRadius       float64
	PeerStrength     float64
}

// DefaultConfig returns the field defaults.
func DefaultConfig() Config {
	return Config{
		ObstacleRadius:   2.5,
		ObstacleStrength: 3.0,
		PeerRadius:       1.3,
		PeerStrength:     1.5,
	}
}

// Field accumulates repulsion offsets.
type Field struct {
	cfg Config
}

// NewField creates a field with the given parameters.
func NewField(cfg Config) Field {
	return Field{cfg: cfg}
}

// Offset returns the summed repulsion vector for the agent at self, to be
// added to its movement target. Each entity within its category's cutoff
// radius R at distance d contributes strength*(R-d)/R directed away from
// it: maximal near contact, zero at the cutoff.
func (f Field) Offset(self geom.Vec2, obstacles, peers []geom.Vec2) geom.Vec2 {
	var sum geom.Vec2
	sum = sum.Add(accumulate(self, obstacles, f.cfg.ObstacleRadius, f.cfg.ObstacleStrength))
	sum = sum.Add(accumulate(self, peers, f.cfg.PeerRadius, f.cfg.PeerStrength))
	return sum
}

func accumulate(self geom.Vec2, others []geom.Vec2, radius, strength float64) geom.Vec2 {
	var sum geom.Vec2
	if radius <= 0 {
		return sum
	}
	for _, o := range others {
		away := self.Sub(o)
		d := away.Len()
		// Coincident positions have no meaningful "away" direction;
		// skip the term rather than divide by zero.
		if d < geom.Epsilon || d >= radius {
			continue
		}
		falloff := (radius - d) / radius
		sum = sum.Add(away.Scale(strength * falloff / d))
	}
	return sum
}
