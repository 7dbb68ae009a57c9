package avoid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/depot-fleet/internal/geom"
)

func TestObstacleRepulsionMagnitude(t *testing.T) {
	f := NewField(DefaultConfig())
	// Obstacle 0.5 away with R=2.5, strength=3.0:
	// 3.0 * (2.5-0.5)/2.5 = 2.4, directed away along -x.
	off := f.Offset(geom.Vec2{X: 0, Z: 0}, []geom.Vec2{{X: 0.5, Z: 0}}, nil)

	assert.InDelta(t, -2.4, off.X, 1e-12)
	assert.InDelta(t, 0.0, off.Z, 1e-12)
}

func TestFalloffReachesZeroAtCutoff(t *testing.T) {
	f := NewField(DefaultConfig())

	at := f.Offset(geom.Vec2{}, []geom.Vec2{{X: 2.5, Z: 0}}, nil)
	beyond := f.Offset(geom.Vec2{}, []geom.Vec2{{X: 3.0, Z: 0}}, nil)

	assert.Equal(t, geom.Vec2{}, at)
	assert.Equal(t, geom.Vec2{}, beyond)
}

func TestCoincidentEntityContributesNothing(t *testing.T) {
	f := NewField(DefaultConfig())
	off := f.Offset(geom.Vec2{X: 1, Z: 1}, []geom.Vec2{{X: 1, Z: 1}}, nil)

	assert.False(t, math.IsNaN(off.X))
	assert.False(t, math.IsNaN(off.Z))
	assert.Equal(t, geom.Vec2{}, off)
}

func TestObstaclesAndPeersSum(t *testing.T) {
	f := NewField(DefaultConfig())
	// Obstacle pushes along -x, peer pushes along +x with its own weaker
	// falloff. Net offset is the signed sum.
	obstacle := geom.Vec2{X: 1, Z: 0}  // d=1, contributes 3.0*(1.5/2.5) = 1.8 along -x
	peer := geom.Vec2{X: -0.5, Z: 0}   // d=0.5, contributes 1.5*(0.8/1.3) along +x

	off := f.Offset(geom.Vec2{}, []geom.Vec2{obstacle}, []geom.Vec2{peer})

	peerMag := 1.5 * (1.3 - 0.5) / 1.3
	assert.InDelta(t, -1.8+peerMag, off.X, 1e-12)
	assert.InDelta(t, 0.0, off.Z, 1e-12)
}

func TestSymmetricForcesCancel(t *testing.T) {
	f := NewField(DefaultConfig())
	off := f.Offset(geom.Vec2{},
		[]geom.Vec2{{X: 1, Z: 0}, {X: -1, Z: 0}}, nil)

	assert.InDelta(t, 0.0, off.X, 1e-12)
	assert.InDelta(t, 0.0, off.Z, 1e-12)
}

func TestDirectionPointsAway(t *testing.T) {
	f := NewField(DefaultConfig())
	off := f.Offset(geom.Vec2{X: 0, Z: 0}, []geom.Vec2{{X: 1, Z: 1}}, nil)

	// Diagonal obstacle repels along the opposite diagonal.
	assert.Less(t, off.X, 0.0)
	assert.Less(t, off.Z, 0.0)
	assert.InDelta(t, off.X, off.Z, 1e-12)
}

func TestZeroRadiusDisablesCategory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeerRadius = 0
	f := NewField(cfg)

	off := f.Offset(geom.Vec2{}, nil, []geom.Vec2{{X: 0.1, Z: 0}})
	assert.Equal(t, geom.Vec2{}, off)
}
