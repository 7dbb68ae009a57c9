// Depot floor generation using layered simplex noise.
// Obstacle clusters come from thresholded octave noise; items, zones, and
// agent spawns are placed deterministically from the seed around them.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/depot-fleet/internal/config"
	"github.com/talgya/depot-fleet/internal/geom"
)

// Layout is a generated floor: fixed entity positions, no behavior.
type Layout struct {
	Spawns    []geom.Vec2
	Items     []geom.Vec2
	Zones     []geom.Vec2
	Obstacles []geom.Vec2
}

// clearance is the minimum spacing kept between generated entities.
const clearance = 1.5

// GenerateLayout builds a deterministic floor layout from the seed.
func GenerateLayout(cfg config.World, seed int64) Layout {
	if seed == 0 {
		seed = rand.Int63()
	}

	var l Layout

	// Delivery zones line the west wall, evenly spaced — the loading dock.
	dockX := -cfg.Extent + 2
	for i := 0; i < cfg.Zones; i++ {
		frac := (float64(i) + 0.5) / float64(cfg.Zones)
		z := -cfg.Extent + frac*2*cfg.Extent
		l.Zones = append(l.Zones, geom.Vec2{X: dockX, Z: z})
	}

	// Agent spawns line the east wall.
	spawnX := cfg.Extent - 2
	for i := 0; i < cfg.Agents; i++ {
		frac := (float64(i) + 0.5) / float64(cfg.Agents)
		z := -cfg.Extent + frac*2*cfg.Extent
		l.Spawns = append(l.Spawns, geom.Vec2{X: spawnX, Z: z})
	}

	// Obstacle clusters from thresholded octave noise on a unit grid,
	// kept clear of the dock, the spawn wall, and the floor center lane.
	noise := opensimplex.NewNormalized(seed)
	threshold := 1.0 - cfg.ObstacleDensity
	for x := -cfg.Extent + 1; x <= cfg.Extent-1; x++ {
		for z := -cfg.Extent + 1; z <= cfg.Extent-1; z++ {
			v := octaveNoise(noise, x, z, 3, 0.15, 0.5)
			if v < threshold {
				continue
			}
			pos := geom.Vec2{X: x, Z: z}
			if nearAny(pos, l.Zones, clearance*2) || nearAny(pos, l.Spawns, clearance*2) {
				continue
			}
			l.Obstacles = append(l.Obstacles, pos)
		}
	}

	// Item scatter: seeded uniform placement rejected near anything else.
	rng := rand.New(rand.NewSource(seed + 1))
	for len(l.Items) < cfg.Items {
		pos := geom.Vec2{
			X: (rng.Float64()*2 - 1) * (cfg.Extent - 2),
			Z: (rng.Float64()*2 - 1) * (cfg.Extent - 2),
		}
		if nearAny(pos, l.Obstacles, clearance) ||
			nearAny(pos, l.Zones, clearance) ||
			nearAny(pos, l.Spawns, clearance) ||
			nearAny(pos, l.Items, clearance) {
			continue
		}
		l.Items = append(l.Items, pos)
	}

	return l
}

// octaveNoise samples multi-octave noise in [0, 1].
func octaveNoise(n opensimplex.Noise, x, z float64, octaves int, freq, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, z*freq) * amplitude
		maxAmp += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxAmp
}

func nearAny(pos geom.Vec2, others []geom.Vec2, radius float64) bool {
	rsq := radius * radius
	for _, o := range others {
		if geom.DistSq(pos, o) < rsq {
			return true
		}
	}
	return false
}

// clampToFloor keeps a position inside the floor bounds.
func clampToFloor(pos geom.Vec2, extent float64) geom.Vec2 {
	return geom.Vec2{
		X: math.Max(-extent, math.Min(extent, pos.X)),
		Z: math.Max(-extent, math.Min(extent, pos.Z)),
	}
}
