package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/depot-fleet/internal/config"
	"github.com/talgya/depot-fleet/internal/geom"
)

func TestGenerateLayoutIsDeterministic(t *testing.T) {
	cfg := config.Default().World

	a := GenerateLayout(cfg, 42)
	b := GenerateLayout(cfg, 42)
	assert.Equal(t, a, b, "same seed, same floor")

	c := GenerateLayout(cfg, 43)
	assert.NotEqual(t, a.Items, c.Items, "different seed scatters items differently")
}

func TestGenerateLayoutCounts(t *testing.T) {
	cfg := config.Default().World
	l := GenerateLayout(cfg, 42)

	assert.Len(t, l.Spawns, cfg.Agents)
	assert.Len(t, l.Items, cfg.Items)
	assert.Len(t, l.Zones, cfg.Zones)
}

func TestZonesLineTheDockWall(t *testing.T) {
	cfg := config.Default().World
	l := GenerateLayout(cfg, 42)

	for _, z := range l.Zones {
		assert.Equal(t, -cfg.Extent+2, z.X)
	}
	for _, s := range l.Spawns {
		assert.Equal(t, cfg.Extent-2, s.X)
	}
}

func TestItemsKeepClearance(t *testing.T) {
	cfg := config.Default().World
	l := GenerateLayout(cfg, 42)

	for _, item := range l.Items {
		assert.False(t, nearAny(item, l.Obstacles, clearance), "item too close to an obstacle")
		assert.False(t, nearAny(item, l.Zones, clearance), "item inside a delivery zone")
		assert.False(t, nearAny(item, l.Spawns, clearance), "item on a spawn point")
	}
}

func TestObstaclesAvoidDockAndSpawns(t *testing.T) {
	cfg := config.Default().World
	l := GenerateLayout(cfg, 42)
	require.NotEmpty(t, l.Obstacles, "default density should produce obstacles")

	for _, o := range l.Obstacles {
		assert.False(t, nearAny(o, l.Zones, clearance*2))
		assert.False(t, nearAny(o, l.Spawns, clearance*2))
	}
}

func TestClampToFloor(t *testing.T) {
	assert.Equal(t, geom.Vec2{X: 20, Z: -20}, clampToFloor(geom.Vec2{X: 25, Z: -30}, 20))
	assert.Equal(t, geom.Vec2{X: 1, Z: 2}, clampToFloor(geom.Vec2{X: 1, Z: 2}, 20))
}
