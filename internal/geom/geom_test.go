package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVecArithmetic(t *testing.T) {
	a := Vec2{X: 1, Z: 2}
	b := Vec2{X: 3, Z: -1}

	assert.Equal(t, Vec2{X: 4, Z: 1}, a.Add(b))
	assert.Equal(t, Vec2{X: -2, Z: 3}, a.Sub(b))
	assert.Equal(t, Vec2{X: 2, Z: 4}, a.Scale(2))
}

func TestDistances(t *testing.T) {
	a := Vec2{X: 0, Z: 0}
	b := Vec2{X: 3, Z: 4}

	assert.InDelta(t, 5.0, Dist(a, b), 1e-12)
	assert.InDelta(t, 25.0, DistSq(a, b), 1e-12)
}

func TestNormalize(t *testing.T) {
	v := Vec2{X: 3, Z: 4}.Normalize()
	assert.InDelta(t, 0.6, v.X, 1e-12)
	assert.InDelta(t, 0.8, v.Z, 1e-12)
	assert.InDelta(t, 1.0, v.Len(), 1e-12)
}

func TestNormalizeZeroVector(t *testing.T) {
	// Shorter than Epsilon normalizes to zero instead of dividing by zero.
	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
	assert.Equal(t, Vec2{}, Vec2{X: 1e-12, Z: -1e-12}.Normalize())
}
