package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepFiresLayeredCallbacks(t *testing.T) {
	e := NewEngine()
	e.FlushEvery = 2
	e.CheckpointEvery = 4

	var ticks, flushes, checkpoints []uint64
	e.OnTick = func(tick uint64) { ticks = append(ticks, tick) }
	e.OnFlush = func(tick uint64) { flushes = append(flushes, tick) }
	e.OnCheckpoint = func(tick uint64) { checkpoints = append(checkpoints, tick) }

	for i := 0; i < 8; i++ {
		e.step()
	}

	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, ticks)
	assert.Equal(t, []uint64{2, 4, 6, 8}, flushes)
	assert.Equal(t, []uint64{4, 8}, checkpoints)
}

func TestZeroCadenceDisablesLayer(t *testing.T) {
	e := NewEngine()
	called := false
	e.OnFlush = func(uint64) { called = true }

	for i := 0; i < 5; i++ {
		e.step()
	}
	assert.False(t, called, "flush never fires when cadence is zero")
}

func TestStepToleratesNilCallbacks(t *testing.T) {
	e := NewEngine()
	e.FlushEvery = 1
	e.CheckpointEvery = 1

	assert.NotPanics(t, func() { e.step() })
	assert.Equal(t, uint64(1), e.Tick)
}

func TestDefaults(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.Speed)
	assert.Equal(t, uint64(0), e.Tick)
	assert.False(t, e.Running)
}
