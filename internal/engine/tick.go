// Package engine provides the tick-based simulation loop. One tick is one
// decision cycle: every agent decides once against one shared snapshot.
package engine

import (
	"log/slog"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets).
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused.
	Interval time.Duration // Base tick interval.
	Running  bool

	// FlushEvery and CheckpointEvery gate the periodic callbacks; zero
	// disables the layer.
	FlushEvery      uint64
	CheckpointEvery uint64

	// Callbacks for each layer — populated during setup.
	OnTick       func(tick uint64) // Every tick: decide and apply.
	OnFlush      func(tick uint64) // Periodic telemetry flush.
	OnCheckpoint func(tick uint64) // Periodic persisted checkpoint.
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: 250 * time.Millisecond,
	}
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.Running = true
	slog.Info("engine started", "tick", e.Tick, "speed", e.Speed)

	for e.Running {
		if e.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.Running = false
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	if e.FlushEvery > 0 && e.Tick%e.FlushEvery == 0 && e.OnFlush != nil {
		e.OnFlush(e.Tick)
	}

	if e.CheckpointEvery > 0 && e.Tick%e.CheckpointEvery == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint(e.Tick)
	}
}
