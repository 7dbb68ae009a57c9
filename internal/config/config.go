// Package config loads the YAML tuning file. Every behavioral knob of the
// decision core lives here — thresholds are configuration, not constants
// baked into the algorithms. A missing file yields the full defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/depot-fleet/internal/avoid"
	"github.com/talgya/depot-fleet/internal/claim"
	"github.com/talgya/depot-fleet/internal/lifecycle"
)

// Config is the complete fleetsim configuration.
type Config struct {
	Seed   int64  `yaml:"seed"`
	DBPath string `yaml:"db_path"`

	API       API       `yaml:"api"`
	Engine    Engine    `yaml:"engine"`
	World     World     `yaml:"world"`
	Claim     Claim     `yaml:"claim"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
	Avoidance Avoidance `yaml:"avoidance"`
}

// API configures the HTTP server.
type API struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key"`
}

// Engine configures the tick loop.
type Engine struct {
	TickMillis      int     `yaml:"tick_millis"`
	Speed           float64 `yaml:"speed"`
	FlushEvery      uint64  `yaml:"flush_every"`      // Ticks between telemetry flushes.
	CheckpointEvery uint64  `yaml:"checkpoint_every"` // Ticks between persisted checkpoints.
}

// World configures floor generation and physics.
type World struct {
	Extent           float64 `yaml:"extent"` // Floor spans [-extent, extent] on both axes.
	Agents           int     `yaml:"agents"`
	Items            int     `yaml:"items"`
	Zones            int     `yaml:"zones"`
	ObstacleDensity  float64 `yaml:"obstacle_density"` // Noise threshold quantile, 0–1.
	VisibilityRadius float64 `yaml:"visibility_radius"` // 0 = unlimited.
	RespawnItems     bool    `yaml:"respawn_items"`
	WalkSpeed        float64 `yaml:"walk_speed"` // Units per tick.
	RunSpeed         float64 `yaml:"run_speed"`
}

// Claim configures the task-claim tournament.
type Claim struct {
	Policy            string  `yaml:"policy"` // "sticky" or "reevaluate".
	LockDistance      float64 `yaml:"lock_distance"`
	DistanceTolerance float64 `yaml:"distance_tolerance"`
}

// Lifecycle configures the pickup/delivery state machine.
type Lifecycle struct {
	PickupThreshold float64 `yaml:"pickup_threshold"`
	DropThreshold   float64 `yaml:"drop_threshold"`
	RunWhileEnRoute bool    `yaml:"run_while_en_route"`
	RunDistance     float64 `yaml:"run_distance"`
}

// Avoidance configures the repulsion field.
type Avoidance struct {
	ObstacleRadius   float64 `yaml:"obstacle_radius"`
	ObstacleStrength float64 `yaml:"obstacle_strength"`
	PeerRadius       float64 `yaml:"peer_radius"`
	PeerStrength     float64 `yaml:"peer_strength"`
}

// Default returns the full default configuration. Threshold values follow
// the tuning the system shipped with.
func Default() Config {
	return Config{
		Seed:   42,
		DBPath: "data/fleet.db",
		API: API{
			Port: 8080,
		},
		Engine: Engine{
			TickMillis:      250,
			Speed:           1.0,
			FlushEvery:      60,
			CheckpointEvery: 1200,
		},
		World: World{
			Extent:           20,
			Agents:           8,
			Items:            24,
			Zones:            2,
			ObstacleDensity:  0.12,
			VisibilityRadius: 0,
			RespawnItems:     true,
			WalkSpeed:        0.25,
			RunSpeed:         0.5,
		},
		Claim: Claim{
			Policy:            "sticky",
			LockDistance:      0,
			DistanceTolerance: 0.01,
		},
		Lifecycle: Lifecycle{
			PickupThreshold: 0.6,
			DropThreshold:   0.7,
			RunWhileEnRoute: false,
			RunDistance:     5.0,
		},
		Avoidance: Avoidance{
			ObstacleRadius:   2.5,
			ObstacleStrength: 3.0,
			PeerRadius:       1.3,
			PeerStrength:     1.5,
		},
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error — it returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ClaimConfig converts to the typed tournament config.
func (c Config) ClaimConfig() claim.Config {
	return claim.Config{
		Policy:            claim.ParsePolicy(c.Claim.Policy),
		LockDistance:      c.Claim.LockDistance,
		DistanceTolerance: c.Claim.DistanceTolerance,
	}
}

// LifecycleConfig converts to the typed lifecycle config.
func (c Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		PickupThreshold: c.Lifecycle.PickupThreshold,
		DropThreshold:   c.Lifecycle.DropThreshold,
		RunWhileEnRoute: c.Lifecycle.RunWhileEnRoute,
		RunDistance:     c.Lifecycle.RunDistance,
	}
}

// AvoidConfig converts to the typed avoidance config.
func (c Config) AvoidConfig() avoid.Config {
	return avoid.Config{
		ObstacleRadius:   c.Avoidance.ObstacleRadius,
		ObstacleStrength: c.Avoidance.ObstacleStrength,
		PeerRadius:       c.Avoidance.PeerRadius,
		PeerStrength:     c.Avoidance.PeerStrength,
	}
}
