// Package persistence provides SQLite-based run telemetry storage: run
// metadata, floor events, per-tick decision telemetry, and compressed
// world checkpoints. Decision-core state (target locks, lifecycle
// contexts) is deliberately NOT persisted — it is volatile by contract and
// rebuilt from snapshots after a restart.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/depot-fleet/internal/protocol"
	"github.com/talgya/depot-fleet/internal/world"
)

// DB wraps a SQLite connection for run telemetry.
type DB struct {
	conn    *sqlx.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	db := &DB{conn: conn, encoder: enc, decoder: dec}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.encoder.Close()
	db.decoder.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		movement_type TEXT NOT NULL,
		target_x REAL NOT NULL,
		target_z REAL NOT NULL,
		action_type TEXT NOT NULL,
		action_target TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		state BLOB NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_decisions_run_tick ON decisions(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new run and returns its id.
func (db *DB) CreateRun(seed int64, cfg any) (string, error) {
	id := uuid.NewString()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, config_json) VALUES (?, ?, ?, ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339), string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveEvents appends floor events for a run.
func (db *DB) SaveEvents(runID string, events []world.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DecisionRow is one persisted decision record.
type DecisionRow struct {
	Tick         uint64  `db:"tick" json:"tick"`
	AgentID      string  `db:"agent_id" json:"agent_id"`
	MovementType string  `db:"movement_type" json:"movement_type"`
	TargetX      float64 `db:"target_x" json:"target_x"`
	TargetZ      float64 `db:"target_z" json:"target_z"`
	ActionType   string  `db:"action_type" json:"action_type"`
	ActionTarget string  `db:"action_target" json:"action_target"`
}

// SaveDecisions persists one tick's decision batch.
func (db *DB) SaveDecisions(runID string, tick uint64, decisions map[string]protocol.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO decisions
		(run_id, tick, agent_id, movement_type, target_x, target_z, action_type, action_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for agentID, d := range decisions {
		_, err := stmt.Exec(runID, tick, agentID,
			d.Movement.Type, d.Movement.TargetX, d.Movement.TargetZ,
			d.Action.Type, d.Action.TargetID)
		if err != nil {
			return fmt.Errorf("insert decision %s: %w", agentID, err)
		}
	}

	return tx.Commit()
}

// RecentDecisions returns the persisted decisions for the latest flushed
// tick of a run.
func (db *DB) RecentDecisions(runID string) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := db.conn.Select(&rows, `SELECT tick, agent_id, movement_type, target_x, target_z,
		action_type, action_target FROM decisions
		WHERE run_id = ? AND tick = (SELECT MAX(tick) FROM decisions WHERE run_id = ?)
		ORDER BY agent_id`, runID, runID)
	return rows, err
}

// SaveCheckpoint stores a zstd-compressed JSON snapshot of the floor.
func (db *DB) SaveCheckpoint(runID string, cp world.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	blob := db.encoder.EncodeAll(raw, nil)

	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO checkpoints (run_id, tick, state) VALUES (?, ?, ?)",
		runID, cp.Tick, blob,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	slog.Debug("checkpoint saved", "run", runID, "tick", cp.Tick,
		"raw_bytes", len(raw), "compressed_bytes", len(blob))
	return nil
}

// LoadLatestCheckpoint returns the most recent checkpoint for a run.
func (db *DB) LoadLatestCheckpoint(runID string) (world.Checkpoint, error) {
	var blob []byte
	err := db.conn.Get(&blob,
		"SELECT state FROM checkpoints WHERE run_id = ? ORDER BY tick DESC LIMIT 1", runID)
	if err != nil {
		return world.Checkpoint{}, err
	}

	raw, err := db.decoder.DecodeAll(blob, nil)
	if err != nil {
		return world.Checkpoint{}, fmt.Errorf("decompress checkpoint: %w", err)
	}

	var cp world.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return world.Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// RecentEvents returns the most recent N events for a run.
func (db *DB) RecentEvents(runID string, limit int) ([]world.Event, error) {
	var events []world.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
