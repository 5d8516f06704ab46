// Package persistence provides SQLite-based run storage and a compressed
// event log.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/world"
)

// ErrNoRun is returned when a run or the current-run pointer is missing.
var ErrNoRun = errors.New("persistence: no such run")

// Run outcomes.
const (
	OutcomeActive    = "active"
	OutcomeDestroyed = "destroyed"
	OutcomeAbandoned = "abandoned"
)

const metaCurrentRun = "current_run"

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB

	// Archive also receives every batch of events SaveRunState drains.
	// Optional.
	Archive *EventLog
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		surface_rows INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		cash INTEGER NOT NULL DEFAULT 0,
		max_depth INTEGER NOT NULL DEFAULT 0,
		fuel REAL NOT NULL DEFAULT 0,
		hull REAL NOT NULL DEFAULT 0,
		items_json TEXT NOT NULL DEFAULT '{}',
		outcome TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tiers (
		run_id TEXT NOT NULL,
		system TEXT NOT NULL,
		level INTEGER NOT NULL,
		PRIMARY KEY (run_id, system)
	);

	CREATE TABLE IF NOT EXISTS depth_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		depth INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_depth_run ON depth_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_sales_run ON sales(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID          string  `db:"id" json:"id"`
	Seed        int64   `db:"seed" json:"seed"`
	Width       int     `db:"width" json:"width"`
	Height      int     `db:"height" json:"height"`
	SurfaceRows int     `db:"surface_rows" json:"surface_rows"`
	StartedAt   string  `db:"started_at" json:"started_at"`
	SavedAt     string  `db:"saved_at" json:"saved_at"`
	Cash        int     `db:"cash" json:"cash"`
	MaxDepth    int     `db:"max_depth" json:"max_depth"`
	Fuel        float64 `db:"fuel" json:"fuel"`
	Hull        float64 `db:"hull" json:"hull"`
	ItemsJSON   string  `db:"items_json" json:"-"`
	Outcome     string  `db:"outcome" json:"outcome"`
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// NewRun registers a run on the given world and makes it current.
func (db *DB) NewRun(cfg world.GenConfig) (string, error) {
	id := uuid.NewString()
	ts := now()

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, seed, width, height, surface_rows, started_at, saved_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, cfg.Seed, cfg.Width, cfg.Height, cfg.SurfaceRows, ts, ts, OutcomeActive,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", metaCurrentRun, id); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	slog.Info("run started", "run_id", id, "seed", cfg.Seed)
	return id, nil
}

// CurrentRun returns the ID of the run that was active at the last save.
func (db *DB) CurrentRun() (string, error) {
	id, err := db.GetMeta(metaCurrentRun)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRun
	}
	return id, err
}

// SaveRun writes a run's profile and tier levels (full replace of tiers).
func (db *DB) SaveRun(runID string, p engine.Profile, outcome string) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE runs SET
		seed = ?, width = ?, height = ?, surface_rows = ?, saved_at = ?,
		cash = ?, max_depth = ?, fuel = ?, hull = ?, items_json = ?, outcome = ?
		WHERE id = ?`,
		p.World.Seed, p.World.Width, p.World.Height, p.World.SurfaceRows, now(),
		p.Cash, p.MaxDepth, p.Fuel, p.Hull, string(items), outcome, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoRun, runID)
	}

	if _, err := tx.Exec("DELETE FROM tiers WHERE run_id = ?", runID); err != nil {
		return err
	}
	stmt, err := tx.Preparex("INSERT INTO tiers (run_id, system, level) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for system, level := range p.Levels {
		if _, err := stmt.Exec(runID, system, level); err != nil {
			return fmt.Errorf("insert tier %s: %w", system, err)
		}
	}

	return tx.Commit()
}

// LoadRun reads a run's profile.
func (db *DB) LoadRun(runID string) (engine.Profile, error) {
	var rec RunRecord
	if err := db.conn.Get(&rec, "SELECT * FROM runs WHERE id = ?", runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Profile{}, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return engine.Profile{}, err
	}

	p := engine.Profile{
		World: world.GenConfig{
			Seed:        rec.Seed,
			Width:       rec.Width,
			Height:      rec.Height,
			SurfaceRows: rec.SurfaceRows,
		},
		Cash:     rec.Cash,
		MaxDepth: rec.MaxDepth,
		Fuel:     rec.Fuel,
		Hull:     rec.Hull,
		Levels:   make(map[string]int),
		Items:    make(map[string]int),
	}
	if err := json.Unmarshal([]byte(rec.ItemsJSON), &p.Items); err != nil {
		return p, fmt.Errorf("decode items: %w", err)
	}

	var tiers []struct {
		System string `db:"system"`
		Level  int    `db:"level"`
	}
	if err := db.conn.Select(&tiers, "SELECT system, level FROM tiers WHERE run_id = ?", runID); err != nil {
		return p, err
	}
	for _, t := range tiers {
		p.Levels[t.System] = t.Level
	}
	return p, nil
}

// Run returns the stored row for a run.
func (db *DB) Run(runID string) (RunRecord, error) {
	var rec RunRecord
	err := db.conn.Get(&rec, "SELECT * FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	return rec, err
}

// TopRuns returns runs ordered by deepest first.
func (db *DB) TopRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY max_depth DESC, cash DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
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

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveRunState performs a full save: profile, tiers, new events, and the
// last tick.
func (db *DB) SaveRunState(runID string, sim *engine.Simulation) error {
	p := sim.Profile()
	outcome := OutcomeActive
	if sim.GameOver() {
		outcome = OutcomeDestroyed
	}
	slog.Info("saving run state", "run_id", runID, "cash", humanize.Comma(int64(p.Cash)), "max_depth", p.MaxDepth)

	if err := db.SaveRun(runID, p, outcome); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	events := sim.DrainEvents()
	if err := db.SaveEvents(runID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if db.Archive != nil {
		if err := db.Archive.Write(events); err != nil {
			slog.Warn("event log write failed", "error", err)
		}
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", sim.Tick())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("run state saved")
	return nil
}
