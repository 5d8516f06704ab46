package persistence

import (
	"log/slog"
	"sync"
)

// Recorder is a progress sink that stores depth records and sales against
// the current run. It does blocking writes, so wrap it in progress.Async
// before handing it to the simulation.
type Recorder struct {
	db *DB

	mu    sync.Mutex
	runID string
}

// NewRecorder creates a recorder writing to runID.
func (db *DB) NewRecorder(runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// SetRun points subsequent records at a different run.
func (r *Recorder) SetRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = runID
}

func (r *Recorder) run() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

func (r *Recorder) DepthReached(depth int) {
	_, err := r.db.conn.Exec(
		"INSERT INTO depth_records (run_id, depth, recorded_at) VALUES (?, ?, ?)",
		r.run(), depth, now(),
	)
	if err != nil {
		slog.Warn("depth record failed", "depth", depth, "error", err)
	}
}

func (r *Recorder) OreSold(value int) {
	_, err := r.db.conn.Exec(
		"INSERT INTO sales (run_id, value, recorded_at) VALUES (?, ?, ?)",
		r.run(), value, now(),
	)
	if err != nil {
		slog.Warn("sale record failed", "value", value, "error", err)
	}
}

// RunTotals summarises the records of one run.
type RunTotals struct {
	MaxDepth  int `db:"max_depth" json:"max_depth"`
	Sales     int `db:"sales" json:"sales"`
	SoldValue int `db:"sold_value" json:"sold_value"`
}

// Totals aggregates depth and sale records for a run.
func (db *DB) Totals(runID string) (RunTotals, error) {
	var t RunTotals
	if err := db.conn.Get(&t.MaxDepth,
		"SELECT COALESCE(MAX(depth), 0) FROM depth_records WHERE run_id = ?", runID); err != nil {
		return t, err
	}
	err := db.conn.QueryRowx(
		"SELECT COUNT(*), COALESCE(SUM(value), 0) FROM sales WHERE run_id = ?", runID,
	).Scan(&t.Sales, &t.SoldValue)
	return t, err
}
