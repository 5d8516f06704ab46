// Package remote drives a run through the HTTP API instead of in-process.
// It observes the run via the public endpoints, decides with the autopilot
// rules, and acts via the admin endpoints.
package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/world"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name    string          `json:"name"`
	SimTime string          `json:"sim_time"`
	Speed   float64         `json:"speed"`
	Running bool            `json:"running"`
	XP      int             `json:"xp"`
	Level   int             `json:"level"`
	RunID   string          `json:"run_id"`
	Run     engine.Snapshot `json:"run"`
}

// Observation holds everything collected in one observe cycle.
type Observation struct {
	Status Status
	Grid   *Rows
}

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches the status and the grid rows around the vehicle.
func (o *Observer) Observe() (*Observation, error) {
	obs := &Observation{}
	if err := o.fetchJSON("/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}

	run := obs.Status.Run
	from := max(0, run.Y-1)
	to := min(run.Height, run.Y+2)
	var grid struct {
		From int      `json:"from"`
		Rows []string `json:"rows"`
	}
	if err := o.fetchJSON(fmt.Sprintf("/api/v1/grid?from=%d&to=%d", from, to), &grid); err != nil {
		return nil, fmt.Errorf("fetch grid: %w", err)
	}
	obs.Grid = NewRows(run.Width, run.Height, run.Surface, grid.From, grid.Rows)
	return obs, nil
}

// Snapshot fetches the current run state.
func (o *Observer) Snapshot() (engine.Snapshot, error) {
	var st Status
	if err := o.fetchJSON("/api/v1/status", &st); err != nil {
		return engine.Snapshot{}, err
	}
	return st.Run, nil
}

// Quote fetches the shop price list.
func (o *Observer) Quote() (engine.Quote, error) {
	var q engine.Quote
	err := o.fetchJSON("/api/v1/shop", &q)
	return q, err
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Rows is a partial grid rebuilt from glyph rows. Rows outside the fetched
// band read as out of bounds.
type Rows struct {
	width, height, surface int
	from                   int
	rows                   []string
}

var _ world.View = (*Rows)(nil)

// NewRows wraps glyph rows starting at row from.
func NewRows(width, height, surface, from int, rows []string) *Rows {
	return &Rows{width: width, height: height, surface: surface, from: from, rows: rows}
}

func (r *Rows) Width() int       { return r.width }
func (r *Rows) Height() int      { return r.height }
func (r *Rows) SurfaceRows() int { return r.surface }

// InBounds reports whether (x, y) is inside the fetched band.
func (r *Rows) InBounds(x, y int) bool {
	i := y - r.from
	return x >= 0 && x < r.width && i >= 0 && i < len(r.rows) && x < len(r.rows[i])
}

// TileAt decodes the glyph at (x, y). The vehicle marker reads as empty.
func (r *Rows) TileAt(x, y int) (world.TileKind, error) {
	if !r.InBounds(x, y) {
		return world.TileEmpty, fmt.Errorf("%w: (%d,%d)", world.ErrOutOfBounds, x, y)
	}
	b := r.rows[y-r.from][x]
	if b == '@' {
		return world.TileEmpty, nil
	}
	k, ok := world.ParseGlyph(b)
	if !ok {
		return world.TileEmpty, fmt.Errorf("remote: unknown glyph %q at (%d,%d)", b, x, y)
	}
	return k, nil
}

// Solid reports whether the tile blocks movement.
func (r *Rows) Solid(x, y int) bool {
	k, err := r.TileAt(x, y)
	return err != nil || k.Solid()
}
