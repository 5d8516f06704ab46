package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/digsim/internal/autopilot"
	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/vehicle"
)

// ErrRejected is returned when the server refuses an action for the
// current state (not at the surface, maxed tier, missing item).
var ErrRejected = errors.New("remote: action rejected")

// ShopResult is the response from POST /api/v1/shop.
type ShopResult struct {
	Action string         `json:"action"`
	Sold   int            `json:"sold"`
	Cash   int            `json:"cash"`
	Levels map[string]int `json:"levels"`
	Items  map[string]int `json:"items"`
}

// Actor drives the run via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Input sets the held direction.
func (a *Actor) Input(d vehicle.Direction) error {
	return a.post("/api/v1/input", map[string]string{"direction": d.String()}, nil)
}

// ShopAction runs one shop action.
func (a *Actor) ShopAction(action, target string) (*ShopResult, error) {
	var res ShopResult
	body := map[string]string{"action": action}
	if target != "" {
		body["target"] = target
	}
	if err := a.post("/api/v1/shop", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *Actor) SellOre() (int, error) {
	res, err := a.ShopAction("sell", "")
	if err != nil {
		return 0, err
	}
	return res.Sold, nil
}

func (a *Actor) RepairHull() error {
	_, err := a.ShopAction("repair", "")
	return err
}

func (a *Actor) Refuel() error {
	_, err := a.ShopAction("refuel", "")
	return err
}

func (a *Actor) Upgrade(system string) error {
	_, err := a.ShopAction("upgrade", system)
	return err
}

func (a *Actor) BuyItem(k engine.ItemKind) error {
	_, err := a.ShopAction("buy", k.String())
	return err
}

func (a *Actor) UseItem(k engine.ItemKind) error {
	_, err := a.ShopAction("use", k.String())
	return err
}

// post sends body as JSON and decodes the response into target when set.
// Payment and conflict statuses map back to sentinel errors.
func (a *Actor) post(path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		return fmt.Errorf("POST %s: %w", path, ledger.ErrInsufficientFunds)
	case http.StatusConflict:
		return fmt.Errorf("POST %s: %w: %s", path, ErrRejected, bytes.TrimSpace(respBody))
	default:
		return fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client pairs an Observer and an Actor against one server.
type Client struct {
	*Observer
	*Actor
}

var _ autopilot.Counter = (*Client)(nil)

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{Observer: NewObserver(baseURL), Actor: NewActor(baseURL, adminKey)}
}

// Cycle runs one observe, decide, act round with the pilot's rules.
func (c *Client) Cycle(p *autopilot.Pilot) (autopilot.Decision, error) {
	obs, err := c.Observe()
	if err != nil {
		return autopilot.Decision{}, err
	}
	snap := obs.Status.Run
	d := p.Decide(snap, obs.Grid)

	for _, item := range d.Use {
		if err := c.UseItem(item); err != nil {
			slog.Warn("remote item failed", "item", item, "error", err)
		}
	}
	if d.Shop {
		if err := p.Shop(c); err != nil {
			slog.Warn("remote shopping failed", "error", err)
		}
	}
	if err := c.Input(d.Held); err != nil {
		return d, fmt.Errorf("input: %w", err)
	}
	p.Observe(d, snap.Depth)
	return d, nil
}
