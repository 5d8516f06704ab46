// Command digremote drives a running digsim over its HTTP API using the
// autopilot rules: observe the run, decide, then act via the admin
// endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/digsim/internal/autopilot"
	"github.com/talgya/digsim/internal/remote"
	"github.com/talgya/digsim/internal/tuning"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("DIGSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("DIGSIM_ADMIN_KEY")
	intervalMS := envIntOrDefault("DIGREMOTE_INTERVAL_MS", 50)

	if adminKey == "" {
		slog.Error("DIGSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	tu := tuning.Default()
	if path := os.Getenv("DIGSIM_TUNING"); path != "" {
		loaded, err := tuning.Load(path)
		if err != nil {
			slog.Error("failed to load tuning", "path", path, "error", err)
			os.Exit(1)
		}
		tu = loaded
	}

	interval := time.Duration(intervalMS) * time.Millisecond
	slog.Info("digremote starting", "api_url", apiURL, "interval", interval)

	client := remote.NewClient(apiURL, adminKey)
	pilot := autopilot.New(tu)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for digsim API...")
	if !waitForAPI(ctx, apiURL) {
		os.Exit(1)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last autopilot.Goal
	for {
		select {
		case <-ticker.C:
			d, err := client.Cycle(pilot)
			if err != nil {
				slog.Error("cycle failed", "error", err)
				continue
			}
			if d.Goal != last {
				slog.Info("goal", "goal", d.Goal, "held", d.Held, "detail", d.Detail)
				last = d.Goal
			}
		case <-ctx.Done():
			slog.Info("shutting down")
			fmt.Println("digremote stopped.")
			return
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after 5 minutes or when ctx ends.
func waitForAPI(ctx context.Context, apiURL string) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("digsim API is ready")
				return true
			}
		}
		if time.Now().After(deadline) {
			slog.Error("digsim API did not become ready within 5 minutes")
			return false
		}
		slog.Info("digsim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
