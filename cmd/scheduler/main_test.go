package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/weekend-scheduler/internal/config"
	"github.com/example/weekend-scheduler/internal/delivery"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		StorageDriver:   config.DriverSQLite,
		SQLiteDSN:       filepath.Join(dir, "scheduler.db"),
		BadgerDir:       filepath.Join(dir, "badger"),
		DefaultTimezone: "UTC",
		DeliveryWorkers: 1,
		DeliveryBuffer:  16,
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, driver := range []string{config.DriverSQLite, config.DriverBadger} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := testConfig(t)
			cfg.StorageDriver = driver
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				t.Fatalf("openStore returned error: %v", err)
			}
			defer store.Close()

			if err := store.Ping(ctx); err != nil {
				t.Fatalf("expected store to be reachable, got %v", err)
			}
		})
	}

	t.Run("rejects unknown drivers", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.StorageDriver = "postgres"
		if _, err := openStore(context.Background(), cfg, logger); err == nil {
			t.Fatalf("expected unsupported driver error")
		}
	})
}

func TestNewIntegrations(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("logs messages without a token", func(t *testing.T) {
		t.Parallel()
		integ, err := newIntegrations(testConfig(t), logger)
		if err != nil {
			t.Fatalf("newIntegrations returned error: %v", err)
		}
		if _, ok := integ.transport.(delivery.LogTransport); !ok {
			t.Fatalf("expected LogTransport, got %T", integ.transport)
		}
		if integ.roster != nil || integ.worker != nil {
			t.Fatalf("expected no roster and no worker, got %+v", integ)
		}
	})

	t.Run("rejects an unusable redis url", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.RedisURL = "ftp://localhost"
		if _, err := newIntegrations(cfg, logger); err == nil {
			t.Fatalf("expected redis url error")
		}
	})
}

func TestNewAppServesAPI(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx := context.Background()
	cfg := testConfig(t)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("openStore returned error: %v", err)
	}
	defer store.Close()

	integ, err := newIntegrations(cfg, logger)
	if err != nil {
		t.Fatalf("newIntegrations returned error: %v", err)
	}
	wired := newApp(store, cfg, integ, logger)

	server := httptest.NewServer(wired.handler)
	defer server.Close()

	resp, err := http.Post(server.URL+"/guilds/g1/init", "application/json", strings.NewReader(`{"channel_id":"c1"}`))
	if err != nil {
		t.Fatalf("init request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from init, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/guilds/g1/polls", "application/json", nil)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	var created struct {
		Poll struct {
			ID string `json:"id"`
		} `json:"poll"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode poll: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || created.Poll.ID == "" {
		t.Fatalf("expected created poll, got %d %+v", resp.StatusCode, created)
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy store, got %d", resp.StatusCode)
	}

	server.Close()
	// Close drains the queue, so the creation announcement is logged by now.
	wired.dispatcher.Close()
	if !strings.Contains(logs.String(), "kind=poll_created") {
		t.Fatalf("expected poll creation to be delivered, logs: %s", logs.String())
	}
}
