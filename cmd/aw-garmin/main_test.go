package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndreyKarmanov/aw-garmin/internal/config"
	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
)

type awServer struct {
	mu      sync.Mutex
	buckets map[string]bool
	events  int
}

func startActivityWatch(t *testing.T) (*awServer, string, int) {
	t.Helper()
	aw := &awServer{buckets: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/0/buckets/{id}", func(w http.ResponseWriter, r *http.Request) {
		aw.mu.Lock()
		defer aw.mu.Unlock()
		if aw.buckets[r.PathValue("id")] {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		aw.buckets[r.PathValue("id")] = true
	})
	mux.HandleFunc("POST /api/0/buckets/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		var batch []json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		aw.mu.Lock()
		aw.events += len(batch)
		aw.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return aw, host, port
}

func writeFixture(t *testing.T, dir, kind, date, body string) {
	t.Helper()
	path := filepath.Join(dir, kind, date+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestRunSyncEndToEndWithFixtures(t *testing.T) {
	aw, host, port := startActivityWatch(t)
	fixtures := t.TempDir()
	today := time.Now().Format(syncer.DateLayout)
	writeFixture(t, fixtures, "sleep", today,
		`{"sleepLevels":[{"startGMT":"2024-01-09T23:00:00.0","endGMT":"2024-01-10T01:30:00.0","activityLevel":1.0}]}`)
	writeFixture(t, fixtures, "activities", today,
		`[{"startTimestampGMT":"2024-01-10T06:00:00.0","duration":45,"activityType":"running"}]`)
	stateFile := filepath.Join(t.TempDir(), "sync_state.json")

	cfg = config.Config{
		Source:         config.SourceFixture,
		FixtureDir:     fixtures,
		Sink:           config.SinkActivityWatch,
		AWHost:         host,
		AWPort:         port,
		AWClientName:   "aw-garmin-test",
		BucketName:     "garmin-health",
		BucketCategory: "health",
		DaysBack:       0,
		StateBackend:   config.StateFile,
		StateFile:      stateFile,
		HTTPTimeout:    5 * time.Second,
		SyncInterval:   time.Minute,
	}

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), &out, syncer.RunOptions{DaysBack: 0}))
	require.Contains(t, out.String(), "Sync complete: 2 events inserted over 1 day(s)")
	require.Contains(t, out.String(), "sleep     watermark 2024-01-10T01:30:00Z")
	require.Equal(t, 2, aw.events)

	raw, err := os.ReadFile(stateFile)
	require.NoError(t, err)
	require.JSONEq(t, `{"sleep":"2024-01-10T01:30:00Z","activity":"2024-01-10T06:45:00Z"}`, string(raw))

	out.Reset()
	require.NoError(t, runSync(context.Background(), &out, syncer.RunOptions{DaysBack: 0}))
	require.Contains(t, out.String(), "Sync complete: 0 events inserted")
	require.Equal(t, 2, aw.events, "second run must not insert duplicates")
}

func TestRunSyncRejectsInvalidConfig(t *testing.T) {
	cfg = config.Config{Source: config.SourceGarmin}

	err := runSync(context.Background(), &bytes.Buffer{}, syncer.RunOptions{})
	require.ErrorContains(t, err, "invalid configuration")
	require.ErrorContains(t, err, "GARMIN_EMAIL and GARMIN_PASSWORD")
}

func TestExitCode(t *testing.T) {
	require.Equal(t, exitAuth, exitCode(fmt.Errorf("login: %w", &domain.AuthError{Status: 401})))
	require.Equal(t, exitFailure, exitCode(fmt.Errorf("boom")))
}
