package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/AndreyKarmanov/aw-garmin/internal/auth"
	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/scheduler"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
	"github.com/AndreyKarmanov/aw-garmin/internal/watermark"
)

var authCfg = auth.Config{Secret: "test-secret", Issuer: "aw-garmin"}

type fakeRuns struct {
	gotOpts *syncer.RunOptions
	summary syncer.Summary
	err     error
	last    *scheduler.Status
}

func (f *fakeRuns) Trigger(_ context.Context, opts syncer.RunOptions) (syncer.Summary, error) {
	f.gotOpts = &opts
	return f.summary, f.err
}

func (f *fakeRuns) Last() *scheduler.Status { return f.last }

type fakeStore struct {
	state watermark.State
	err   error
}

func (f fakeStore) Load(context.Context) (watermark.State, error) { return f.state, f.err }

func token(t *testing.T, scopes ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "operator",
		"iss":    authCfg.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": scopes,
	}).SignedString([]byte(authCfg.Secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	h := NewHandler(&fakeRuns{}, fakeStore{}, 2).Routes(authCfg, RateLimit{})

	rec := serve(h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestWatermarksRequiresReadScope(t *testing.T) {
	h := NewHandler(&fakeRuns{}, fakeStore{}, 2).Routes(authCfg, RateLimit{})

	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/v1/watermarks", "", "").Code)
	require.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/v1/watermarks", token(t, auth.ScopeSyncWrite), "").Code)
}

func TestWatermarksReportsStateAndLastRun(t *testing.T) {
	sleep := time.Date(2024, time.January, 10, 1, 30, 0, 0, time.UTC)
	runs := &fakeRuns{last: &scheduler.Status{
		FinishedAt: time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC),
		Summary:    syncer.Summary{RunID: "run-1", EventsInserted: 3},
	}}
	h := NewHandler(runs, fakeStore{state: watermark.State{Sleep: &sleep}}, 2).Routes(authCfg, RateLimit{})

	rec := serve(h, http.MethodGet, "/v1/watermarks", token(t, auth.ScopeSyncRead), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Watermarks map[string]*string `json:"watermarks"`
		LastRun    struct {
			RunID          string `json:"run_id"`
			EventsInserted int    `json:"events_inserted"`
		} `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "2024-01-10T01:30:00Z", *resp.Watermarks["sleep"])
	require.Nil(t, resp.Watermarks["activity"])
	require.Equal(t, "run-1", resp.LastRun.RunID)
	require.Equal(t, 3, resp.LastRun.EventsInserted)
}

func TestWatermarksStoreFailure(t *testing.T) {
	h := NewHandler(&fakeRuns{}, fakeStore{err: errors.New("db down")}, 2).Routes(authCfg, RateLimit{})

	rec := serve(h, http.MethodGet, "/v1/watermarks", token(t, auth.ScopeSyncRead), "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncUsesDefaultsForEmptyBody(t *testing.T) {
	runs := &fakeRuns{summary: syncer.Summary{
		RunID:          "run-2",
		Dates:          []time.Time{time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)},
		Inserted:       map[domain.Stream]int{domain.StreamSleep: 2},
		EventsInserted: 2,
	}}
	h := NewHandler(runs, fakeStore{}, 4).Routes(authCfg, RateLimit{})

	rec := serve(h, http.MethodPost, "/v1/sync", token(t, auth.ScopeSyncWrite), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 4, runs.gotOpts.DaysBack)
	require.Nil(t, runs.gotOpts.Date)

	var view RunView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, []string{"2024-01-10"}, view.Dates)
	require.Equal(t, 2, view.Inserted["sleep"])
}

func TestSyncWithExplicitDate(t *testing.T) {
	runs := &fakeRuns{}
	h := NewHandler(runs, fakeStore{}, 2).Routes(authCfg, RateLimit{})

	rec := serve(h, http.MethodPost, "/v1/sync", token(t, auth.ScopeSyncWrite), `{"date":"2024-01-08","days_back":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC), *runs.gotOpts.Date)
	require.Equal(t, 0, runs.gotOpts.DaysBack)
}

func TestSyncValidation(t *testing.T) {
	h := NewHandler(&fakeRuns{}, fakeStore{}, 2).Routes(authCfg, RateLimit{})
	bearer := token(t, auth.ScopeSyncWrite)

	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/v1/sync", bearer, `{"date":"10/01/2024"}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/v1/sync", bearer, `{"days_back":-1}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/v1/sync", bearer, `{`).Code)
	require.Equal(t, http.StatusForbidden, serve(h, http.MethodPost, "/v1/sync", token(t, auth.ScopeSyncRead), "").Code)
}

func TestSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "busy", err: scheduler.ErrRunInProgress, status: http.StatusConflict},
		{name: "upstream auth", err: &domain.AuthError{Status: 401}, status: http.StatusBadGateway},
		{name: "other", err: errors.New("sink unreachable"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeRuns{err: tc.err}, fakeStore{}, 2).Routes(authCfg, RateLimit{})
			rec := serve(h, http.MethodPost, "/v1/sync", token(t, auth.ScopeSyncWrite), "")
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(&fakeRuns{}, fakeStore{}, 2).Routes(authCfg, RateLimit{Requests: 2, Window: time.Minute})

	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "", "").Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "", "").Code)
	rec := serve(h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}
