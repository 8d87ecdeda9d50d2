// Package api exposes the daemon's HTTP surface: health, committed watermarks and on-demand runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AndreyKarmanov/aw-garmin/internal/auth"
	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/scheduler"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
	"github.com/AndreyKarmanov/aw-garmin/internal/watermark"
)

// SyncTrigger starts runs on demand and reports the last finished one.
type SyncTrigger interface {
	Trigger(ctx context.Context, opts syncer.RunOptions) (syncer.Summary, error)
	Last() *scheduler.Status
}

// WatermarkLoader reads committed watermarks.
type WatermarkLoader interface {
	Load(ctx context.Context) (watermark.State, error)
}

// RateLimit bounds requests per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Handler coordinates HTTP requests with the scheduler and watermark store.
type Handler struct {
	runs            SyncTrigger
	store           WatermarkLoader
	defaultDaysBack int
}

// NewHandler builds a Handler. Runs requested without days_back use defaultDaysBack.
func NewHandler(runs SyncTrigger, store WatermarkLoader, defaultDaysBack int) *Handler {
	return &Handler{runs: runs, store: store, defaultDaysBack: defaultDaysBack}
}

// Routes returns the router. /healthz and /metrics are public; /v1 requires a bearer token.
func (h *Handler) Routes(authCfg auth.Config, limit RateLimit) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	if limit.Requests > 0 {
		r.Use(httprate.Limit(limit.Requests, limit.Window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
			}),
		))
	}

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.NewMiddleware(authCfg, nil).Wrap)
		r.With(auth.RequireScope(auth.ScopeSyncRead)).Get("/watermarks", h.watermarks)
		r.With(auth.RequireScope(auth.ScopeSyncWrite)).Post("/sync", h.sync)
	})
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) watermarks(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := WatermarksResponse{Watermarks: state}
	if last := h.runs.Last(); last != nil {
		view := toRunView(last.Summary, last.Err)
		view.FinishedAt = &last.FinishedAt
		resp.LastRun = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	opts, err := req.Options(h.defaultDaysBack)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	summary, err := h.runs.Trigger(r.Context(), opts)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", err.Error())
	case errors.Is(err, domain.ErrAuth):
		writeJSON(w, http.StatusBadGateway, toRunView(summary, err))
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, toRunView(summary, err))
	default:
		writeJSON(w, http.StatusOK, toRunView(summary, nil))
	}
}

// SyncRequest is the optional payload for POST /v1/sync.
type SyncRequest struct {
	Date     string `json:"date,omitempty"`
	DaysBack *int   `json:"days_back,omitempty"`
}

// Options validates the request and converts it to run options.
func (r SyncRequest) Options(defaultDaysBack int) (syncer.RunOptions, error) {
	opts := syncer.RunOptions{DaysBack: defaultDaysBack}
	if r.DaysBack != nil {
		if *r.DaysBack < 0 {
			return opts, errors.New("days_back must be >= 0")
		}
		opts.DaysBack = *r.DaysBack
	}
	if r.Date != "" {
		date, err := syncer.ParseDate(r.Date)
		if err != nil {
			return opts, fmt.Errorf("date must be YYYY-MM-DD: %q", r.Date)
		}
		opts.Date = &date
	}
	return opts, nil
}

// RunView describes a finished run.
type RunView struct {
	RunID             string          `json:"run_id,omitempty"`
	Dates             []string        `json:"dates"`
	Inserted          map[string]int  `json:"inserted"`
	Skipped           map[string]int  `json:"skipped"`
	EventsInserted    int             `json:"events_inserted"`
	WatermarkAdvanced bool            `json:"watermark_advanced"`
	Watermarks        watermark.State `json:"watermarks"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// WatermarksResponse is returned by GET /v1/watermarks.
type WatermarksResponse struct {
	Watermarks watermark.State `json:"watermarks"`
	LastRun    *RunView        `json:"last_run,omitempty"`
}

func toRunView(summary syncer.Summary, err error) RunView {
	view := RunView{
		RunID:             summary.RunID,
		Dates:             make([]string, 0, len(summary.Dates)),
		Inserted:          make(map[string]int, len(summary.Inserted)),
		Skipped:           make(map[string]int, len(summary.Skipped)),
		EventsInserted:    summary.EventsInserted,
		WatermarkAdvanced: summary.WatermarkAdvanced,
		Watermarks:        summary.Watermarks,
	}
	for _, d := range summary.Dates {
		view.Dates = append(view.Dates, d.Format(syncer.DateLayout))
	}
	for stream, n := range summary.Inserted {
		view.Inserted[string(stream)] = n
	}
	for stream, n := range summary.Skipped {
		view.Skipped[string(stream)] = n
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
