// Package garmin fetches sleep and all-day activity records from the Garmin Connect wellness API.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
	"github.com/AndreyKarmanov/aw-garmin/internal/normalize"
)

const (
	DefaultBaseURL = "https://connectapi.garmin.com"
	DefaultAuthURL = "https://sso.garmin.com/sso/token"

	sleepPath  = "/wellness-service/wellness/dailySleepData/"
	eventsPath = "/wellness-service/wellness/dailyEvents"
	dateLayout = "2006-01-02"
)

// ErrNotLoggedIn is returned when a fetch is attempted before a successful Login.
var ErrNotLoggedIn = errors.New("garmin: not logged in")

// Credentials identify the account to sync.
type Credentials struct {
	Email    string
	Password string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests at rps per second. A non-positive rps disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger overrides the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client is a session-holding Garmin Connect client.
type Client struct {
	baseURL    string
	authURL    string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	mu          sync.RWMutex
	token       string
	displayName string
}

// New constructs a Client. Empty URLs fall back to the public Garmin endpoints.
func New(creds Credentials, baseURL, authURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authURL:    authURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		logger:     xlog.WithComponent("garmin"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	DisplayName string `json:"display_name"`
}

// Login exchanges the credentials for a session token.
// Rejected credentials yield a *domain.AuthError.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.creds.Email,
		"password": c.creds.Password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.AuthError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("garmin login: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("garmin login: decode token: %w", err)
	}
	if payload.AccessToken == "" {
		return &domain.AuthError{Status: resp.StatusCode, Detail: "empty access token"}
	}

	c.mu.Lock()
	c.token = payload.AccessToken
	c.displayName = payload.DisplayName
	c.mu.Unlock()

	c.logger.Debug().Str("display_name", payload.DisplayName).Msg("garmin session established")
	return nil
}

// FetchSleep returns the sleep record for date. Days without data yield an empty record.
func (c *Client) FetchSleep(ctx context.Context, date time.Time) (normalize.SleepData, error) {
	c.mu.RLock()
	displayName := c.displayName
	c.mu.RUnlock()

	query := url.Values{"date": {date.Format(dateLayout)}, "nonSleepBufferMinutes": {"60"}}
	var data normalize.SleepData
	if err := c.getJSON(ctx, sleepPath+url.PathEscape(displayName), query, &data); err != nil {
		return normalize.SleepData{}, fmt.Errorf("fetch sleep %s: %w", date.Format(dateLayout), err)
	}
	return data, nil
}

// FetchActivities returns the all-day events recorded on date.
func (c *Client) FetchActivities(ctx context.Context, date time.Time) ([]normalize.AllDayEvent, error) {
	query := url.Values{"calendarDate": {date.Format(dateLayout)}}
	var events []normalize.AllDayEvent
	if err := c.getJSON(ctx, eventsPath, query, &events); err != nil {
		return nil, fmt.Errorf("fetch activities %s: %w", date.Format(dateLayout), err)
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return ErrNotLoggedIn
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.AuthError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	case resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("garmin request")
	return resp, nil
}
