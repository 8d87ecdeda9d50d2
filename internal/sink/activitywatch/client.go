// Package activitywatch writes events to an ActivityWatch server over its REST API.
package activitywatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
)

const DefaultClientName = "aw-garmin"

// Client talks to a single ActivityWatch server.
type Client struct {
	baseURL    string
	clientName string
	hostname   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHostname overrides the hostname reported when creating buckets.
func WithHostname(hostname string) Option {
	return func(c *Client) { c.hostname = hostname }
}

// New returns a client for the server at host:port.
func New(host string, port int, clientName string, opts ...Option) *Client {
	if clientName == "" {
		clientName = DefaultClientName
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	c := &Client{
		baseURL:    "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		clientName: clientName,
		hostname:   hostname,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     xlog.WithComponent("activitywatch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithBaseURL returns a client for an explicit server URL.
func NewWithBaseURL(baseURL, clientName string, opts ...Option) *Client {
	c := New("localhost", 5600, clientName, opts...)
	c.baseURL = baseURL
	return c
}

type bucketRequest struct {
	Client   string `json:"client"`
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}

type eventPayload struct {
	Timestamp string         `json:"timestamp"`
	Duration  float64        `json:"duration"`
	Data      map[string]any `json:"data"`
}

// EnsureBucket creates the bucket. An existing bucket yields domain.ErrBucketExists.
func (c *Client) EnsureBucket(ctx context.Context, name, category string) error {
	body := bucketRequest{Client: c.clientName, Type: category, Hostname: c.hostname}
	status, detail, err := c.post(ctx, "/api/0/buckets/"+url.PathEscape(name), body)
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	switch {
	case status == http.StatusNotModified:
		return domain.ErrBucketExists
	case status >= 300:
		return fmt.Errorf("create bucket %s: unexpected status %d: %s", name, status, detail)
	}
	c.logger.Debug().Str("bucket", name).Str("type", category).Msg("bucket created")
	return nil
}

// InsertEvent appends one event to bucket.
func (c *Client) InsertEvent(ctx context.Context, bucket string, evt domain.Event) error {
	data := evt.Attributes
	if data == nil {
		data = map[string]any{}
	}
	payload := []eventPayload{{
		Timestamp: evt.Start.UTC().Format(time.RFC3339Nano),
		Duration:  evt.Duration.Seconds(),
		Data:      data,
	}}
	status, detail, err := c.post(ctx, "/api/0/buckets/"+url.PathEscape(bucket)+"/events", payload)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("unexpected status %d: %s", status, detail)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (int, string, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var detail []byte
	if resp.StatusCode >= 300 {
		detail, _ = io.ReadAll(io.LimitReader(resp.Body, 512))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, string(bytes.TrimSpace(detail)), nil
}
