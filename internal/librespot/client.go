package librespot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMalformed marks a status payload that answered but did not parse.
// Callers treat it as "no active playback" rather than a dead device.
var ErrMalformed = errors.New("malformed status payload")

// StatusSource is the polled side of the device API.
type StatusSource interface {
	Status(ctx context.Context) (*StatusResponse, error)
	Connected(ctx context.Context) bool
}

// CommandSink is the command side of the device API. All calls are safe for
// fire-and-forget use; failures are reported but never retried here.
type CommandSink interface {
	Play(ctx context.Context, uri, skipToURI string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Seek(ctx context.Context, positionMS int64) error
	SetVolume(ctx context.Context, level int) error
}

// Ensure Client satisfies both halves at compile time.
var (
	_ StatusSource = (*Client)(nil)
	_ CommandSink  = (*Client)(nil)
)

const (
	statusTimeout  = 2 * time.Second
	commandTimeout = 2 * time.Second
	playTimeout    = 5 * time.Second
	probeTimeout   = 1 * time.Second
)

// Client talks to the device's HTTP API. Every call carries a short fixed
// timeout so a hung device never stalls the poll loop or a user action.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient builds a Client for the given base URL, e.g.
// "http://localhost:3678".
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return &Client{
		baseURL: u,
		// The outer cap; individual calls use tighter context deadlines.
		http: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Status fetches current playback status. A 204 response means no active
// playback and returns (nil, nil).
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/status"), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var payload StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &payload, nil
}

// Connected probes device reachability with the tightest timeout.
func (c *Client) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/status"), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent
}

// Play loads a context (album/playlist), optionally skipping to a track
// within it.
func (c *Client) Play(ctx context.Context, uri, skipToURI string) error {
	body := map[string]any{"uri": uri}
	if skipToURI != "" {
		body["skip_to_uri"] = skipToURI
	}
	return c.post(ctx, "/player/play", body, playTimeout)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.post(ctx, "/player/pause", nil, commandTimeout)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.post(ctx, "/player/resume", nil, commandTimeout)
}

func (c *Client) Next(ctx context.Context) error {
	return c.post(ctx, "/player/next", nil, commandTimeout)
}

func (c *Client) Prev(ctx context.Context) error {
	return c.post(ctx, "/player/prev", nil, commandTimeout)
}

// Seek moves playback to an absolute position in milliseconds.
func (c *Client) Seek(ctx context.Context, positionMS int64) error {
	return c.post(ctx, "/player/seek", map[string]any{"position": positionMS}, commandTimeout)
}

// SetVolume sets the device volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return c.post(ctx, "/player/volume", map[string]any{"volume": level}, commandTimeout)
}

func (c *Client) post(ctx context.Context, path string, body any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}
