// Package feedclient talks to the activity backend: the pull endpoints used for
// initial load and resync, and the dial for the push stream.
package feedclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/internal/version"
	"pkt.systems/teamwatch/schema"
)

// DefaultTimeout bounds each pull request.
const DefaultTimeout = 10 * time.Second

// ClientHeader carries the client instance id on every request.
const ClientHeader = "X-Teamwatch-Client"

const maxResponseBytes = 8 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request %s failed: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("request %s failed: %s; body=%s", e.URL, e.Status, e.Body)
}

// ErrNotEventStream is returned by OpenStream when the backend answers with a
// content type other than text/event-stream.
var ErrNotEventStream = errors.New("response is not an event stream")

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds pull requests. Stream dials are bounded only by ctx.
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests use httptest transports).
	Transport http.RoundTripper
	// ClientID identifies this dashboard instance; generated when empty.
	ClientID string
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	pull     *http.Client
	stream   *http.Client
	clientID string
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	base, err := ParseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Client{
		base:     base,
		pull:     &http.Client{Timeout: timeout, Transport: transport},
		stream:   &http.Client{Transport: transport},
		clientID: clientID,
	}, nil
}

// ParseBaseURL validates an http(s) backend URL and strips trailing slashes.
func ParseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return nil, errors.New("base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	return parsed, nil
}

// ClientID returns the instance id sent with every request.
func (c *Client) ClientID() string {
	return c.clientID
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Events fetches the newest events matching filter.
func (c *Client) Events(ctx context.Context, filter schema.FilterState, limit int) ([]schema.Event, error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", string(filter.Category))
	}
	if filter.AgentName != "" {
		query.Set("agent", filter.AgentName)
	}
	if filter.ToolName != "" {
		query.Set("tool", filter.ToolName)
	}
	if limit > 0 {
		query.Set("per_page", strconv.Itoa(limit))
	}
	body, err := c.get(ctx, "/api/events", query)
	if err != nil {
		return nil, err
	}
	return schema.DecodeEvents(body)
}

// Event fetches one event with its payload. A 404 maps to schema.ErrEventNotFound.
func (c *Client) Event(ctx context.Context, id schema.EventID) (schema.Event, error) {
	body, err := c.get(ctx, "/api/events/"+strconv.FormatInt(int64(id), 10), nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return schema.Event{}, fmt.Errorf("event %d: %w", id, schema.ErrEventNotFound)
		}
		return schema.Event{}, err
	}
	return schema.DecodeEvent(body)
}

// Agents fetches the agent summaries.
func (c *Client) Agents(ctx context.Context) ([]schema.AgentSummary, error) {
	body, err := c.get(ctx, "/api/agents", nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeAgents(body)
}

// Stats fetches the aggregate stats.
func (c *Client) Stats(ctx context.Context) (schema.ServerStats, error) {
	body, err := c.get(ctx, "/api/stats", nil)
	if err != nil {
		return schema.ServerStats{}, err
	}
	return schema.DecodeStats(body)
}

// OpenStream dials the push stream. A positive lastID is sent as Last-Event-ID.
// On success the caller owns the returned body.
func (c *Client) OpenStream(ctx context.Context, lastID schema.EventID) (io.ReadCloser, error) {
	endpoint := c.endpoint("/api/stream", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(ClientHeader, c.clientID)
	req.Header.Set("User-Agent", version.UserAgent())
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(int64(lastID), 10))
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	if err := checkStatus(endpoint, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w (content-type %q)", endpoint, ErrNotEventStream, mediaType)
	}
	pslog.Ctx(ctx).Debug("stream dialed", "url", endpoint, "last_event_id", int64(lastID))
	return resp.Body, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientHeader, c.clientID)
	req.Header.Set("User-Agent", version.UserAgent())

	started := time.Now()
	resp, err := c.pull.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(endpoint, resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", endpoint, err)
	}
	pslog.Ctx(ctx).Trace("fetch completed", "url", endpoint, "bytes", len(body), "duration_ms", time.Since(started).Milliseconds())
	return body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{
		URL:    endpoint,
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(body)),
	}
}
