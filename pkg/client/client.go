// Package client is a Go client for the submission API. It submits work
// reports and polls their status until a terminal state is reached.
package client

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
	"time"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/queue"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

var (
	// ErrNotFound is returned when the server does not know a submission id.
	ErrNotFound = errors.New("submission not found")

	// ErrStoppedPolling is returned when a submission is still unresolved after the poll budget.
	ErrStoppedPolling = errors.New("stopped polling before the submission finished")
)

// Client talks to the submission API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8081").
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Submit enqueues p and returns the submission id.
func (c *Client) Submit(ctx context.Context, p reports.Payload) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/reports", p, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Status fetches the current state of a submission.
func (c *Client) Status(ctx context.Context, id string) (queue.StatusResponse, error) {
	var resp queue.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status?id="+url.QueryEscape(id), nil, &resp)
	return resp, err
}

// Stats fetches the aggregate queue metrics.
func (c *Client) Stats(ctx context.Context) (queue.Metrics, error) {
	var m queue.Metrics
	err := c.do(ctx, http.MethodGet, "/stats", nil, &m)
	return m, err
}

// Poller polls a submission until it completes or fails.
type Poller struct {
	Client      *Client
	Interval    time.Duration // Delay between polls (default: 1s)
	MaxAttempts int           // Polls before giving up (default: 30)
}

// NewPoller returns a poller with the default budget.
func NewPoller(c *Client) *Poller {
	return &Poller{Client: c, Interval: time.Second, MaxAttempts: 30}
}

// Wait polls id until it reaches a terminal state.
// A failed submission is returned with a nil error; the caller inspects resp.Error.
// ErrNotFound is returned at once; ErrStoppedPolling when the budget runs out.
func (p *Poller) Wait(ctx context.Context, id string) (queue.StatusResponse, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 30
	}

	var last queue.StatusResponse
	for i := 0; i < attempts; i++ {
		resp, err := p.Client.Status(ctx, id)
		if err != nil {
			return resp, err
		}
		if resp.Status.Terminal() {
			return resp, nil
		}
		last = resp

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
	return last, fmt.Errorf("%w: %s still %s after %d polls", ErrStoppedPolling, id, last.Status, attempts)
}

// SubmitAndWait submits p and waits for the outcome.
func (p *Poller) SubmitAndWait(ctx context.Context, payload reports.Payload) (queue.StatusResponse, error) {
	id, err := p.Client.Submit(ctx, payload)
	if err != nil {
		return queue.StatusResponse{}, err
	}
	return p.Wait(ctx, id)
}
