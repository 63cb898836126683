// Package remote talks to the local service that shows listening state and
// receives recognized text.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultURL     = "http://localhost:3000"
	DefaultTimeout = 10 * time.Second

	maxBody = 64 << 10
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Response is what the service answered. The status is not validated.
type Response struct {
	Status int
	Body   string
}

func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r Response) String() string {
	return fmt.Sprintf("<Response [%d]>", r.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("remote url must be http(s): %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, http: hc}, nil
}

func (c *Client) StartListen(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "/startListen", nil)
}

func (c *Client) StopListen(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "/stopListen", nil)
}

type sayRequest struct {
	Say string `json:"say"`
}

// Say posts {"say": text} to /say.
func (c *Client) Say(ctx context.Context, text string) (Response, error) {
	body, err := json.Marshal(sayRequest{Say: text})
	if err != nil {
		return Response{}, err
	}
	return c.do(ctx, http.MethodPost, "/say", body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return Response{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn("Failed to read response body", "path", path, "err", err)
	}

	r := Response{Status: resp.StatusCode, Body: string(data)}
	if !r.OK() {
		log.Warn("Remote answered with non-success status", "method", method, "path", path, "status", r.Status)
	}

	return r, nil
}
