// Package client is a small HTTP client for the atlas server API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/criteria-atlas/server/internal/plot"
)

// ErrStatus is matched by every non-2xx response error.
var ErrStatus = errors.New("unexpected status")

// StatusError carries the status and the server's error message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d", ErrStatus, e.Code)
	}
	return fmt.Sprintf("%s: %d: %s", ErrStatus, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// PlotList is the /api/plots response.
type PlotList struct {
	Default string `json:"default"`
	Plots   []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"plots"`
	Title string `json:"title"`
}

// Client calls one server.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs scheme and host", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Plots lists the server's plots.
func (c *Client) Plots(ctx context.Context) (*PlotList, error) {
	var out PlotList
	if err := c.get(ctx, "/api/plots", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Points fetches a plot's points. An empty name selects the default plot.
func (c *Client) Points(ctx context.Context, name string) ([]plot.DataPoint, error) {
	out := []plot.DataPoint{}
	if err := c.get(ctx, "/api/points", plotQuery(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Labels fetches a plot's cluster labels.
func (c *Client) Labels(ctx context.Context, name string) ([]plot.LabelPoint, error) {
	out := []plot.LabelPoint{}
	if err := c.get(ctx, "/api/labels", plotQuery(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ranks fetches a plot's rank table.
func (c *Client) Ranks(ctx context.Context, name string) ([]plot.RankEntry, error) {
	out := []plot.RankEntry{}
	if err := c.get(ctx, "/api/ranks", plotQuery(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot fetches a rendered PNG. params holds mode, lo, hi, hover,
// width and height; empty values are omitted.
func (c *Client) Snapshot(ctx context.Context, name string, params map[string]string) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	resp, err := c.do(ctx, "/api/plots/"+url.PathEscape(name)+"/snapshot.png", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func plotQuery(name string) url.Values {
	if name == "" {
		return nil
	}
	return url.Values{"plot": []string{name}}
}

func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := &StatusError{Code: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil {
			if json.Unmarshal(data, &body) == nil {
				serr.Message = body.Error
			}
		}
		return nil, fmt.Errorf("GET %s: %w", path, serr)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v interface{}) error {
	resp, err := c.do(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
