package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client talks to a running daemon's HTTP endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the daemon on 127.0.0.1:port.
func NewClient(port int) *Client {
	return &Client{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		HTTP:    http.DefaultClient,
	}
}

// Organize asks the daemon to group every open tab and returns how many
// tabs were processed.
func (c *Client) Organize(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/organize", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("daemon not reachable (is `tabgrouper serve` running?): %w", err)
	}
	defer resp.Body.Close()

	var body OrganizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "done" {
		return 0, fmt.Errorf("organize failed: %s", body.Error)
	}
	return body.Tabs, nil
}

// Status fetches the daemon's connection and settings summary.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var st StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return st, fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("status: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
