package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Purger asks the edge-cache provider to evict hosts after a successful
// deployment. Each host is purged with its own request.
type Purger struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// NewPurger constructs a Purger. An empty endpoint leaves it unconfigured,
// which callers treat as a no-op.
func NewPurger(endpoint, token string, timeout time.Duration, logger *slog.Logger) *Purger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Purger{
		endpoint: strings.TrimSpace(endpoint),
		token:    strings.TrimSpace(token),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "cache"),
	}
}

// Configured reports whether purge requests can be issued.
func (p *Purger) Configured() bool {
	return p.endpoint != "" && p.token != ""
}

// PurgeHost requests eviction of one host and returns the cache zone that
// served it.
func (p *Purger) PurgeHost(ctx context.Context, host string) (string, error) {
	payload, err := json.Marshal(map[string][]string{"hosts": {host}})
	if err != nil {
		return "", fmt.Errorf("encode purge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("purge %s: %w", host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("purge %s rejected with status %d", host, resp.StatusCode)
	}

	var result struct {
		Zone string `json:"zone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode purge response for %s: %w", host, err)
	}
	return result.Zone, nil
}
