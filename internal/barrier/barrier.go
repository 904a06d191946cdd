// Package barrier remote-controls the gate actuator over its HTTP API.
// Every call is a single bounded-timeout request; the caller decides
// whether a failure is surfaced to the end user. No retries, no queue.
package barrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 5 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Open commands the barrier to raise.
func (c *Client) Open(ctx context.Context) error {
	return c.post(ctx, "/open")
}

// Close commands the barrier to lower.
func (c *Client) Close(ctx context.Context) error {
	return c.post(ctx, "/close")
}

// Status queries the controller and passes its payload through
// verbatim; the body shape is the controller's own.
func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("barrier status request failed")
		return nil, fmt.Errorf("barrier status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("barrier status returned non-success")
		return nil, fmt.Errorf("barrier status: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read barrier status: %w", err)
	}
	return json.RawMessage(body), nil
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build barrier request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("barrier request failed")
		return fmt.Errorf("barrier %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("barrier returned non-success")
		return fmt.Errorf("barrier %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
