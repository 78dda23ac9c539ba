// Package httpget implements ports.Downloader over HTTP.
package httpget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dhd-cli/dhd/internal/ports"
)

const defaultTimeout = 5 * time.Minute

// Client downloads files with net/http.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates a Client. A nil httpClient uses a client with a
// five minute timeout.
func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if userAgent == "" {
		userAgent = "dhd"
	}
	return &Client{http: httpClient, userAgent: userAgent}
}

// Fetch streams the body at url into w. Non-2xx responses are errors.
func (c *Client) Fetch(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}

var _ ports.Downloader = (*Client)(nil)
