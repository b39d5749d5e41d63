package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// HTTPAnalyzer POSTs a JPEG to the analysis endpoint.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ Analyzer = (*HTTPAnalyzer)(nil)

func NewHTTPAnalyzer(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPAnalyzer {
	return &HTTPAnalyzer{url: endpoint, client: &http.Client{Timeout: timeout}, logger: logger}
}

// WithClient swaps the HTTP client, mainly for tests.
func (a *HTTPAnalyzer) WithClient(c *http.Client) *HTTPAnalyzer {
	if c != nil {
		a.client = c
	}
	return a
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, jpeg []byte) (Analysis, error) {
	if a.url == "" {
		return Analysis{}, ErrNoEndpoint
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(jpeg))
	if err != nil {
		return Analysis{}, fmt.Errorf("remote: analyze new request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("remote: analyze http: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Analysis{}, fmt.Errorf("remote: analyze http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Analysis{}, fmt.Errorf("remote: analyze read body: %w", err)
	}
	var out Analysis
	if err := json.Unmarshal(body, &out); err != nil {
		return Analysis{}, fmt.Errorf("remote: analyze json decode: %w", err)
	}
	if a.logger != nil {
		a.logger.Debug("remote: analyze",
			"upload", humanize.Bytes(uint64(len(jpeg))),
			"status", out.Status,
			"elapsed", time.Since(start),
		)
	}
	return out, nil
}
