package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const maxBody = 4 << 20

// ErrNoEndpoint is returned by adapters built without a base URL.
var ErrNoEndpoint = errors.New("remote: no endpoint configured")

// HTTPLookup fetches GET {base}/{code}. Confirmed results are cached; concurrent
// lookups of the same code share one request.
type HTTPLookup struct {
	base   string
	client *http.Client
	logger *slog.Logger
	cache  *lru.Cache[string, LookupResult]
	group  singleflight.Group
}

var _ Lookup = (*HTTPLookup)(nil)

// NewHTTPLookup builds a lookup client. A cacheSize below one disables caching.
func NewHTTPLookup(base string, timeout time.Duration, cacheSize int, logger *slog.Logger) *HTTPLookup {
	l := &HTTPLookup{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	if cacheSize > 0 {
		if c, err := lru.New[string, LookupResult](cacheSize); err == nil {
			l.cache = c
		}
	}
	return l
}

// WithClient swaps the HTTP client, mainly for tests.
func (l *HTTPLookup) WithClient(c *http.Client) *HTTPLookup {
	if c != nil {
		l.client = c
	}
	return l
}

// Lookup resolves code. An unknown code is a non-OK result, not an error.
func (l *HTTPLookup) Lookup(ctx context.Context, code string) (LookupResult, error) {
	if l.base == "" {
		return LookupResult{}, ErrNoEndpoint
	}
	if l.cache != nil {
		if r, ok := l.cache.Get(code); ok {
			return r, nil
		}
	}
	ch := l.group.DoChan(code, func() (any, error) {
		// Shared by every waiter on code; bounded by the client timeout.
		return l.fetch(context.WithoutCancel(ctx), code)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return LookupResult{}, res.Err
		}
		r := res.Val.(LookupResult)
		if l.cache != nil && r.Confirmed() {
			l.cache.Add(code, r)
		}
		return r, nil
	case <-ctx.Done():
		return LookupResult{}, fmt.Errorf("remote: lookup %s: %w", code, ctx.Err())
	}
}

func (l *HTTPLookup) fetch(ctx context.Context, code string) (LookupResult, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/"+url.PathEscape(code), nil)
	if err != nil {
		return LookupResult{}, fmt.Errorf("remote: lookup new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return LookupResult{}, fmt.Errorf("remote: lookup http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return LookupResult{Product: Product{Code: code}}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return LookupResult{}, fmt.Errorf("remote: lookup http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return LookupResult{}, fmt.Errorf("remote: lookup read body: %w", err)
	}
	var r LookupResult
	if err := json.Unmarshal(body, &r); err != nil {
		return LookupResult{}, fmt.Errorf("remote: lookup json decode: %w", err)
	}
	if r.Product.Code == "" {
		r.Product.Code = code
	}
	if l.logger != nil {
		l.logger.Debug("remote: lookup", "code", code, "ok", r.OK, "fallback", r.Fallback, "elapsed", time.Since(start))
	}
	return r, nil
}
