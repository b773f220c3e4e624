// Package httpget performs the GET requests behind every network fetcher
// and classifies their failures.
package httpget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// DefaultMaxBodyBytes bounds a response body.
const DefaultMaxBodyBytes = 8 << 20

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "ambient/1.0"

// Getter implements GET requests with a bounded body.
type Getter struct {
	client    ports.HTTPClient
	logger    log.Logger
	userAgent string
	maxBytes  int64
	now       func() time.Time
}

// NewGetter creates a getter. A nil client uses http.DefaultClient.
func NewGetter(client ports.HTTPClient, logger log.Logger) *Getter {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Getter{
		client:    client,
		logger:    logger,
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBodyBytes,
		now:       time.Now,
	}
}

// WithMaxBytes returns a copy of g with a different body limit.
func (g *Getter) WithMaxBytes(n int64) *Getter {
	c := *g
	c.maxBytes = n
	return &c
}

// Get fetches url and returns the body. Every failure is a
// *domain.FetchError: 401 and 403 are Unauthorized, 429 is RateLimited,
// any other non-2xx status is Network, and deadlines are Timeout.
func (g *Getter) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewFetchError(domain.ErrorNetwork, g.now(), "create request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	start := g.now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(fmt.Errorf("get %s: %w", redact(url), err), g.now())
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp.StatusCode, string(snippet), g.now())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, domain.ClassifyError(fmt.Errorf("read body: %w", err), g.now())
	}
	if int64(len(body)) > g.maxBytes {
		return nil, domain.NewFetchError(domain.ErrorParse, g.now(), "response larger than %d bytes", g.maxBytes)
	}

	g.logger.Debug("fetched",
		log.String("url", redact(url)),
		log.Int("status", resp.StatusCode),
		log.Int("bytes", len(body)),
		log.Duration("duration", g.now().Sub(start)),
	)
	return body, nil
}

func statusError(code int, body string, at time.Time) *domain.FetchError {
	kind := domain.ErrorNetwork
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrorUnauthorized
	case http.StatusTooManyRequests:
		kind = domain.ErrorRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = domain.ErrorTimeout
	}
	if body == "" {
		return domain.NewFetchError(kind, at, "server returned %d", code)
	}
	return domain.NewFetchError(kind, at, "server returned %d: %s", code, body)
}
