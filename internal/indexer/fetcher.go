package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "indexer/pkg/errors"
)

// Fetcher retrieves a record from its resolving URL. No caching, no retry.
type Fetcher struct {
	http httpCaller
}

func NewFetcher(timeout time.Duration, opts ...HTTPOption) *Fetcher {
	return &Fetcher{http: newHTTPCaller(timeout, opts)}
}

// Fetch returns the body. Any error is the "no value" case: an unusable URL,
// a transport failure, a non-2xx status or an open breaker, wrapped in ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := parseRecordURL(rawURL)
	if err != nil {
		return "", apperrors.ErrFetch.WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", apperrors.ErrFetch.WithCause(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	body, err := f.http.do(req)
	if err != nil {
		return "", apperrors.ErrFetch.WithCause(err)
	}
	return body, nil
}

func parseRecordURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, errors.New("no resolving URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("URL has no host")
	}
	return u, nil
}
