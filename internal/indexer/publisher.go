package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "indexer/pkg/errors"
)

// Publisher PUTs documents into a search index keyed by token.
type Publisher struct {
	baseURL string
	index   string
	http    httpCaller
}

func NewPublisher(baseURL, index string, timeout time.Duration, opts ...HTTPOption) *Publisher {
	return &Publisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		http:    newHTTPCaller(timeout, opts),
	}
}

// DocumentURL is {base}/{index}/_doc/{token}?pretty.
func (p *Publisher) DocumentURL(token string) string {
	return p.baseURL + "/" + p.index + "/_doc/" + url.PathEscape(token) + "?pretty"
}

// Publish returns the index's response body. Any error, wrapped in
// ErrPublish, means the document was not indexed.
func (p *Publisher) Publish(ctx context.Context, doc, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.DocumentURL(token), strings.NewReader(doc))
	if err != nil {
		return "", apperrors.ErrPublish.WithCause(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.do(req)
	if err != nil {
		return "", apperrors.ErrPublish.WithCause(err)
	}
	return resp, nil
}
