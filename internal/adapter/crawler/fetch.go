package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPFetcher downloads pages and converts them to markdown.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (string, error) {
	base, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}

	body, err := get(ctx, f.client, f.userAgent, target)
	if err != nil {
		return "", err
	}

	md, err := HTMLToMarkdown(bytes.NewReader(body), base)
	if err != nil {
		return "", fmt.Errorf("failed to convert %s: %w", target, err)
	}
	return md, nil
}
