package port

import "context"

// Fetcher retrieves a page and returns its text content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DiscoveryStrategy resolves a seed URL into candidate page URLs.
type DiscoveryStrategy interface {
	Name() string
	Discover(ctx context.Context, seed string) ([]string, error)
}
