package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// LinkStrategy walks same-host links breadth first from the seed.
type LinkStrategy struct {
	client    *http.Client
	userAgent string
	depth     int
	skipGlobs []string
	logger    *zap.Logger
}

func NewLinkStrategy(client *http.Client, userAgent string, depth int, skipGlobs []string, logger *zap.Logger) (*LinkStrategy, error) {
	for _, g := range skipGlobs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid skip pattern %q", g)
		}
	}
	if depth <= 0 {
		depth = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkStrategy{
		client:    client,
		userAgent: userAgent,
		depth:     depth,
		skipGlobs: skipGlobs,
		logger:    logger,
	}, nil
}

func (s *LinkStrategy) Name() string { return "links" }

// Discover fetches the seed, then (depth permitting) every page it links to,
// and returns each valid link in the order first seen. Unreachable pages are
// skipped.
func (s *LinkStrategy) Discover(ctx context.Context, seed string) ([]string, error) {
	base, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %q: %w", seed, err)
	}

	var found []string
	seen := map[string]bool{}
	visited := map[string]bool{}
	frontier := []string{seed}

	for level := 0; level < s.depth && len(frontier) > 0; level++ {
		var next []string
		for _, page := range frontier {
			if err := ctx.Err(); err != nil {
				return found, err
			}
			if visited[page] {
				continue
			}
			visited[page] = true

			links, err := s.links(ctx, page)
			if err != nil {
				s.logger.Debug("failed to scrape links", zap.String("url", page), zap.Error(err))
				continue
			}
			for _, link := range links {
				if seen[link] || visited[link] || !s.valid(base, link) {
					continue
				}
				seen[link] = true
				found = append(found, link)
				if level < s.depth-1 {
					next = append(next, link)
				}
			}
		}
		frontier = next
	}
	return found, nil
}

func (s *LinkStrategy) links(ctx context.Context, page string) ([]string, error) {
	body, err := get(ctx, s.client, s.userAgent, page)
	if err != nil {
		return nil, err
	}
	pageURL, err := url.Parse(page)
	if err != nil {
		return nil, err
	}
	return ExtractLinks(bytes.NewReader(body), pageURL)
}

func (s *LinkStrategy) valid(base *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host != base.Host || u.Fragment != "" {
		return false
	}

	path := strings.TrimPrefix(strings.ToLower(u.Path), "/")
	for _, g := range s.skipGlobs {
		if ok, _ := doublestar.Match(g, path); ok {
			return false
		}
	}
	return true
}
