package crawler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

type sitemapDoc struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapReader fetches sitemap XML, following a sitemap index one level down.
type sitemapReader struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

func (r *sitemapReader) read(ctx context.Context, target string, depth int) ([]string, error) {
	body, err := get(ctx, r.client, r.userAgent, target)
	if err != nil {
		return nil, err
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", target, err)
	}

	var urls []string
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}

	if len(doc.Sitemaps) > 0 && depth > 0 {
		for _, sm := range doc.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			r.logger.Debug("fetching sub-sitemap", zap.String("url", loc))
			sub, err := r.read(ctx, loc, depth-1)
			if err != nil {
				r.logger.Warn("failed to fetch sub-sitemap", zap.String("url", loc), zap.Error(err))
				continue
			}
			urls = append(urls, sub...)
		}
	}
	return urls, nil
}

func resolveAgainst(seed, ref string) (string, error) {
	base, err := url.Parse(seed)
	if err != nil {
		return "", fmt.Errorf("invalid seed %q: %w", seed, err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// SitemapStrategy tries well-known sitemap locations under the seed.
type SitemapStrategy struct {
	reader sitemapReader
	paths  []string
}

func NewSitemapStrategy(client *http.Client, userAgent string, paths []string, logger *zap.Logger) *SitemapStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapStrategy{
		reader: sitemapReader{client: client, userAgent: userAgent, logger: logger},
		paths:  paths,
	}
}

func (s *SitemapStrategy) Name() string { return "sitemap" }

// Discover returns the URLs of the first sitemap that lists any.
func (s *SitemapStrategy) Discover(ctx context.Context, seed string) ([]string, error) {
	var lastErr error
	for _, p := range s.paths {
		target, err := resolveAgainst(seed, p)
		if err != nil {
			return nil, err
		}
		urls, err := s.reader.read(ctx, target, 1)
		if err != nil {
			s.reader.logger.Debug("sitemap not available", zap.String("url", target), zap.Error(err))
			lastErr = err
			continue
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, lastErr
}

// RobotsStrategy reads Sitemap: directives from robots.txt.
type RobotsStrategy struct {
	reader sitemapReader
}

func NewRobotsStrategy(client *http.Client, userAgent string, logger *zap.Logger) *RobotsStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsStrategy{reader: sitemapReader{client: client, userAgent: userAgent, logger: logger}}
}

func (s *RobotsStrategy) Name() string { return "robots" }

func (s *RobotsStrategy) Discover(ctx context.Context, seed string) ([]string, error) {
	target, err := resolveAgainst(seed, "/robots.txt")
	if err != nil {
		return nil, err
	}
	body, err := get(ctx, s.reader.client, s.reader.userAgent, target)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, sm := range sitemapDirectives(body) {
		found, err := s.reader.read(ctx, sm, 1)
		if err != nil {
			s.reader.logger.Warn("failed to fetch sitemap from robots.txt", zap.String("url", sm), zap.Error(err))
			continue
		}
		urls = append(urls, found...)
	}
	return urls, nil
}

func sitemapDirectives(robots []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(robots))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) > len("sitemap:") && strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			out = append(out, strings.TrimSpace(line[len("sitemap:"):]))
		}
	}
	return out
}
