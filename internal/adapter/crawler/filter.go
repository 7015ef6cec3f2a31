package crawler

import (
	"strings"

	"alsrag/internal/domain"
)

// FilterConfig drives FilterEssential. Patterns are plain substrings matched
// case-insensitively against the whole URL.
type FilterConfig struct {
	PriorityKeywords []string
	ExcludePatterns  []string
	// MainPages are absolute URLs added when too few pages survive.
	MainPages []string
	MinKept   int
	MaxURLs   int
}

// MainPageURLs joins seed and each relative page with exactly one slash.
func MainPageURLs(seed string, pages []string) []string {
	base := strings.TrimRight(seed, "/") + "/"
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, base+strings.TrimLeft(p, "/"))
	}
	return out
}

// Classify decides for each URL whether it is kept and which rule decided.
func Classify(urls []string, cfg FilterConfig) []domain.CrawlTarget {
	targets := make([]domain.CrawlTarget, 0, len(urls))
	for _, u := range urls {
		lower := strings.ToLower(u)
		t := domain.CrawlTarget{URL: u, Rule: "no priority keyword"}
		if p, ok := containsAny(lower, cfg.ExcludePatterns); ok {
			t.Rule = "exclude " + p
		} else if k, ok := containsAny(lower, cfg.PriorityKeywords); ok {
			t.Kept = true
			t.Rule = "priority " + k
		}
		targets = append(targets, t)
	}
	return targets
}

// FilterEssential keeps priority pages, tops the list up with the main pages
// when fewer than MinKept survive, and caps the result at MaxURLs.
func FilterEssential(urls []string, cfg FilterConfig) []string {
	var kept []string
	seen := map[string]bool{}
	for _, t := range Classify(urls, cfg) {
		if t.Kept && !seen[t.URL] {
			seen[t.URL] = true
			kept = append(kept, t.URL)
		}
	}

	if len(kept) < cfg.MinKept {
		for _, p := range cfg.MainPages {
			if !seen[p] {
				seen[p] = true
				kept = append(kept, p)
			}
		}
	}

	if cfg.MaxURLs > 0 && len(kept) > cfg.MaxURLs {
		kept = kept[:cfg.MaxURLs]
	}
	return kept
}

func containsAny(s string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}
