package crawler

import "context"

// StaticStrategy returns a fixed list of pages relative to the seed.
type StaticStrategy struct {
	paths []string
}

func NewStaticStrategy(paths []string) *StaticStrategy {
	return &StaticStrategy{paths: paths}
}

func (s *StaticStrategy) Name() string { return "static" }

func (s *StaticStrategy) Discover(_ context.Context, seed string) ([]string, error) {
	urls := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		u, err := resolveAgainst(seed, p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}
