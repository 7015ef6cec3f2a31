package usecase

import (
	"go.uber.org/zap"

	"alsrag/internal/adapter/metrics"
	"alsrag/internal/port"
)

// Deps bundles the collaborators shared by the use cases. The CLI builds one
// per process; tests build them from mocks.
type Deps struct {
	Store    port.DocumentStore
	Chunker  port.Chunker
	Fetcher  port.Fetcher
	Enricher *Enricher
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// admin returns the store's maintenance surface, if it has one.
func (d Deps) admin() (port.StoreAdmin, bool) {
	a, ok := d.Store.(port.StoreAdmin)
	return a, ok
}
