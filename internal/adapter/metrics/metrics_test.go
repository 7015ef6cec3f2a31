package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ChunkInserted(true)
	m.ChunkInserted(true)
	m.ChunkInserted(false)
	m.Fallback("embedding")
	m.APICall("chat", 10*time.Millisecond, errors.New("boom"))
	m.DocumentStarted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chunks.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chunks.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("chat", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocumentDone("ok")
		m.DocumentStarted()
		m.DocumentFinished()
		m.ChunkInserted(false)
		m.Fallback("title")
		m.APICall("embedding", time.Second, nil)
		m.Retrieval("empty")
		m.CacheLookup(true)
		m.BreakerState("chat", 2)
		m.Discovered("sitemap", 3)
	})
}

func TestNewWithoutRegistererDoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
