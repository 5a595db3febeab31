package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()

	c.Translated(3)
	c.Translated(2)
	c.Batch()
	c.TraversalDone(2 * time.Millisecond)
	c.ScopeRebuilt("repository/issues")
	c.ScopeRebuilt("repository/issues")
	c.RemoteRequest("iflyrec", "ok", 150*time.Millisecond)
	c.RemoteRequest("iflyrec", "timeout", time.Second)
	c.PageServed("")
	c.RulesReloaded(false)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.translated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.traversals))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rebuilds.WithLabelValues("repository/issues")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteRequests.WithLabelValues("iflyrec", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pages.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reloads.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	c := New()
	c.Batch()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ghzh_mutation_batches_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Batch()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.batches))
}
