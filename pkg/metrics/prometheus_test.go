package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordResolverCall("oracle", "ok")
	r.RecordResolverCall("oracle", "ok")
	r.RecordResolverCall("irm", "fallback")
	r.RecordMarketScored("B")
	r.RecordReportDispatched("kafka")
	r.RecordError("indexer")
	r.RecordLatency("aggregate", 0.25)
	r.RecordHTTPRequest("GET", "/api/health", "200", 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.resolverCalls.WithLabelValues("oracle", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolverCalls.WithLabelValues("irm", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.marketsScored.WithLabelValues("B")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reportsDispatched.WithLabelValues("kafka")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("indexer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/api/health", "200")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).RecordMarketScored("A")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `vaultrisk_market_scores_total{grade="A"} 1`)
}

func TestNopSatisfiesRecorderSurface(t *testing.T) {
	var n Nop
	n.RecordResolverCall("oracle", "ok")
	n.RecordMarketScored("A")
	n.RecordReportDispatched("noop")
	n.RecordError("x")
	n.RecordLatency("x", 1)
	n.RecordHTTPRequest("GET", "/", "200", 1)
}
