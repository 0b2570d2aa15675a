package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolatedPerRegistry(t *testing.T) {
	first := New(prometheus.NewRegistry())
	second := New(prometheus.NewRegistry())

	first.RoomsCreated.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(first.RoomsCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.RoomsCreated))
}

func TestHandler(t *testing.T) {
	m := NewNop()
	m.Violations.WithLabelValues("too_many_updates").Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `collab_abuse_violations_total{code="too_many_updates"} 1`))
}
