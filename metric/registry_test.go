package metric

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/comploplo/canopy-sub003/errors"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	// Vec metrics only appear once a label set is used.
	registry.CoreMetrics().RecordIndexLoad("file", 10, nil)
	registry.CoreMetrics().RecordHealth("patterncache", "healthy")
	registry.CoreMetrics().RecordCleanup(true)

	names := gatheredNames(t, registry)
	for _, want := range []string{
		"canopy_index_loads_total",
		"canopy_index_patterns",
		"canopy_health_status",
		"canopy_janitor_runs_total",
		"canopy_nats_connected",
		"go_goroutines",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestRegisterCollectors(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "c"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"})
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_hist", Help: "h"})
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cv", Help: "cv"}, []string{"tier"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gv", Help: "gv"}, []string{"tier"})
	histVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hv", Help: "hv"}, []string{"op"})

	require.NoError(t, registry.RegisterCounter("svc", "counter", counter))
	require.NoError(t, registry.RegisterGauge("svc", "gauge", gauge))
	require.NoError(t, registry.RegisterHistogram("svc", "hist", hist))
	require.NoError(t, registry.RegisterCounterVec("svc", "cv", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("svc", "gv", gaugeVec))
	require.NoError(t, registry.RegisterHistogramVec("svc", "hv", histVec))

	counter.Add(3)
	gauge.Set(42)
	hist.Observe(0.1)
	counterVec.WithLabelValues("core").Inc()
	gaugeVec.WithLabelValues("core").Set(1)
	histVec.WithLabelValues("get").Observe(0.2)

	names := gatheredNames(t, registry)
	for _, n := range []string{"test_counter", "test_gauge", "test_hist", "test_cv", "test_gv", "test_hv"} {
		assert.True(t, names[n], "missing %s", n)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(counter))
}

func TestDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "d"})
	require.NoError(t, registry.RegisterCounter("svc", "dup", first))

	err := registry.RegisterCounter("svc", "dup", first)
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	// Same Prometheus name under a different key is a Prometheus conflict.
	clash := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "d"})
	err = registry.RegisterCounter("other", "dup", clash)
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
	var already prometheus.AlreadyRegisteredError
	assert.True(t, errors.As(err, &already))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "temp_gauge", Help: "t"})

	require.NoError(t, registry.RegisterGauge("svc", "temp", gauge))
	assert.True(t, registry.Unregister("svc", "temp"))
	assert.False(t, registry.Unregister("svc", "temp"))

	// The key is free again.
	assert.NoError(t, registry.RegisterGauge("svc", "temp", gauge))
}

func TestConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_%d", i),
				Help: "c",
			})
			errs <- registry.RegisterCounter("svc", fmt.Sprintf("c%d", i), c)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCoreMetricsRecord(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordIndexLoad("nats", 0, errors.New("boom"))
	m.RecordIndexLoad("file", 250, nil)
	m.RecordHealth("patterncache", "degraded")
	m.RecordCleanup(false)
	m.RecordNATSStatus(true)
	m.RecordNATSReconnect()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexLoads.WithLabelValues("nats", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexLoads.WithLabelValues("file", "ok")))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.IndexPatterns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthStatus.WithLabelValues("patterncache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRuns.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSReconnects))

	m.RecordNATSStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSConnected))
}

func TestServerHandler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordIndexLoad("file", 7, nil)

	var healthy atomic.Bool
	healthy.Store(true)
	srv := NewServer(0, "", registry, func() (any, bool) {
		return map[string]string{"status": "ok"}, healthy.Load()
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "canopy_index_patterns 7"))

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer(0, "/metrics", NewMetricsRegistry(), nil)

	require.NoError(t, srv.Start())
	assert.Contains(t, srv.Address(), "/metrics")
	assert.Error(t, srv.Start(), "second start is rejected")

	require.NoError(t, srv.Stop(t.Context()))
	assert.Empty(t, srv.Address())
	assert.NoError(t, srv.Stop(t.Context()))
}
