package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/plugin-mmap/api"
	"github.com/srediag/plugin-mmap/pkg/mapper"
)

func TestMain(m *testing.M) {
	mapper.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestPrometheusObserverTracksManager(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver(reg, "test")
	require.NoError(t, err)

	m, err := mapper.New(nil, mapper.WithObservers(obs))
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	a, err := m.Open(ctx, writeFile(t, "a.dat", "hello"), true)
	require.NoError(t, err)
	_, err = m.Open(ctx, writeFile(t, "b.dat", "world!!"), true)
	require.NoError(t, err)
	_, err = m.Open(ctx, filepath.Join(t.TempDir(), "missing"), true)
	require.Error(t, err)

	assert.Equal(t, 2.0, gaugeValue(t, obs.live))
	assert.Equal(t, 12.0, gaugeValue(t, obs.mappedBytes))
	assert.Equal(t, 2.0, counterValue(t, obs.operations.WithLabelValues("open", "ok")))
	assert.Equal(t, 1.0, counterValue(t, obs.operations.WithLabelValues("open", "error")))

	require.NoError(t, a.Close())
	assert.Equal(t, 1.0, gaugeValue(t, obs.live))
	assert.Equal(t, 7.0, gaugeValue(t, obs.mappedBytes))
	assert.Equal(t, 1.0, counterValue(t, obs.operations.WithLabelValues("close", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_mmap_operation_duration_seconds")
	assert.Contains(t, names, "test_mmap_live_mappings")
}

func TestPrometheusObserverDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusObserver(reg, "dup")
	require.NoError(t, err)
	_, err = NewPrometheusObserver(reg, "dup")
	assert.Error(t, err)
}

func TestAuditWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewAuditWriter(&buf)
	w.Observe(context.Background(), api.Event{
		Op: api.OpOpen, ID: "3", Path: "/data/x", ReadOnly: true, Size: 9, Attempts: 1,
		Duration: time.Millisecond,
	})
	w.Observe(context.Background(), api.Event{Op: api.OpClose, ID: "3", Path: "/data/x", Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "open id=3"))
	assert.Contains(t, lines[0], "result=ok")
	assert.Contains(t, lines[1], `err="boom"`)
}

type testResponseWriter struct {
	headers http.Header
	status  int
	body    []byte
}

func (w *testResponseWriter) Header() http.Header {
	if w.headers == nil {
		w.headers = make(http.Header)
	}
	return w.headers
}

func (w *testResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body = append(w.body, b...)
	return len(b), nil
}

func (w *testResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}

type fixedStats struct {
	live  int
	bytes int64
}

func (s fixedStats) Live() int          { return s.live }
func (s fixedStats) MappedBytes() int64 { return s.bytes }

func serve(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	rw := &testResponseWriter{}
	h.ServeHTTP(rw, req)
	return rw.status
}

func TestHealthHandler(t *testing.T) {
	limits := HealthLimits{MaxLiveMappings: 2, MaxMappedBytes: 100, MaxGoroutines: 100000}

	h := NewHealthHandler(fixedStats{live: 1, bytes: 10}, limits)
	assert.Equal(t, http.StatusOK, serve(t, h, "/live"))
	assert.Equal(t, http.StatusOK, serve(t, h, "/ready"))

	full := NewHealthHandler(fixedStats{live: 2, bytes: 10}, limits)
	assert.Equal(t, http.StatusOK, serve(t, full, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, full, "/ready"))

	heavy := NewHealthHandler(fixedStats{live: 0, bytes: 100}, limits)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, heavy, "/ready"))

	unlimited := NewHealthHandler(fixedStats{live: 1 << 20, bytes: 1 << 40}, HealthLimits{})
	assert.Equal(t, http.StatusOK, serve(t, unlimited, "/ready"))
}

func TestHealthHandlerWithManager(t *testing.T) {
	config := mapper.DefaultConfig()
	config.MaxLiveMappings = 1
	m, err := mapper.New(config)
	require.NoError(t, err)
	defer m.Close()

	h := NewHealthHandler(m, LimitsFromConfig(config))
	assert.Equal(t, http.StatusOK, serve(t, h, "/ready"))

	mp, err := m.Open(context.Background(), writeFile(t, "h.dat", "health"), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/ready"))

	require.NoError(t, mp.Close())
	assert.Equal(t, http.StatusOK, serve(t, h, "/ready"))
}
