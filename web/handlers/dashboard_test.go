package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulto/collector"
	"pulto/events"
	"pulto/metrics"
	"pulto/models"
	"pulto/streaming"
)

type fixture struct {
	manager   *streaming.Manager
	collector *collector.Collector
	dashboard *Dashboard
	server    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := events.NewHub()
	manager := streaming.NewManager(nil, hub, m)
	t.Cleanup(manager.StopStreaming)
	coll := collector.New(manager, time.Minute, 100, m)

	configs := []models.StreamConfig{
		models.NewStreamConfig("lab-a", "", models.CategorySensor, 50, 64, "°C"),
		models.NewStreamConfig("lab-b", "", models.CategorySensor, 50, 64, "%"),
		models.NewStreamConfig("spot", "", models.CategoryFinancial, 50, 64, "EUR"),
	}
	dashboard, err := NewDashboard(manager, coll, configs)
	require.NoError(t, err)

	server := NewServer(dashboard, hub, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &fixture{manager, coll, dashboard, server}
}

func (f *fixture) do(method, target string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRendersCharts(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `id="chart-sensor"`)
	assert.Contains(t, body, `id="chart-financial"`)
	assert.Contains(t, body, `id="line-lab-b"`)
	assert.Contains(t, body, `class="idle"`)
	assert.Less(t, strings.Index(body, "chart-sensor"), strings.Index(body, "chart-financial"))

	var found bool
	for _, c := range rec.Result().Cookies() {
		found = found || (c.Name == clientIDCookieName && c.Value != "")
	}
	assert.True(t, found)
}

func TestIndexUnknownPath(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope", nil).Code)
}

func TestStartAndStopHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/streaming/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="status"`)
	assert.True(t, f.manager.IsStreaming())

	rec = f.do(http.MethodPost, "/streaming/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="paused"`)

	rec = f.do(http.MethodPost, "/streaming/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.manager.IsPaused())

	rec = f.do(http.MethodPost, "/streaming/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="idle"`)
	assert.False(t, f.manager.IsStreaming())
}

func TestControlHandlersRejectMisuse(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/streaming/start", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, f.manager.IsStreaming())

	rec = f.do(http.MethodPost, "/streaming/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartRejectsInvalidStreams(t *testing.T) {
	f := newFixture(t)
	f.dashboard.configs = []models.StreamConfig{
		models.NewStreamConfig("bad", "", models.CategorySensor, 0, 8, ""),
	}
	rec := f.do(http.MethodPost, "/streaming/start", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ErrInvalidFrequency.Error())
	assert.False(t, f.manager.IsStreaming())
}

func TestStreamsAndPointsJSON(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.StartStreaming(f.dashboard.configs))

	require.Eventually(t, func() bool {
		f.collector.Tick(time.Now())
		return len(f.collector.PointsFor("spot")) > 0
	}, 2*time.Second, 10*time.Millisecond)

	rec := f.do(http.MethodGet, "/streams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var streams struct {
		Streaming bool                      `json:"streaming"`
		Status    string                    `json:"status"`
		Streams   map[string]map[string]any `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	assert.True(t, streams.Streaming)
	assert.Equal(t, "streaming", streams.Status)
	require.Contains(t, streams.Streams, "spot")
	assert.Equal(t, "streaming", streams.Streams["spot"]["state"])
	assert.Equal(t, 64.0, streams.Streams["spot"]["capacity"])

	rec = f.do(http.MethodGet, "/points?stream=spot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var points []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.Equal(t, "spot", p["streamId"])
	}
}

func TestPointsEmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/points", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.StartStreaming(f.dashboard.configs))
	require.Eventually(t, func() bool {
		return f.manager.DataStreams()["lab-a"].Written > 0
	}, 2*time.Second, 10*time.Millisecond)

	rec := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pulto_")
	assert.Contains(t, rec.Body.String(), `stream="lab-a"`)
}

func TestCycleActiveStream(t *testing.T) {
	f := newFixture(t)
	cookie := &http.Cookie{Name: clientIDCookieName, Value: "client-1"}
	body := `{"chart":{"key":"sensor"}}`

	rec := f.do(http.MethodPost, "/toggle-active-stream", strings.NewReader(body), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lab b")
	assert.Contains(t, rec.Body.String(), "b('sensor','lab-b')")

	rec = f.do(http.MethodPost, "/toggle-active-stream", strings.NewReader(body), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "b('sensor','lab-a')")

	// Other clients keep their own selection.
	other := &http.Cookie{Name: clientIDCookieName, Value: "client-2"}
	rec = f.do(http.MethodPost, "/toggle-active-stream", strings.NewReader(body), other)
	assert.Contains(t, rec.Body.String(), "b('sensor','lab-b')")
}

func TestCycleUnknownChart(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/toggle-active-stream", strings.NewReader(`{"chart":{"key":"nope"}}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeneratePatchOnEvent(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.dashboard.GeneratePatchOnEvent(&events.Event{Kind: events.StreamError, Value: "boom"}))
	assert.Nil(t, f.dashboard.GeneratePatchOnEvent(&events.Event{Kind: events.StatusChanged, Value: 3}))

	patch := f.dashboard.GeneratePatchOnEvent(&events.Event{
		Kind:  events.StatusChanged,
		Value: streaming.Status{State: streaming.StateError, Message: "stream x: broken"},
	})
	assert.NotNil(t, patch)
}

func TestBuildSparklineUpdateFunction(t *testing.T) {
	now := time.UnixMilli(10_000)
	points := []models.ChartDataPoint{
		{Timestamp: time.UnixMilli(9_000), Value: 1.5},
		{Timestamp: time.UnixMilli(9_500), Value: -2},
	}
	got := buildSparklineUpdateFunction("lab-a", now, 5*time.Second, points)
	assert.Equal(t, "s('lab-a',5000,10000,{9000:1.5,9500:-2,})", got)
}
