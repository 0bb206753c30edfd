package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	ds "github.com/starfederation/datastar-go/datastar"

	"pulto/collector"
	"pulto/events"
	"pulto/models"
	"pulto/streaming"
	"pulto/web"
)

type Dashboard struct {
	templates *template.Template
	manager   *streaming.Manager
	collector *collector.Collector
	// configs is the stream set the start button launches.
	configs []models.StreamConfig
	charts  []*Chart

	mu            sync.Mutex
	activeStreams map[string]map[string]int // clientID -> chartKey -> stream index
}

type chartKeySig struct {
	Chart struct {
		Key string `json:"key"`
	} `json:"chart"`
}

func NewDashboard(manager *streaming.Manager, collector *collector.Collector, configs []models.StreamConfig) (dashboard *Dashboard, err error) {
	dashboard = &Dashboard{
		manager:   manager,
		collector: collector,
		configs:   slices.Clone(configs),
		charts:    ChartsForStreams(configs),
	}
	templates := template.New("").Funcs(template.FuncMap{
		"keyToTitle": func(s string) string { return strings.Replace(s, "-", " ", -1) },
	})
	dashboard.templates, err = templates.ParseFS(web.Templates, "templates/dashboard/*.gohtml")
	return dashboard, err
}

func (d *Dashboard) Templates() *template.Template {
	return d.templates
}

func (d *Dashboard) Handlers() map[string]func(w http.ResponseWriter, r *http.Request) {
	return map[string]func(w http.ResponseWriter, r *http.Request){
		"/toggle-active-stream": d.CycleStreamHandler,
		"/streaming/start":      d.controlHandler(d.start),
		"/streaming/stop":       d.controlHandler(d.stop),
		"/streaming/pause":      d.controlHandler(d.manager.Pause),
		"/streaming/resume":     d.controlHandler(d.manager.Resume),
		"/streams":              d.StreamsHandler,
		"/points":               d.PointsHandler,
	}
}

func (d *Dashboard) Data(clientID string) map[string]interface{} {
	views := make([]*chartView, 0, len(d.charts))
	for _, c := range d.charts {
		views = append(views, d.chartViewForClient(clientID, c))
	}
	return map[string]interface{}{
		"charts": views,
		"status": d.manager.Status(),
	}
}

// GeneratePatchOnEvent patches the status badge whenever the manager reports a change.
func (d *Dashboard) GeneratePatchOnEvent(event *events.Event) func(*ds.ServerSentEventGenerator) error {
	if event.Kind != events.StatusChanged {
		return nil
	}
	status, ok := event.Value.(streaming.Status)
	if !ok {
		log.Printf("error bad status event value type %T", event.Value)
		return nil
	}

	var writer strings.Builder
	if err := d.templates.ExecuteTemplate(&writer, "status", status); err != nil {
		log.Printf("error executing status template: %s", err)
		return nil
	}
	return func(sse *ds.ServerSentEventGenerator) error {
		return sse.PatchElements(writer.String())
	}
}

// OnTick updates UI that should update on a tick (charts).
func (d *Dashboard) OnTick(sse *ds.ServerSentEventGenerator, now time.Time, clientID string) error {
	writer := strings.Builder{}
	streams := d.manager.DataStreams()

	for _, c := range d.charts {
		view := d.chartViewForClient(clientID, c)
		if state, ok := streams[view.ActiveStream.ID]; ok {
			view.ActiveValue = state.LastValue
		}
		if err := d.templates.ExecuteTemplate(&writer, "activeStream.value", view); err != nil {
			log.Printf("error executing activeStream.value template: %s", err)
		}

		for _, stream := range c.Streams() {
			points := d.collector.PointsFor(stream.ID)
			if err := sse.ExecuteScript(buildSparklineUpdateFunction(stream.ID, now, d.collector.Window(), points)); err != nil {
				return fmt.Errorf("sparkline update: %w", err)
			}
		}
	}

	if writer.String() != "" {
		if err := sse.PatchElements(writer.String()); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dashboard) chartByKey(key string) *Chart {
	for _, c := range d.charts {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

// CycleStreamHandler is called when the client clicks on a chart to switch the active stream
func (d *Dashboard) CycleStreamHandler(w http.ResponseWriter, r *http.Request) {
	// Read signals sent from the client
	var sig chartKeySig
	if err := ds.ReadSignals(r, &sig); err != nil {
		log.Printf("error reading signals: %s", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	clientIdentifier := getClientID(w, r)

	c := d.chartByKey(sig.Chart.Key)
	if c == nil || len(c.Streams()) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	idx := d.activeStreamIndex(clientIdentifier, c)
	idx = (idx + 1) % len(c.Streams())
	d.setActiveStreamIndex(clientIdentifier, c, idx)

	view := d.chartViewForClient(clientIdentifier, c)
	if state, ok := d.manager.DataStreams()[view.ActiveStream.ID]; ok {
		view.ActiveValue = state.LastValue
	}

	var buf strings.Builder
	for _, name := range []string{"activeStream.title", "activeStream.value", "activeStream.unit"} {
		if err := d.templates.ExecuteTemplate(&buf, name, view); err != nil {
			log.Printf("couldn't execute %s template %s", name, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	sse := ds.NewSSE(w, r)

	if err := sse.ExecuteScript(buildSparklineCycleFunction(c.Key(), view.ActiveStream.ID)); err != nil {
		log.Printf("error executing sparkline cycle function: %s", err)
	}

	// morphs the target elements by ID
	_ = sse.PatchElements(buf.String())
}

// controlHandler runs a streaming control action and answers with the resulting status badge.
// Rejected actions get a 422 with the reason.
func (d *Dashboard) controlHandler(action func() error) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := action(); err != nil {
			log.Printf("streaming control %s: %s", r.URL.Path, err)
			status := http.StatusUnprocessableEntity
			if errors.Is(err, streaming.ErrNotStreaming) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		var buf strings.Builder
		if err := d.templates.ExecuteTemplate(&buf, "status", d.manager.Status()); err != nil {
			log.Printf("couldn't execute status template %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		sse := ds.NewSSE(w, r)
		_ = sse.PatchElements(buf.String())
	}
}

func (d *Dashboard) start() error {
	if err := d.manager.StartStreaming(d.configs); err != nil {
		return err
	}
	d.collector.Reset()
	return nil
}

func (d *Dashboard) stop() error {
	d.manager.StopStreaming()
	return nil
}

type streamsResponse struct {
	Streaming bool                             `json:"streaming"`
	Status    string                           `json:"status"`
	Message   string                           `json:"message,omitempty"`
	Streams   map[string]streaming.StreamState `json:"streams"`
}

// StreamsHandler serves the stream snapshot as JSON.
func (d *Dashboard) StreamsHandler(w http.ResponseWriter, _ *http.Request) {
	status := d.manager.Status()
	writeJSON(w, streamsResponse{
		Streaming: d.manager.IsStreaming(),
		Status:    status.State.String(),
		Message:   status.Message,
		Streams:   d.manager.DataStreams(),
	})
}

// PointsHandler serves the collected chart points as JSON, optionally filtered with ?stream=.
func (d *Dashboard) PointsHandler(w http.ResponseWriter, r *http.Request) {
	var points []models.ChartDataPoint
	if id := r.URL.Query().Get("stream"); id != "" {
		points = d.collector.PointsFor(id)
	} else {
		points = d.collector.Points()
	}
	if points == nil {
		points = []models.ChartDataPoint{}
	}
	writeJSON(w, points)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding json: %s", err)
	}
}

// buildSparklineUpdateFunction calls the client side s(key, left, right, points) with timestamps in ms.
func buildSparklineUpdateFunction(streamID string, now time.Time, window time.Duration, points []models.ChartDataPoint) string {
	var b strings.Builder
	b.WriteString("{")
	for _, point := range points {
		fmt.Fprintf(&b, "%d:%v,", point.Timestamp.UnixMilli(), point.Value)
	}
	b.WriteString("}")
	right := now.UnixMilli()
	left := now.Add(-window).UnixMilli()
	return fmt.Sprintf(`s('%s',%d,%d,%s)`, template.JSEscapeString(streamID), left, right, b.String())
}

func buildSparklineCycleFunction(chartKey string, activeStreamKey string) string {
	return fmt.Sprintf(`b('%s','%s')`, template.JSEscapeString(chartKey), template.JSEscapeString(activeStreamKey))
}

func (d *Dashboard) activeStreamIndex(clientID string, c *Chart) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeStreams == nil {
		d.activeStreams = make(map[string]map[string]int)
	}
	if _, ok := d.activeStreams[clientID]; !ok {
		d.activeStreams[clientID] = make(map[string]int)
	}
	if idx, ok := d.activeStreams[clientID][c.Key()]; ok {
		return idx
	}
	d.activeStreams[clientID][c.Key()] = 0
	return 0
}

func (d *Dashboard) setActiveStreamIndex(clientID string, c *Chart, idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeStreams == nil {
		d.activeStreams = make(map[string]map[string]int)
	}
	if _, ok := d.activeStreams[clientID]; !ok {
		d.activeStreams[clientID] = make(map[string]int)
	}
	d.activeStreams[clientID][c.Key()] = idx
}

func (d *Dashboard) chartViewForClient(clientID string, c *Chart) *chartView {
	idx := d.activeStreamIndex(clientID, c)
	return &chartView{
		Chart:        c,
		ActiveStream: c.Streams()[idx],
	}
}
