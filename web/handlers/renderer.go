package handlers

import (
	"html/template"
	"net/http"
	"time"

	ds "github.com/starfederation/datastar-go/datastar"

	"pulto/events"
)

type Renderer interface {
	Templates() *template.Template
	Handlers() map[string]func(w http.ResponseWriter, r *http.Request)
	Data(clientID string) map[string]interface{}
	GeneratePatchOnEvent(event *events.Event) func(*ds.ServerSentEventGenerator) error
	OnTick(sse *ds.ServerSentEventGenerator, now time.Time, clientID string) error
}
