package handlers

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	ds "github.com/starfederation/datastar-go/datastar"

	"pulto/events"
	"pulto/web"
)

const DASHBOARD_FRAMERATE = 30

type Server struct {
	renderer Renderer
	eventHub *events.EventHub
	handler  *http.ServeMux
}

// NewServer wires the renderer's pages and handlers. metrics is mounted on /metrics when not nil.
func NewServer(renderer Renderer, eventHub *events.EventHub, metrics http.Handler) *Server {
	s := &Server{
		renderer: renderer,
		eventHub: eventHub,
	}

	handler := http.NewServeMux()
	handler.HandleFunc("/", s.IndexHandler)
	handler.HandleFunc("/tick", s.TickHandler)
	handler.Handle("/static/", http.FileServer(http.FS(web.Static)))
	if metrics != nil {
		handler.Handle("/metrics", metrics)
	}

	for path, uiHandler := range renderer.Handlers() {
		handler.HandleFunc(path, uiHandler)
	}

	s.handler = handler

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %s", err)
		}
	}()

	log.Printf("listening on %s …", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// IndexHandler is the main entrypoint for the UI
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	clientID := getClientID(w, r)
	err := s.renderer.Templates().ExecuteTemplate(w, "index", s.renderer.Data(clientID))
	if err != nil {
		log.Printf("couldn't execute template for index %s", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// TickHandler keeps an SSE connection open, pushing chart updates at the dashboard frame rate and status
// patches as events arrive.
func (s *Server) TickHandler(w http.ResponseWriter, r *http.Request) {
	clientID := getClientID(w, r)
	sse := ds.NewSSE(w, r)

	var eventsCh <-chan *events.Event
	if s.eventHub != nil {
		_, ch, cancel := s.eventHub.Subscribe()
		defer cancel()
		eventsCh = ch
	}

	ctx := r.Context()
	ticker := time.NewTicker(time.Second / DASHBOARD_FRAMERATE)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			patch := s.renderer.GeneratePatchOnEvent(event)
			if patch == nil {
				continue
			}
			if err := patch(sse); err != nil {
				log.Printf("error patching on event: %s", err)
				return
			}
		case tick := <-ticker.C:
			err := s.renderer.OnTick(sse, tick, clientID)
			if err != nil {
				log.Printf("error running renderer on tick: %s", err)
				return
			}
		}
	}
}
