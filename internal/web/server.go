// Package web provides a small HTTP status dashboard for a running
// reactor.Scheduler: reactor load, hosted actors, and buffer pool
// accounting, rendered from markdown to HTML via goldmark.
package web

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// Server is the HTTP status dashboard.
type Server struct {
	sched      *reactor.Scheduler
	auditStore *store.Store

	mux  *http.ServeMux
	srv  *http.Server
	addr string

	startedAt time.Time
}

// Config holds configuration for the web server.
type Config struct {
	Addr string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: ":8080",
	}
}

// NewServer creates a new status dashboard server wrapping sched.
// auditStore is optional; when set, the dashboard also reports pending
// dead-letter counts.
func NewServer(cfg *Config, sched *reactor.Scheduler, auditStore *store.Store) *Server {
	s := &Server{
		sched:      sched,
		auditStore: auditStore,
		mux:        http.NewServeMux(),
		addr:       cfg.Addr,
		startedAt:  time.Now(),
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleStatus)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
}

// Start starts the HTTP server. It blocks until the server is shut
// down or fails.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("status dashboard listening on %s", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	md := buildStatusReport(ctx, s.sched, s.auditStore, s.startedAt)
	body := markdownToHTML(md)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPageTemplate.Execute(w, statusPageData{Body: body}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type statusPageData struct {
	Body template.HTML
}

var statusPageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>solidframe status</title></head>
<body>
{{.Body}}
</body>
</html>
`))

// markdownToHTML converts markdown to HTML using goldmark.
func markdownToHTML(s string) template.HTML {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}
