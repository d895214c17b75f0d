package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/scheduler"
	"github.com/slemay/globedash/internal/view"
)

// Server exposes the dashboard state over HTTP: windowed visuals, metric
// totals, region latencies, view settings, a status stream and a websocket
// feed of raw visual batches.
type Server struct {
	host     string
	port     int
	settings view.Settings

	scheduler *scheduler.Scheduler
	feed      *FeedHub
	status    *StatusBroadcaster

	server *http.Server
}

// NewServer wires the server over an existing scheduler. A nil feed hub
// means the server owns a fresh one; passing one in lets the batch producer
// and the server share it.
func NewServer(webCfg config.WebSettings, settings view.Settings, sched *scheduler.Scheduler, feed *FeedHub) *Server {
	if feed == nil {
		feed = NewFeedHub()
	}
	return &Server{
		host:      webCfg.Host,
		port:      webCfg.Port,
		settings:  settings,
		scheduler: sched,
		feed:      feed,
		status:    NewStatusBroadcaster(),
	}
}

func (s *Server) GetStatusBroadcaster() *StatusBroadcaster {
	return s.status
}

func (s *Server) GetFeedHub() *FeedHub {
	return s.feed
}

func getAuthCredentials() (username, password string) {
	return os.Getenv("DASHBOARD_USERNAME"), os.Getenv("DASHBOARD_PASSWORD")
}

func authEnabled() bool {
	username, password := getAuthCredentials()
	return username != "" && password != ""
}

func basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedUser, expectedPass := getAuthCredentials()
		if expectedUser == "" || expectedPass == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != expectedUser || pass != expectedPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Globe Dashboard"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Visual layers
	mux.HandleFunc("/api/arcs", s.handleAPIArcs)
	mux.HandleFunc("/api/rings", s.handleAPIRings)
	mux.HandleFunc("/api/labels", s.handleAPILabels)
	mux.HandleFunc("/ws/feed", s.feed.HandleFeed)

	// Metrics
	mux.HandleFunc("/api/totals", s.handleAPITotals)
	mux.HandleFunc("/api/latency", s.handleAPILatency)

	// View settings
	mux.HandleFunc("/api/view", s.handleAPIView)

	// Status routes
	mux.HandleFunc("/api/health", s.handleAPIHealth)
	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/status/stream", s.handleAPIStatusStream)

	return mux
}

func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var handler = s.Routes()
	if authEnabled() {
		handler = basicAuthMiddleware(handler)
		slog.Info("Web server authentication enabled")
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	slog.Info("Web server starting", "url", "http://"+addr+"/")

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Web server error", "error", err)
		}
	}()
}

func (s *Server) Stop() {
	s.feed.Close()
	if s.server != nil {
		_ = s.server.Close()
	}
}
