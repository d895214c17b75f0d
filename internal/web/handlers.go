package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/slemay/globedash/internal/metrics"
	"github.com/slemay/globedash/internal/window"
)

func (s *Server) handleAPIArcs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	arcs := s.scheduler.Arcs()
	if arcs == nil {
		arcs = []window.Arc{}
	}
	writeJSONOK(w, map[string]any{"arcs": arcs})
}

func (s *Server) handleAPIRings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	rings := s.scheduler.Rings()
	if rings == nil {
		rings = []window.Ring{}
	}
	writeJSONOK(w, map[string]any{"rings": rings})
}

func (s *Server) handleAPILabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	labels := s.scheduler.Labels()
	if labels == nil {
		labels = []window.Label{}
	}
	writeJSONOK(w, map[string]any{"labels": labels})
}

// totalsResponse pairs the current totals with the previous cycle's so the
// client can animate count-up transitions between them.
type totalsResponse struct {
	Current  metrics.Totals `json:"current"`
	Previous metrics.Totals `json:"previous"`
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	current, previous := s.scheduler.Totals()
	writeJSONOK(w, totalsResponse{Current: current, Previous: previous})
}

func (s *Server) handleAPILatency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	writeJSONOK(w, map[string]any{"latencySeconds": s.scheduler.Latencies()})
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotAllowed(w)
		return
	}

	writeJSONOK(w, map[string]any{
		"settings": s.settings,
		"query":    s.settings.Query().Encode(),
	})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("Connected"))
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	status := s.status.GetStatus()
	writeJSONOK(w, status)
}

func (s *Server) handleAPIStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternalError(w, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.status.Subscribe()
	defer s.status.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(status)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
