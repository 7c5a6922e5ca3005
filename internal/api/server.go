// Package api exposes the admin HTTP surface: loop status, the active
// seating layout, and the recent occupancy log.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/posecast/posecast/internal/capture"
	"github.com/posecast/posecast/internal/recorder"
	"github.com/posecast/posecast/internal/seating"
)

// maxLayoutBody bounds a layout PUT payload.
const maxLayoutBody = 1 << 20

// Server serves the admin endpoints for a running capture loop.
type Server struct {
	loop *capture.Loop
	rec  *recorder.Recorder // optional
}

// NewServer builds an admin server. The recorder may be nil, in which case
// the occupancy endpoint reports 404.
func NewServer(loop *capture.Loop, rec *recorder.Recorder) *Server {
	return &Server{loop: loop, rec: rec}
}

// ServeMux returns the route table, intended to be mounted under /api.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/layout", s.layoutHandler)
	mux.HandleFunc("/occupancy", s.occupancyHandler)
	return mux
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	seatCount := 0
	if layout := s.loop.Layout(); layout != nil {
		seatCount = layout.Len()
	}
	writeJSON(w, map[string]any{
		"state":      s.loop.State(),
		"framesSent": s.loop.FramesSent(),
		"seatCount":  seatCount,
	})
}

func (s *Server) layoutHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		layout := s.loop.Layout()
		if layout == nil {
			http.Error(w, "no seating layout configured", http.StatusNotFound)
			return
		}
		data, err := seating.Marshal(layout)
		if err != nil {
			http.Error(w, "failed to encode layout", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxLayoutBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		layout, err := seating.Parse(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.pushLayout(layout, w); err == nil {
			w.WriteHeader(http.StatusNoContent)
		}

	case http.MethodDelete:
		if err := s.pushLayout(nil, w); err == nil {
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// pushLayout forwards a layout swap to the loop, translating a command
// timeout into 503 so callers can retry.
func (s *Server) pushLayout(layout *seating.Layout, w http.ResponseWriter) error {
	err := s.loop.UpdateLayout(layout)
	if errors.Is(err, capture.ErrCommandTimeout) {
		http.Error(w, "capture loop busy, try again", http.StatusServiceUnavailable)
		return err
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}
	return nil
}

func (s *Server) occupancyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rec == nil {
		http.Error(w, "recording disabled", http.StatusNotFound)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := s.rec.Recent(limit)
	if err != nil {
		http.Error(w, "failed to query occupancy log", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []recorder.Row{}
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
