// Package web provides the HTTP status server for the button-sensor daemon.
// With a simulated board it also accepts presses and releases.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/status"
)

// Board accepts simulated button presses. input.Sim implements it.
type Board interface {
	Press(i int) error
	Release(i int) error
}

// Resumer re-enables a stopped scheduler. clock.Alarm implements it.
type Resumer interface {
	Enable()
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	board      Board
	alarm      Resumer
}

// New creates a Server that reads state from tracker. board and alarm may be
// nil, in which case the matching POST endpoints answer 501.
func New(addr string, tracker *status.Tracker, board Board, alarm Resumer) *Server {
	s := &Server{tracker: tracker, board: board, alarm: alarm}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("POST /buttons/{id}/press", s.handleButton("press", Board.Press))
	mux.HandleFunc("POST /buttons/{id}/release", s.handleButton("release", Board.Release))
	mux.HandleFunc("POST /alarm/resume", s.handleResume)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap, s.board != nil); err != nil {
		log.Warnf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

type actionResponse struct {
	Button *int   `json:"button,omitempty"`
	Action string `json:"action"`
}

func (s *Server) handleButton(name string, action func(Board, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.board == nil {
			http.Error(w, "input is not simulated", http.StatusNotImplemented)
			return
		}

		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "bad button id", http.StatusBadRequest)
			return
		}
		if err := action(s.board, id); err != nil {
			if errors.Is(err, input.ErrIndex) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		log.WithField("button", id).Infof("web: simulated %s", name)
		writeAction(w, actionResponse{Button: &id, Action: name})
	}
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.alarm == nil {
		http.Error(w, "no alarm to resume", http.StatusNotImplemented)
		return
	}
	s.alarm.Enable()
	log.Info("web: alarm resumed")
	writeAction(w, actionResponse{Action: "resume"})
}

func writeAction(w http.ResponseWriter, resp actionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}
