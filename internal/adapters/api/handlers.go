package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/adapters/output"
	"github.com/xoelrdgz/ransomradar/internal/domain"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Monitor.Status())
}

func (s *Server) getCounters(w http.ResponseWriter, r *http.Request) {
	counters := s.config.Monitor.Status().Counters
	writeJSON(w, http.StatusOK, struct {
		domain.CountersSnapshot
		Total int64 `json:"total"`
	}{counters, counters.Total()})
}

func (s *Server) postStart(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Monitor.Start(s.config.RunContext); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.config.Monitor.Status())
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Monitor.Stop(); err != nil {
		// The session is over even when the watcher failed to close.
		log.Warn().Err(err).Msg("Monitor stopped with error")
	}
	writeJSON(w, http.StatusOK, s.config.Monitor.Status())
}

func (s *Server) deleteLogs(w http.ResponseWriter, r *http.Request) {
	s.config.Monitor.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	var events []*domain.Event
	if raw := r.URL.Query().Get("channel"); raw != "" {
		channel, err := domain.ParseChannel(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events = s.config.Events.ByChannel(channel, limit)
	} else {
		events = s.config.Events.Latest(limit)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// getExport renders the text export. With an archive configured the
// optional session parameter selects one monitoring session.
func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	var events []*domain.Event
	if s.config.Archive != nil {
		var err error
		events, err = s.config.Archive.List(output.ArchiveQuery{SessionID: r.URL.Query().Get("session")})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		events = s.config.Events.Latest(0)
	}

	var buf bytes.Buffer
	if err := output.WriteExport(&buf, events); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+output.DefaultExportName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
