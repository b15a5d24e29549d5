// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/spiders"
)

// SpiderStatus is one row of GET /api/v1/spiders.
type SpiderStatus struct {
	spiders.Info
	Enabled  bool       `json:"enabled"`
	Schedule string     `json:"schedule,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	Circuit  string     `json:"circuit"`
	Running  bool       `json:"running"`
}

// ParseHoursRequest is the body of POST /api/v1/hours/parse.
type ParseHoursRequest struct {
	Text string `json:"text"`
}

// ParseHoursResponse is returned by POST /api/v1/hours/parse.
type ParseHoursResponse struct {
	Normalized string      `json:"normalized"`
	Hours      hours.Hours `json:"hours"`
	Missing    []string    `json:"missing,omitempty"`
}

func (s *Server) listSpiders(w http.ResponseWriter, r *http.Request) {
	cfg := s.runner.Config()
	breakers := s.runner.Errors().GetCircuitBreakerStats()

	next := make(map[string]time.Time)
	if s.scheduler != nil {
		for _, e := range s.scheduler.Entries() {
			next[e.Spider] = e.Next
		}
	}

	running := make(map[string]bool)
	for _, active := range s.runner.ActiveRuns() {
		running[active.Spider] = true
	}

	infos := s.runner.Registry().List()
	out := make([]SpiderStatus, 0, len(infos))
	for _, info := range infos {
		sc := cfg.Spider(info.Name)
		status := SpiderStatus{
			Info:     info,
			Enabled:  sc.IsEnabled(),
			Schedule: sc.Schedule,
			Circuit:  "closed",
			Running:  running[info.Name],
		}
		if b, ok := breakers[info.Name]; ok {
			status.Circuit = b.State
		}
		if t, ok := next[info.Name]; ok && !t.IsZero() {
			status.NextRun = &t
		}
		out = append(out, status)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"spiders": out, "total": len(out)})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	run, err := s.startRun(name)
	var busy *pipeline.AlreadyRunningError
	switch {
	case errors.As(err, &busy):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "spider is already running",
			"run":   s.activeRun(busy.Run),
		})
		return
	case errors.Is(err, spiders.ErrUnknownSpider):
		writeError(w, http.StatusNotFound, "unknown spider: "+name)
		return
	case errors.Is(err, pipeline.ErrSpiderDisabled):
		writeError(w, http.StatusConflict, "spider is disabled: "+name)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/api/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) resetCircuit(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.runner.Errors().ResetCircuitBreaker(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spider": name, "circuit": "closed"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runList()
	if spider := r.URL.Query().Get("spider"); spider != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if run.Spider == spider {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "total": len(runs)})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) parseHours(w http.ResponseWriter, r *http.Request) {
	var req ParseHoursRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	h := s.parser.Parse(req.Text)
	writeJSON(w, http.StatusOK, ParseHoursResponse{
		Normalized: hours.Normalize(req.Text),
		Hours:      h,
		Missing:    h.Missing(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
