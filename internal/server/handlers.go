package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/driftwatch/driftwatch/pkg/compare"
	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/storage"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	runs, err := s.DB.ListRuns(r.Context(), q.Get("topic"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, "topic query parameter is required", http.StatusBadRequest)
		return
	}

	rec, err := s.DB.LatestReport(r.Context(), topic, time.Time{})
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "no archived report for topic", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

type reportMeta struct {
	ID          int64     `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	ItemCount   int       `json:"item_count"`
}

type compareResponse struct {
	Topic      string         `json:"topic"`
	Current    reportMeta     `json:"current"`
	Historical reportMeta     `json:"historical"`
	Result     compare.Result `json:"result"`
}

// handleCompare runs the comparison engine over the two most recent
// archived reports for a topic.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, "topic query parameter is required", http.StatusBadRequest)
		return
	}

	current, err := s.DB.LatestReport(r.Context(), topic, time.Time{})
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "no archived report for topic", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	historical, err := s.DB.LatestReport(r.Context(), topic, current.GeneratedAt)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "need at least two archived reports to compare", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	currentParsed, err := report.Parse(current.Content)
	if err != nil {
		http.Error(w, "archived report is not parsable: "+err.Error(), http.StatusInternalServerError)
		return
	}
	historicalParsed, err := report.Parse(historical.Content)
	if err != nil {
		http.Error(w, "archived report is not parsable: "+err.Error(), http.StatusInternalServerError)
		return
	}

	result := compare.Snapshots(currentParsed.Snapshot, historicalParsed.Snapshot, compare.Opts{})
	writeJSON(w, compareResponse{
		Topic:      current.Topic,
		Current:    reportMeta{ID: current.ID, GeneratedAt: current.GeneratedAt, ItemCount: current.ItemCount},
		Historical: reportMeta{ID: historical.ID, GeneratedAt: historical.GeneratedAt, ItemCount: historical.ItemCount},
		Result:     result,
	})
}
