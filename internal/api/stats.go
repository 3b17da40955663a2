package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/transcript"
	"github.com/readysetinsure/dashboard/internal/weekday"
)

type heatBucket struct {
	Label string `json:"label"`
	Total int    `json:"total"`
	Color string `json:"color"`
	Hex   string `json:"hex"`
}

// heatmap colours each bucket against the busiest and quietest days.
func (s *Server) heatmap(h weekday.Histogram) []heatBucket {
	colors := s.ramp.Scale(h.Totals())
	out := make([]heatBucket, len(h))
	for i, b := range h {
		out[i] = heatBucket{
			Label: b.Label,
			Total: b.Total,
			Color: colors[i].String(),
			Hex:   colors[i].Hex(),
		}
	}
	return out
}

// GET /api/v1/stats/weekday?status=
func (s *Server) weekdayStats(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	customers, err := s.customersFor(r.Context(), status)
	if errors.Is(err, customer.ErrInvalidStatus) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to load customers for stats", "status", status, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load customers")
		return
	}

	h := weekday.Aggregate(customers, customer.DateField)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"total":   h.Sum(),
		"buckets": s.heatmap(h),
	})
}

// GET /api/v1/gradient?value=&min=&max=
func (s *Server) gradient(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	value, err := queryFloat(q.Get("value"), 0, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value: "+err.Error())
		return
	}
	min, err := queryFloat(q.Get("min"), 0, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "min: "+err.Error())
		return
	}
	max, err := queryFloat(q.Get("max"), 1, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "max: "+err.Error())
		return
	}

	c := s.ramp.At(value, min, max)
	writeJSON(w, http.StatusOK, map[string]string{
		"rgb": c.String(),
		"hex": c.Hex(),
	})
}

func queryFloat(raw string, fallback float64, required bool) (float64, error) {
	if raw == "" {
		if required {
			return 0, errors.New("required")
		}
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// POST /api/v1/transcripts/parse takes a raw transcript body.
func (s *Server) parseTranscript(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "transcript too large")
		return
	}
	writeJSON(w, http.StatusOK, transcript.ParseReport(string(body)))
}
