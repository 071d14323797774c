package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// RecordTakeRequest is the JSON body for POST /api/takes. A zero or missing
// take number means "next free take for this slate".
type RecordTakeRequest struct {
	Slate string `json:"slate"`
	Take  int    `json:"take,omitempty"`
}

// handleListTakes returns an http.HandlerFunc for GET /api/takes.
func (g *Gateway) handleListTakes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		entries, err := g.takes.List(r.Context(), limit)
		if err != nil {
			g.cfg.Logger.Error("gateway: take list failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}

// handleRecordTake returns an http.HandlerFunc for POST /api/takes.
func (g *Gateway) handleRecordTake() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecordTakeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Slate == "" {
			http.Error(w, "slate is required", http.StatusBadRequest)
			return
		}

		take := req.Take
		if take <= 0 {
			next, err := g.takes.NextTake(r.Context(), req.Slate)
			if err != nil {
				g.cfg.Logger.Error("gateway: next take failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			take = next
		}

		entry, err := g.takes.Record(r.Context(), req.Slate, take)
		if err != nil {
			g.cfg.Logger.Error("gateway: take record failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if g.metrics != nil {
			g.metrics.TakesRecorded.Inc()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(entry)
	}
}
