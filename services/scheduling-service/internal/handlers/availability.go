package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/carebook/libs/httpx"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Availability answers GET /api/v1/availability?professional_id=&from=&to=
// with the open intervals, formatted in the policy's zone.
func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	professionalID, ok := h.professionalID(strings.TrimSpace(q.Get("professional_id")))
	if !ok {
		http.Error(w, "valid professional_id is required", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("from")))
	if err != nil {
		http.Error(w, "invalid from (RFC3339 expected)", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("to")))
	if err != nil {
		http.Error(w, "invalid to (RFC3339 expected)", http.StatusBadRequest)
		return
	}

	intervals, err := h.svc.Availability(r.Context(), professionalID, from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]slotItem, 0, len(intervals))
	for _, iv := range intervals {
		resp = append(resp, slotItem{
			StartTime: iv.Start.Format(time.RFC3339),
			EndTime:   iv.End.Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
