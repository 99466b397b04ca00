package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/carebook/libs/httpx"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/booking"
)

type bookSlotRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required,uuid"`
	StartTime      string `json:"start_time" validate:"required"`
}

type releaseSlotRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required,uuid"`
	SlotID         string `json:"slot_id" validate:"required,uuid"`
}

type slotResponse struct {
	SlotID         string `json:"slot_id"`
	ProfessionalID string `json:"professional_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
}

// Book handles POST /api/v1/slots/book. An Idempotency-Key header makes
// retries return the first outcome.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, validationMessage(err), http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Book(r.Context(), booking.BookRequest{
		ProfessionalID: req.ProfessionalID,
		Start:          start,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, slotResponse{
		SlotID:         res.SlotID,
		ProfessionalID: res.ProfessionalID,
		StartTime:      res.StartTime.Format(time.RFC3339),
		EndTime:        res.EndTime.Format(time.RFC3339),
		Status:         res.Status,
	})
}

// Release handles POST /api/v1/slots/release.
func (h *SchedulingHandler) Release(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req releaseSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.SlotID = strings.TrimSpace(req.SlotID)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	slot, err := h.svc.Release(r.Context(), req.ProfessionalID, req.SlotID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotResponse{
		SlotID:         slot.ID,
		ProfessionalID: req.ProfessionalID,
		StartTime:      slot.Start.Format(time.RFC3339),
		EndTime:        slot.End.Format(time.RFC3339),
		Status:         "released",
	})
}
