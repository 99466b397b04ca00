package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/carebook/libs/httpx"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
)

type weeklyWindowDTO struct {
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

type schedulePolicyDTO struct {
	ProfessionalID  string            `json:"professional_id,omitempty"`
	DurationMinutes int               `json:"duration_minutes" validate:"required,min=1,max=1440"`
	TimeZone        string            `json:"time_zone" validate:"required,timezone"`
	WeeklyWindows   []weeklyWindowDTO `json:"weekly_windows" validate:"dive"`
}

func (d schedulePolicyDTO) toPolicy() (availability.SchedulePolicy, error) {
	p := availability.SchedulePolicy{DurationMinutes: d.DurationMinutes, TimeZone: d.TimeZone}
	for i, w := range d.WeeklyWindows {
		day, err := availability.ParseWeekday(w.DayOfWeek)
		if err != nil {
			return availability.SchedulePolicy{}, err
		}
		start, err := availability.ParseTimeOfDay(w.StartTime)
		if err != nil {
			return availability.SchedulePolicy{}, err
		}
		end, err := availability.ParseTimeOfDay(w.EndTime)
		if err != nil {
			return availability.SchedulePolicy{}, err
		}
		win, err := availability.NewWeeklyWindow(day, start, end)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("weekly_windows[%d]: %w", i, err)
		}
		p.Windows = append(p.Windows, win)
	}
	return p, nil
}

func policyDTO(professionalID string, p availability.SchedulePolicy) schedulePolicyDTO {
	d := schedulePolicyDTO{
		ProfessionalID:  professionalID,
		DurationMinutes: p.DurationMinutes,
		TimeZone:        p.TimeZone,
		WeeklyWindows:   make([]weeklyWindowDTO, 0, len(p.Windows)),
	}
	for _, w := range p.Windows {
		d.WeeklyWindows = append(d.WeeklyWindows, weeklyWindowDTO{
			DayOfWeek: availability.WeekdayName(w.DayOfWeek),
			StartTime: w.Start.String(),
			EndTime:   w.End.String(),
		})
	}
	return d
}

// SchedulePolicy serves GET and PUT /api/v1/professionals/schedule-policy.
func (h *SchedulingHandler) SchedulePolicy(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(strings.TrimSpace(r.URL.Query().Get("professional_id")))
	if !ok {
		http.Error(w, "valid professional_id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		policy, err := h.svc.GetPolicy(r.Context(), professionalID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, policyDTO(professionalID, policy))
	case http.MethodPut:
		var req schedulePolicyDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			http.Error(w, validationMessage(err), http.StatusBadRequest)
			return
		}
		policy, err := req.toPolicy()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.svc.ReplacePolicy(r.Context(), professionalID, policy); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, policyDTO(professionalID, policy))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
