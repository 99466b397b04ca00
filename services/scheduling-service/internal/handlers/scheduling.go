package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/booking"
)

// Scheduler is the use case surface the HTTP layer drives.
type Scheduler interface {
	Availability(ctx context.Context, professionalID string, from, to time.Time) ([]availability.Interval, error)
	GetPolicy(ctx context.Context, professionalID string) (availability.SchedulePolicy, error)
	ReplacePolicy(ctx context.Context, professionalID string, policy availability.SchedulePolicy) error
	Book(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
	Release(ctx context.Context, professionalID, slotID string) (availability.ScheduleSlot, error)
}

type SchedulingHandler struct {
	svc      Scheduler
	logger   *slog.Logger
	validate *validator.Validate
}

func NewSchedulingHandler(svc Scheduler, logger *slog.Logger) *SchedulingHandler {
	validate, err := newValidator()
	if err != nil {
		panic(err)
	}
	return &SchedulingHandler{svc: svc, logger: logger, validate: validate}
}

// newValidator registers the policy tags: "weekday" for day names and
// "clock" for HH:MM times of day.
func newValidator() (*validator.Validate, error) {
	validate := validator.New()
	if err := validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := availability.ParseWeekday(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("register weekday validation: %w", err)
	}
	if err := validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := availability.ParseTimeOfDay(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("register clock validation: %w", err)
	}
	return validate, nil
}

// Register mounts every scheduling route on mux.
func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability", h.Availability)
	mux.HandleFunc("/api/v1/professionals/schedule-policy", h.SchedulePolicy)
	mux.HandleFunc("/api/v1/slots/book", h.Book)
	mux.HandleFunc("/api/v1/slots/release", h.Release)
}

func (h *SchedulingHandler) professionalID(raw string) (string, bool) {
	if err := h.validate.Var(raw, "required,uuid"); err != nil {
		return "", false
	}
	return raw, true
}

// writeServiceError maps use case errors onto status codes.
func (h *SchedulingHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidPolicy),
		errors.Is(err, availability.ErrInvalidWindow),
		errors.Is(err, availability.ErrUnknownWeekday),
		errors.Is(err, booking.ErrRangeTooLarge):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrPolicyNotFound):
		http.Error(w, "schedule policy not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotNotFound):
		http.Error(w, "slot not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "time slot already booked", http.StatusConflict)
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		h.logger.Error("scheduling request failed", "err", err, "path", r.URL.Path)
		http.Error(w, "scheduling store unavailable", http.StatusServiceUnavailable)
	}
}
