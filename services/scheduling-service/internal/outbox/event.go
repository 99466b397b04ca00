package outbox

import (
	"encoding/json"
	"time"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateSlot   = "schedule_slot"
	AggregatePolicy = "schedule_policy"

	EventSlotBooked    = "scheduling.slot.booked.v1"
	EventSlotReleased  = "scheduling.slot.released.v1"
	EventPolicyUpdated = "scheduling.policy.updated.v1"
)

type SlotPayload struct {
	SlotID         string    `json:"slot_id"`
	ProfessionalID string    `json:"professional_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type PolicyPayload struct {
	ProfessionalID  string    `json:"professional_id"`
	DurationMinutes int       `json:"duration_minutes"`
	TimeZone        string    `json:"time_zone"`
	WindowCount     int       `json:"window_count"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewSlotEvent(eventType string, p SlotPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateSlot,
		AggregateID:   p.SlotID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

func NewPolicyUpdatedEvent(p PolicyPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregatePolicy,
		AggregateID:   p.ProfessionalID,
		EventType:     EventPolicyUpdated,
		Payload:       body,
	}, nil
}
