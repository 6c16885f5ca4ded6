package outbox

import (
	"encoding/json"
	"fmt"
)

const (
	EventAppointmentBooked  = "agenda.appointment.booked.v1"
	EventAppointmentUpdated = "agenda.appointment.updated.v1"
	EventReminderSurfaced   = "agenda.reminder.surfaced.v1"
)

// Event is the envelope written to outbox_events. The Kafka topic equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
