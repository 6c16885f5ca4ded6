package model

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status holds its slot.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentPartial:
		return true
	}
	return false
}

var ErrInvalidTransition = errors.New("invalid status transition")

// CheckTransition allows scheduled to move to any terminal status and a status to stay unchanged.
// Corrective edits bypass the forward-only rule.
func CheckTransition(from, to Status, corrective bool) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == to || corrective {
		return nil
	}
	if from == StatusScheduled {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

type Appointment struct {
	ID             string
	ProfessionalID string
	ClientID       string
	ClientName     string
	ProcedureID    string
	Date           civil.Date
	// Time is the stored time-of-day ("HH:MM" or "HH:MM:SS"); use Clock to compare.
	Time          string
	PriceCents    int64
	Status        Status
	PaymentStatus PaymentStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Appointment) Clock() (Clock, error) {
	return ParseClock(a.Time)
}

// StartsAt resolves the appointment's wall-clock start in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if !a.Date.IsValid() {
		return time.Time{}, fmt.Errorf("appointment %q: invalid date", a.ID)
	}
	c, err := a.Clock()
	if err != nil {
		return time.Time{}, fmt.Errorf("appointment %q: %w", a.ID, err)
	}
	return c.On(a.Date, loc), nil
}
