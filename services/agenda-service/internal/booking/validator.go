package booking

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/availability"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/calendar"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

type Reason string

const (
	ReasonNotWorkingDay     Reason = "not-working-day"
	ReasonInPast            Reason = "in-past"
	ReasonTimeAlreadyPassed Reason = "time-already-passed"
	ReasonSlotAlreadyBooked Reason = "slot-already-booked"
	// ReasonNotASlot covers times off the slot grid or outside working hours.
	ReasonNotASlot          Reason = "not-a-slot"
)

var (
	// ErrRejected matches every *Rejection via errors.Is.
	ErrRejected = errors.New("booking rejected")
	// ErrRaceLost means validation passed but storage refused the slot at commit.
	ErrRaceLost = errors.New("booking: slot taken concurrently")
	// ErrSlotTaken is returned when an update would revive an appointment onto an occupied slot.
	ErrSlotTaken = errors.New("booking: slot occupied by another appointment")
	ErrNotFound  = errors.New("booking: appointment not found")
)

// Rejection is a user-facing refusal that can be retried after correcting the input.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return "booking rejected: " + string(r.Reason)
}

func (r *Rejection) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason Reason) error {
	return &Rejection{Reason: reason}
}

type Proposal struct {
	ProfessionalID string
	Date           civil.Date
	Time           model.Clock
}

// Validate re-checks a proposal against a fresh snapshot, failing fast on the first violated rule.
// now must be in the clinic's location. Empty working days return an *availability.ConfigError.
func Validate(p Proposal, current []model.Appointment, cfg model.WorkingHours, now time.Time) error {
	today := civil.DateOf(now)
	if err := calendar.CheckDate(p.Date, today, cfg.WorkingDays); err != nil {
		switch {
		case errors.Is(err, calendar.ErrNoWorkingDays):
			return &availability.ConfigError{Field: "working_days", Err: err}
		case errors.Is(err, calendar.ErrInPast):
			return reject(ReasonInPast)
		default:
			return reject(ReasonNotWorkingDay)
		}
	}

	if p.Date == today && p.Time <= model.ClockOf(now) {
		return reject(ReasonTimeAlreadyPassed)
	}

	if !onGrid(p.Time, cfg) {
		return reject(ReasonNotASlot)
	}

	for _, a := range current {
		if a.ProfessionalID != p.ProfessionalID || a.Date != p.Date || !a.Status.Occupies() {
			continue
		}
		if c, err := a.Clock(); err == nil && c == p.Time {
			return reject(ReasonSlotAlreadyBooked)
		}
	}
	return nil
}

// onGrid uses the fallback grid when cfg cannot generate slots, matching what availability shows.
func onGrid(t model.Clock, cfg model.WorkingHours) bool {
	slots, _ := availability.SlotsOrFallback(&cfg)
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}
