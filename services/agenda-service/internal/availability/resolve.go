package availability

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/calendar"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

type Reason string

const (
	ReasonNone   Reason = ""
	ReasonBooked Reason = "booked"
	ReasonPast   Reason = "past"
)

type Slot struct {
	Time      model.Clock `json:"time"`
	Available bool        `json:"available"`
	Reason    Reason      `json:"reason,omitempty"`
}

const DefaultHorizonDays = 60

// Occupied returns the minute-precision times held by non-cancelled appointments on date.
// Records with unparseable times are ignored.
func Occupied(date civil.Date, appointments []model.Appointment) map[model.Clock]struct{} {
	occupied := make(map[model.Clock]struct{}, len(appointments))
	for _, a := range appointments {
		if a.Date != date || !a.Status.Occupies() {
			continue
		}
		c, err := a.Clock()
		if err != nil {
			continue
		}
		occupied[c] = struct{}{}
	}
	return occupied
}

// Resolve marks each slot booked, past or available. now must already be in the clinic's location.
// booked wins over past; colliding appointments simply leave the slot booked.
func Resolve(date civil.Date, slots []model.Clock, appointments []model.Appointment, now time.Time) []Slot {
	occupied := Occupied(date, appointments)
	today := civil.DateOf(now)
	nowClock := model.ClockOf(now)

	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		slot := Slot{Time: s, Available: true}
		switch {
		case isOccupied(occupied, s):
			slot.Available, slot.Reason = false, ReasonBooked
		case date.Before(today), date == today && s <= nowClock:
			slot.Available, slot.Reason = false, ReasonPast
		}
		out = append(out, slot)
	}
	return out
}

func isOccupied(occupied map[model.Clock]struct{}, c model.Clock) bool {
	_, ok := occupied[c]
	return ok
}

// FirstBookableDate scans from `from` up to horizonDays ahead for a date that passes the
// calendar policy and still has a free slot. appointments may span the whole range.
func FirstBookableDate(cfg model.WorkingHours, appointments []model.Appointment, from civil.Date, now time.Time, horizonDays int) (civil.Date, bool, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	slots, err := GenerateSlots(&cfg)
	if err != nil {
		return civil.Date{}, false, err
	}
	today := civil.DateOf(now)
	if from.Before(today) {
		from = today
	}
	for d := from; d.Before(from.AddDays(horizonDays)); d = d.AddDays(1) {
		if err := calendar.CheckDate(d, today, cfg.WorkingDays); err != nil {
			if errors.Is(err, calendar.ErrNoWorkingDays) {
				return civil.Date{}, false, &ConfigError{Field: "working_days", Err: err}
			}
			continue
		}
		for _, s := range Resolve(d, slots, appointments, now) {
			if s.Available {
				return d, true, nil
			}
		}
	}
	return civil.Date{}, false, nil
}
