package calendar

import (
	"errors"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

var (
	ErrInPast        = errors.New("in-past")
	ErrNotWorkingDay = errors.New("not-working-day")
	// ErrNoWorkingDays is a configuration problem, not a rejection of the date.
	ErrNoWorkingDays = errors.New("no working days configured")
)

// CheckDate reports why date cannot take bookings. Holidays never block.
func CheckDate(date, today civil.Date, workingDays model.WeekdaySet) error {
	if workingDays.Empty() {
		return ErrNoWorkingDays
	}
	if date.Before(today) {
		return ErrInPast
	}
	if !workingDays.Has(model.Weekday(date)) {
		return ErrNotWorkingDay
	}
	return nil
}

func IsBookableDate(date, today civil.Date, workingDays model.WeekdaySet) bool {
	return CheckDate(date, today, workingDays) == nil
}
