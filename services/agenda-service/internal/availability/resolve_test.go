package availability

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

func appt(id string, d civil.Date, at string, status model.Status) model.Appointment {
	return model.Appointment{ID: id, ProfessionalID: "pro-1", Date: d, Time: at, Status: status}
}

func TestResolve_PastOnToday(t *testing.T) {
	loc := time.UTC
	today := civil.Date{Year: 2024, Month: time.June, Day: 10}
	now := time.Date(2024, 6, 10, 14, 0, 0, 0, loc)
	slots := []model.Clock{model.NewClock(13, 30), model.NewClock(14, 0), model.NewClock(15, 0)}

	got := Resolve(today, slots, nil, now)
	if got[0].Available || got[0].Reason != ReasonPast {
		t.Fatalf("13:30 should be past, got %+v", got[0])
	}
	if got[1].Available || got[1].Reason != ReasonPast {
		t.Fatalf("14:00 at now should be past, got %+v", got[1])
	}
	if !got[2].Available || got[2].Reason != ReasonNone {
		t.Fatalf("15:00 should be available, got %+v", got[2])
	}
}

func TestResolve_CancelledFreesSlot(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.June, Day: 11}
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	slots := []model.Clock{model.NewClock(10, 0)}

	got := Resolve(d, slots, []model.Appointment{appt("a", d, "10:00", model.StatusCancelled)}, now)
	if !got[0].Available {
		t.Fatalf("cancelled appointment must not occupy the slot: %+v", got[0])
	}
}

func TestResolve_BookedBeatsPastAndCollisions(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.June, Day: 10}
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	slots := []model.Clock{model.NewClock(9, 0), model.NewClock(13, 0)}
	appts := []model.Appointment{
		appt("a", d, "09:00:00", model.StatusCompleted),
		appt("b", d, "13:00", model.StatusScheduled),
		appt("c", d, "13:00:30", model.StatusScheduled),
		appt("d", d, "bogus", model.StatusScheduled),
		appt("e", d.AddDays(1), "09:00", model.StatusScheduled),
	}
	got := Resolve(d, slots, appts, now)
	for _, s := range got {
		if s.Available || s.Reason != ReasonBooked {
			t.Fatalf("expected booked, got %+v", s)
		}
	}
}

func TestResolve_AvailableImpliesUnoccupied(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.July, Day: 1}
	now := time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC)
	slots, _ := GenerateSlots(nil)
	statuses := []model.Status{model.StatusScheduled, model.StatusCancelled, model.StatusNoShow, model.StatusCompleted}
	var appts []model.Appointment
	for i, s := range slots {
		if i%3 == 0 {
			appts = append(appts, appt("x", d, s.String(), statuses[i%len(statuses)]))
		}
	}
	occupied := Occupied(d, appts)
	for _, s := range Resolve(d, slots, appts, now) {
		if _, taken := occupied[s.Time]; s.Available && taken {
			t.Fatalf("slot %s marked available but occupied", s.Time)
		}
	}
}

func TestFirstBookableDate(t *testing.T) {
	cfg := model.WorkingHours{
		Start:       model.NewClock(9, 0),
		End:         model.NewClock(10, 0),
		SlotMinutes: 60,
		WorkingDays: model.NewWeekdaySet(time.Monday, time.Tuesday),
	}
	// Friday afternoon; Monday is fully booked, Tuesday is free.
	now := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	monday := civil.Date{Year: 2024, Month: time.June, Day: 17}
	appts := []model.Appointment{
		appt("a", monday, "09:00", model.StatusScheduled),
		appt("b", monday, "10:00", model.StatusScheduled),
	}

	got, ok, err := FirstBookableDate(cfg, appts, civil.DateOf(now), now, 0)
	if err != nil || !ok {
		t.Fatalf("expected a date, got ok=%v err=%v", ok, err)
	}
	if got != monday.AddDays(1) {
		t.Fatalf("expected %s, got %s", monday.AddDays(1), got)
	}

	cfg.WorkingDays = 0
	if _, _, err := FirstBookableDate(cfg, nil, civil.DateOf(now), now, 0); err == nil {
		t.Fatal("expected ConfigError for empty working days")
	}
}
