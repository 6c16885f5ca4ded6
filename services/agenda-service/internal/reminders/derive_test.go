package reminders

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

func mkAppt(id string, at time.Time, status model.Status) model.Appointment {
	return model.Appointment{
		ID:         id,
		ClientName: "Maria",
		Date:       civil.DateOf(at),
		Time:       model.ClockOf(at).String(),
		Status:     status,
	}
}

func TestDerive_MostSpecificTier(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	a := mkAppt("appt-1", time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), model.StatusScheduled)

	res := Derive([]model.Appointment{a}, []int{24, 12, 2}, now, time.UTC)
	if len(res.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(res.Notifications))
	}
	n := res.Notifications[0]
	if n.ID.String() != "appt-1-12" || n.LeadHours != 12 {
		t.Fatalf("expected tier 12, got %s", n.ID)
	}
	if n.Message != "Maria tem consulta em 9h" {
		t.Fatalf("unexpected message %q", n.Message)
	}
}

func TestDerive_TierBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		until time.Duration
		want  string
	}{
		{until: 2 * time.Hour, want: "x-2"},
		{until: 2*time.Hour + time.Minute, want: "x-12"},
		{until: 24 * time.Hour, want: "x-24"},
		{until: 25 * time.Hour, want: ""},
		{until: time.Minute, want: "x-2"},
	}
	for _, tc := range cases {
		res := Derive([]model.Appointment{mkAppt("x", now.Add(tc.until), model.StatusScheduled)}, []int{2, 24, 12}, now, time.UTC)
		if tc.want == "" {
			if len(res.Notifications) != 0 {
				t.Fatalf("until %s: expected nothing, got %s", tc.until, res.Notifications[0].ID)
			}
			continue
		}
		if len(res.Notifications) != 1 || res.Notifications[0].ID.String() != tc.want {
			t.Fatalf("until %s: expected %s, got %+v", tc.until, tc.want, res.Notifications)
		}
	}
}

func TestDerive_OutOfWindow(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		mkAppt("far", now.Add(40*24*time.Hour), model.StatusScheduled),
		mkAppt("old", now.Add(-25*time.Hour), model.StatusCompleted),
	}
	res := Derive(appts, []int{24 * 60}, now, time.UTC)
	if len(res.Notifications) != 0 {
		t.Fatalf("expected no notifications, got %+v", res.Notifications)
	}
}

func TestDerive_ConcludedVariants(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	titles := map[model.Status]string{
		model.StatusCompleted: "Consulta concluída",
		model.StatusCancelled: "Consulta cancelada",
		model.StatusNoShow:    "Cliente não compareceu",
		model.StatusScheduled: "Consulta pendente de atualização",
	}
	i := 0
	for status, title := range titles {
		i++
		a := mkAppt("p", now.Add(-time.Duration(i)*time.Hour), status)
		res := Derive([]model.Appointment{a}, nil, now, time.UTC)
		if len(res.Notifications) != 1 {
			t.Fatalf("%s: expected 1 notification, got %d", status, len(res.Notifications))
		}
		n := res.Notifications[0]
		if n.ID.String() != "p-past" || n.Title != title || n.LeadHours != 0 || n.AppointmentStatus != status {
			t.Fatalf("%s: unexpected notification %+v", status, n)
		}
	}

	// Exactly now counts as concluded.
	res := Derive([]model.Appointment{mkAppt("n", now, model.StatusScheduled)}, nil, now, time.UTC)
	if len(res.Notifications) != 1 || res.Notifications[0].ID != model.Concluded("n") {
		t.Fatalf("expected concluded at now, got %+v", res.Notifications)
	}
}

func TestDerive_SkipsMalformedAndContinues(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	good := mkAppt("good", now.Add(time.Hour), model.StatusScheduled)
	noTime := good
	noTime.ID, noTime.Time = "no-time", ""
	noDate := good
	noDate.ID, noDate.Date = "no-date", civil.Date{}
	noID := good
	noID.ID = ""
	badStatus := mkAppt("bad-status", now.Add(-time.Hour), model.Status("archived"))

	res := Derive([]model.Appointment{noTime, noDate, good, noID, badStatus}, []int{24}, now, time.UTC)
	if res.Skipped != 4 {
		t.Fatalf("expected 4 skipped, got %d", res.Skipped)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].AppointmentID != "good" {
		t.Fatalf("expected only the good record, got %+v", res.Notifications)
	}
}

func TestDerive_OrderAndDedup(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		mkAppt("b", now.Add(-2*time.Hour), model.StatusCompleted),
		mkAppt("a", now.Add(3*time.Hour), model.StatusScheduled),
		mkAppt("c", now.Add(3*time.Hour), model.StatusScheduled),
		mkAppt("a", now.Add(3*time.Hour), model.StatusScheduled),
		mkAppt("d", now.Add(20*time.Hour), model.StatusScheduled),
	}
	res := Derive(appts, []int{24}, now, time.UTC)

	got := make([]string, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		got = append(got, n.ID.String())
	}
	want := []string{"d-24", "a-24", "c-24", "b-past"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDerive_UsesClinicLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	// 09:00 local is 12:00 UTC; now is 10:00 UTC so 2h remain.
	now := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	a := model.Appointment{ID: "z", ClientName: "Ana", Date: civil.Date{Year: 2024, Month: time.June, Day: 10}, Time: "09:00", Status: model.StatusScheduled}

	res := Derive([]model.Appointment{a}, []int{2, 24}, now, loc)
	if len(res.Notifications) != 1 || res.Notifications[0].ID != model.Upcoming("z", 2) {
		t.Fatalf("expected z-2, got %+v", res.Notifications)
	}
}

func TestAnnotate(t *testing.T) {
	ns := []model.DerivedNotification{{ID: model.Upcoming("a", 24)}, {ID: model.Concluded("b")}}
	Annotate(ns, map[model.NotificationID]struct{}{model.Concluded("b"): {}})
	if ns[0].Read || !ns[1].Read {
		t.Fatalf("unexpected read flags %+v", ns)
	}
}
