package reminders

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

const (
	UpcomingWindow  = 30 * 24 * time.Hour
	ConcludedWindow = 24 * time.Hour
)

type Result struct {
	Notifications []model.DerivedNotification
	// Skipped counts malformed appointment records.
	Skipped int
}

// Derive computes the notification feed. It is pure: the same inputs always give the same feed.
// Output is ordered by appointment start, latest first, with ties broken by id.
func Derive(appointments []model.Appointment, leadHours []int, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	tiers := model.NormalizeLeadHours(leadHours)

	var res Result
	seen := make(map[model.NotificationID]struct{}, len(appointments))
	for _, a := range appointments {
		if a.ID == "" {
			res.Skipped++
			continue
		}
		startsAt, err := a.StartsAt(loc)
		if err != nil {
			res.Skipped++
			continue
		}
		until := startsAt.Sub(now)

		var (
			n  model.DerivedNotification
			ok bool
		)
		if until > 0 {
			n, ok = upcoming(a, until, tiers)
		} else {
			n, ok, err = concluded(a, until)
			if err != nil {
				res.Skipped++
				continue
			}
		}
		if !ok {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		n.StartsAt = startsAt
		n.Date = a.Date
		n.Time, _ = a.Clock()
		res.Notifications = append(res.Notifications, n)
	}

	sort.SliceStable(res.Notifications, func(i, j int) bool {
		a, b := res.Notifications[i], res.Notifications[j]
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.After(b.StartsAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return res
}

// tierFor returns the most specific tier that has fired: the smallest lead L with until <= L.
// tiers must be sorted descending.
func tierFor(until time.Duration, tiers []int) (int, bool) {
	hours := until.Hours()
	lead, found := 0, false
	for _, l := range tiers {
		if hours <= float64(l) {
			lead, found = l, true
		}
	}
	return lead, found
}

func upcoming(a model.Appointment, until time.Duration, tiers []int) (model.DerivedNotification, bool) {
	if until > UpcomingWindow {
		return model.DerivedNotification{}, false
	}
	lead, ok := tierFor(until, tiers)
	if !ok {
		return model.DerivedNotification{}, false
	}
	client := clientName(a)
	return model.DerivedNotification{
		ID:                model.Upcoming(a.ID, lead),
		AppointmentID:     a.ID,
		ClientName:        client,
		Title:             "Lembrete de consulta",
		Message:           fmt.Sprintf("%s tem consulta em %dh", client, int(math.Round(until.Hours()))),
		LeadHours:         lead,
		AppointmentStatus: a.Status,
	}, true
}

func concluded(a model.Appointment, until time.Duration) (model.DerivedNotification, bool, error) {
	if -until > ConcludedWindow {
		return model.DerivedNotification{}, false, nil
	}
	client := clientName(a)
	var title, message string
	switch a.Status {
	case model.StatusCompleted:
		title, message = "Consulta concluída", fmt.Sprintf("A consulta de %s foi concluída", client)
	case model.StatusCancelled:
		title, message = "Consulta cancelada", fmt.Sprintf("A consulta de %s foi cancelada", client)
	case model.StatusNoShow:
		title, message = "Cliente não compareceu", fmt.Sprintf("%s não compareceu à consulta", client)
	case model.StatusScheduled:
		title, message = "Consulta pendente de atualização", fmt.Sprintf("A consulta de %s já passou. Atualize o status", client)
	default:
		return model.DerivedNotification{}, false, fmt.Errorf("appointment %q: unknown status %q", a.ID, a.Status)
	}
	return model.DerivedNotification{
		ID:                model.Concluded(a.ID),
		AppointmentID:     a.ID,
		ClientName:        client,
		Title:             title,
		Message:           message,
		AppointmentStatus: a.Status,
	}, true, nil
}

func clientName(a model.Appointment) string {
	if name := strings.TrimSpace(a.ClientName); name != "" {
		return name
	}
	return "Cliente"
}

// Annotate sets Read from the acknowledged set.
func Annotate(notifications []model.DerivedNotification, read map[model.NotificationID]struct{}) {
	for i := range notifications {
		_, notifications[i].Read = read[notifications[i].ID]
	}
}

// IDs returns the identity of every notification in feed order.
func IDs(notifications []model.DerivedNotification) []model.NotificationID {
	ids := make([]model.NotificationID, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
	}
	return ids
}
