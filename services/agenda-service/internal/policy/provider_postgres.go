package policy

import (
	"context"
	"fmt"

	"github.com/clinicagenda/agenda/libs/db"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

type PostgresProvider struct {
	pool db.Querier
}

func NewPostgresProvider(pool db.Querier) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// Settings reads professional_settings. Unparseable hours are returned as a zero SlotMinutes so
// slot generation reports a ConfigError and falls back; empty working days are passed through.
func (p *PostgresProvider) Settings(ctx context.Context, professionalID string) (Settings, error) {
	var (
		start, end  string
		slotMinutes int32
		workingDays []int32
		leadHours   []int32
	)
	err := p.pool.QueryRow(ctx, `
		SELECT working_hours_start::text, working_hours_end::text, slot_minutes,
			working_days, reminder_lead_hours
		FROM professional_settings
		WHERE professional_id = $1
	`, professionalID).Scan(&start, &end, &slotMinutes, &workingDays, &leadHours)
	if err != nil {
		if db.IsNotFound(err) {
			return Settings{}, ErrNotConfigured
		}
		return Settings{}, fmt.Errorf("policy: load settings: %w", err)
	}

	days := make([]int, 0, len(workingDays))
	for _, d := range workingDays {
		days = append(days, int(d))
	}
	leads := make([]int, 0, len(leadHours))
	for _, h := range leadHours {
		leads = append(leads, int(h))
	}

	wh := model.WorkingHours{
		SlotMinutes: int(slotMinutes),
		WorkingDays: model.WeekdaySetFromInts(days),
	}
	startClock, errStart := model.ParseClock(start)
	endClock, errEnd := model.ParseClock(end)
	if errStart != nil || errEnd != nil {
		wh.SlotMinutes = 0
	} else {
		wh.Start, wh.End = startClock, endClock
	}
	return Settings{WorkingHours: wh, LeadHours: model.NormalizeLeadHours(leads)}, nil
}
