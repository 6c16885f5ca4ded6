package readstate

import (
	"context"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// Set is the acknowledged notification ids of one professional.
type Set map[model.NotificationID]struct{}

func (s Set) Has(id model.NotificationID) bool {
	_, ok := s[id]
	return ok
}

type Store interface {
	MarkRead(ctx context.Context, professionalID string, id model.NotificationID) (bool, error)
	MarkManyRead(ctx context.Context, professionalID string, ids []model.NotificationID) (int, error)
	IsRead(ctx context.Context, professionalID string, id model.NotificationID) (bool, error)
	Load(ctx context.Context, professionalID string) (Set, error)
	Clear(ctx context.Context, professionalID string) (int, error)
	// GC drops every stored id not in active and reports how many were removed.
	GC(ctx context.Context, professionalID string, active []model.NotificationID) (int, error)
}

// ChangeFunc runs after a mutation that actually changed stored state; n is the number of ids affected.
type ChangeFunc func(professionalID, op string, n int)

const (
	OpMarkRead = "mark_read"
	OpClear    = "clear"
	OpGC       = "gc"
)

func notify(fn ChangeFunc, professionalID, op string, n int) {
	if fn != nil && n > 0 {
		fn(professionalID, op, n)
	}
}

func idStrings(ids []model.NotificationID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// parseSet skips members that no longer parse; GC removes them eventually.
func parseSet(members []string) Set {
	set := make(Set, len(members))
	for _, m := range members {
		id, err := model.ParseNotificationID(m)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
