package readstate

import (
	"context"
	"sync"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// MemoryStore is used when no Redis address is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sets     map[string]map[string]struct{}
	onChange ChangeFunc
}

func NewMemoryStore(onChange ChangeFunc) *MemoryStore {
	return &MemoryStore{sets: make(map[string]map[string]struct{}), onChange: onChange}
}

func (s *MemoryStore) MarkRead(ctx context.Context, professionalID string, id model.NotificationID) (bool, error) {
	n, err := s.MarkManyRead(ctx, professionalID, []model.NotificationID{id})
	return n > 0, err
}

func (s *MemoryStore) MarkManyRead(_ context.Context, professionalID string, ids []model.NotificationID) (int, error) {
	s.mu.Lock()
	set := s.sets[professionalID]
	if set == nil {
		set = make(map[string]struct{})
		s.sets[professionalID] = set
	}
	added := 0
	for _, id := range idStrings(ids) {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		added++
	}
	s.mu.Unlock()

	notify(s.onChange, professionalID, OpMarkRead, added)
	return added, nil
}

func (s *MemoryStore) IsRead(_ context.Context, professionalID string, id model.NotificationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[professionalID][id.String()]
	return ok, nil
}

func (s *MemoryStore) Load(_ context.Context, professionalID string) (Set, error) {
	s.mu.Lock()
	members := make([]string, 0, len(s.sets[professionalID]))
	for m := range s.sets[professionalID] {
		members = append(members, m)
	}
	s.mu.Unlock()
	return parseSet(members), nil
}

func (s *MemoryStore) Clear(_ context.Context, professionalID string) (int, error) {
	s.mu.Lock()
	n := len(s.sets[professionalID])
	delete(s.sets, professionalID)
	s.mu.Unlock()

	notify(s.onChange, professionalID, OpClear, n)
	return n, nil
}

func (s *MemoryStore) GC(_ context.Context, professionalID string, active []model.NotificationID) (int, error) {
	keep := make(map[string]struct{}, len(active))
	for _, id := range idStrings(active) {
		keep[id] = struct{}{}
	}

	s.mu.Lock()
	removed := 0
	for m := range s.sets[professionalID] {
		if _, ok := keep[m]; !ok {
			delete(s.sets[professionalID], m)
			removed++
		}
	}
	s.mu.Unlock()

	notify(s.onChange, professionalID, OpGC, removed)
	return removed, nil
}
