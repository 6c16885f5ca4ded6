package readstate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

const defaultKeyPrefix = "agenda:readstate:"

// RedisStore keeps one SET per professional.
type RedisStore struct {
	rdb      redis.Cmdable
	prefix   string
	onChange ChangeFunc
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func WithRedisOnChange(fn ChangeFunc) RedisOption {
	return func(s *RedisStore) { s.onChange = fn }
}

func NewRedisStore(rdb redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(professionalID string) string {
	return s.prefix + professionalID
}

func (s *RedisStore) MarkRead(ctx context.Context, professionalID string, id model.NotificationID) (bool, error) {
	n, err := s.MarkManyRead(ctx, professionalID, []model.NotificationID{id})
	return n > 0, err
}

func (s *RedisStore) MarkManyRead(ctx context.Context, professionalID string, ids []model.NotificationID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	members := make([]any, 0, len(ids))
	for _, id := range idStrings(ids) {
		members = append(members, id)
	}
	added, err := s.rdb.SAdd(ctx, s.key(professionalID), members...).Result()
	if err != nil {
		return 0, fmt.Errorf("readstate: mark read: %w", err)
	}
	notify(s.onChange, professionalID, OpMarkRead, int(added))
	return int(added), nil
}

func (s *RedisStore) IsRead(ctx context.Context, professionalID string, id model.NotificationID) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key(professionalID), id.String()).Result()
	if err != nil {
		return false, fmt.Errorf("readstate: is read: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Load(ctx context.Context, professionalID string) (Set, error) {
	members, err := s.rdb.SMembers(ctx, s.key(professionalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("readstate: load: %w", err)
	}
	return parseSet(members), nil
}

func (s *RedisStore) Clear(ctx context.Context, professionalID string) (int, error) {
	key := s.key(professionalID)
	size, err := s.rdb.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("readstate: clear: %w", err)
	}
	if size == 0 {
		return 0, nil
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("readstate: clear: %w", err)
	}
	notify(s.onChange, professionalID, OpClear, int(size))
	return int(size), nil
}

func (s *RedisStore) GC(ctx context.Context, professionalID string, active []model.NotificationID) (int, error) {
	key := s.key(professionalID)
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("readstate: gc: %w", err)
	}
	keep := make(map[string]struct{}, len(active))
	for _, id := range idStrings(active) {
		keep[id] = struct{}{}
	}
	var stale []any
	for _, m := range members {
		if _, ok := keep[m]; !ok {
			stale = append(stale, m)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	removed, err := s.rdb.SRem(ctx, key, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("readstate: gc: %w", err)
	}
	notify(s.onChange, professionalID, OpGC, int(removed))
	return int(removed), nil
}
