package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	personacore "github.com/sigmaris/persona-core-go"
)

// RedisStore is a PersonaStore backed by Redis lists.
//
// Keys are namespaced as "{prefix}:{session_id}:records" and
// "{prefix}:{session_id}:growth"; each row is one JSON element appended with
// RPUSH, so history order is write order and reads never need locking.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Prefix string // key prefix, default "persona"
}

// NewRedisStore creates a PersonaStore backed by the given client.
func NewRedisStore(client *redis.Client, config ...RedisStoreConfig) *RedisStore {
	cfg := RedisStoreConfig{Prefix: "persona"}
	if len(config) > 0 && config[0].Prefix != "" {
		cfg = config[0]
	}
	return &RedisStore{client: client, prefix: cfg.Prefix}
}

func (s *RedisStore) recordsKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:records", s.prefix, sessionID)
}

func (s *RedisStore) growthKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:growth", s.prefix, sessionID)
}

func (s *RedisStore) LoadLatest(ctx context.Context, sessionID string) (*personacore.PersonaRecord, error) {
	raw, err := s.client.LRange(ctx, s.recordsKey(sessionID), -1, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load latest persona: %w", err)
	}
	if len(raw) == 0 {
		return nil, personacore.ErrNotFound
	}
	var rec personacore.PersonaRecord
	if err := json.Unmarshal([]byte(raw[0]), &rec); err != nil {
		return nil, fmt.Errorf("decode persona record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *personacore.PersonaRecord) error {
	stamp(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode persona record: %w", err)
	}
	if err := s.client.RPush(ctx, s.recordsKey(rec.SessionID), string(data)).Err(); err != nil {
		return fmt.Errorf("save persona record: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]*personacore.PersonaRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.recordsKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query persona history: %w", err)
	}
	out := make([]*personacore.PersonaRecord, 0, len(raw))
	for _, item := range raw {
		var rec personacore.PersonaRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode persona record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *RedisStore) AppendGrowth(ctx context.Context, entry personacore.GrowthLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode growth entry: %w", err)
	}
	if err := s.client.RPush(ctx, s.growthKey(entry.SessionID), string(data)).Err(); err != nil {
		return fmt.Errorf("append growth entry: %w", err)
	}
	return nil
}

func (s *RedisStore) GrowthLog(ctx context.Context, sessionID string, limit int) ([]personacore.GrowthLogEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.growthKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query growth log: %w", err)
	}
	out := make([]personacore.GrowthLogEntry, 0, len(raw))
	for _, item := range raw {
		var entry personacore.GrowthLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode growth entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RedisStore) PruneHistory(ctx context.Context, sessionID string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}
	for _, key := range []string{s.recordsKey(sessionID), s.growthKey(sessionID)} {
		if err := s.client.LTrim(ctx, key, int64(-keepLast), -1).Err(); err != nil {
			return fmt.Errorf("trim %s: %w", key, err)
		}
	}
	return nil
}
