package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ProSocialFlow/internal/domain"
)

const maxWatchAttempts = 10

// RedisStore keeps one JSON document per category plus an index set of categories.
type RedisStore struct {
	client *goredis.Client
	prefix string
	limit  int
	now    func() time.Time
}

var _ Backend = (*RedisStore)(nil)

// NewRedisStore wires a go-redis client; prefix defaults to the collection name.
func NewRedisStore(client *goredis.Client, prefix string, limit int) *RedisStore {
	if prefix == "" {
		prefix = Collection
	}
	if limit <= 0 {
		limit = domain.TopicHistoryLimit
	}
	return &RedisStore{client: client, prefix: prefix, limit: limit, now: time.Now}
}

func (s *RedisStore) docKey(category domain.Category) string {
	return s.prefix + ":doc:" + category
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":categories"
}

// Read returns the category's topics.
func (s *RedisStore) Read(ctx context.Context, category domain.Category) ([]string, error) {
	raw, err := s.client.Get(ctx, s.docKey(category)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "read history", Category: category, Err: err}
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, &domain.StoreError{Op: "decode history", Category: category, Err: err}
	}
	return rec.RecentTopics, nil
}

// Record merges topic with an optimistic WATCH/MULTI transaction on the document key.
func (s *RedisStore) Record(ctx context.Context, category domain.Category, topic string) error {
	key := s.docKey(category)

	txf := func(tx *goredis.Tx) error {
		rec := domain.TopicHistoryRecord{Category: category}
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			if rec, err = decodeRecord(raw); err != nil {
				return err
			}
			rec.Category = category
		}

		rec.Record(topic, s.limit, s.now().UTC())
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.indexKey(), category)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return &domain.StoreError{Op: "record history", Category: category, Err: err}
	}
	return nil
}

// ReadAll enumerates the category index and fetches every document.
func (s *RedisStore) ReadAll(ctx context.Context) (map[domain.Category][]string, error) {
	categories, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, &domain.StoreError{Op: "list categories", Err: err}
	}

	result := make(map[domain.Category][]string, len(categories))
	if len(categories) == 0 {
		return result, nil
	}

	keys := make([]string, len(categories))
	for i, c := range categories {
		keys[i] = s.docKey(c)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &domain.StoreError{Op: "read all history", Err: err}
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, &domain.StoreError{Op: "decode history", Category: categories[i], Err: err}
		}
		result[categories[i]] = rec.RecentTopics
	}
	return result, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &domain.StoreError{Op: "ping redis", Err: err}
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRecord(raw []byte) (domain.TopicHistoryRecord, error) {
	var rec domain.TopicHistoryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.TopicHistoryRecord{}, err
	}
	if rec.RecentTopics == nil {
		rec.RecentTopics = []string{}
	}
	return rec, nil
}
