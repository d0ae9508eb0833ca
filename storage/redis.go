package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/ruteri/templatizer-backend/interfaces"
)

const (
	defaultRedisKeyPrefix = "templatizer"

	// maxUpsertAttempts bounds optimistic transaction retries when
	// concurrent deliveries write the same repository.
	maxUpsertAttempts = 16
)

// RedisStore keeps one JSON document per repository and a reverse index
// set per subscription reference:
//
//	<prefix>:config:<repo id>       -> FullConfig JSON
//	<prefix>:subscribers:<ref>      -> set of repo ids
//
// Document and index are updated in one MULTI transaction under WATCH.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	log       *slog.Logger
}

// NewRedisStore connects to the server described by opts and verifies
// the connection.
func NewRedisStore(opts *redis.Options, keyPrefix string, log *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, log: log}, nil
}

func (s *RedisStore) configKey(repoID int64) string {
	return s.keyPrefix + ":config:" + formatRepoID(repoID)
}

func (s *RedisStore) subscribersKey(ref string) string {
	return s.keyPrefix + ":subscribers:" + ref
}

func (s *RedisStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	record, err := prepareRecord(repoID, cfg)
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}
	payload, err := encodeRecord(record)
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}

	key := s.configKey(repoID)
	member := formatRepoID(repoID)

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			var previous []string
			existing, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if old, decodeErr := decodeRecord(existing); decodeErr == nil {
					previous = old.ConfigSets
				} else {
					s.log.Warn("Replacing malformed config record", slog.String("key", key), "err", decodeErr)
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				for _, ref := range droppedRefs(previous, record.ConfigSets) {
					pipe.SRem(ctx, s.subscribersKey(ref), member)
				}
				for _, ref := range record.ConfigSets {
					pipe.SAdd(ctx, s.subscribersKey(ref), member)
				}
				return nil
			})
			return err
		}, key)

		if err == nil {
			s.log.Debug("Stored config in redis", slog.Int64("repo_id", repoID))
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return storeError(s.Name(), "upsert", err)
	}
	return storeError(s.Name(), "upsert", fmt.Errorf("gave up after %d conflicting transactions", maxUpsertAttempts))
}

func (s *RedisStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	data, err := s.client.Get(ctx, s.configKey(repoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrConfigNotFound
	}
	if err != nil {
		return nil, storeError(s.Name(), "get", err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, storeError(s.Name(), "get", err)
	}
	return &record, nil
}

func (s *RedisStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	members, err := s.client.SMembers(ctx, s.subscribersKey(ref)).Result()
	if err != nil {
		return nil, storeError(s.Name(), "find", err)
	}

	result := []interfaces.FullConfig{}
	if len(members) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		repoID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			s.log.Warn("Skipping malformed subscriber index entry",
				slog.String("ref", ref),
				slog.String("member", member))
			continue
		}
		keys = append(keys, s.configKey(repoID))
	}
	if len(keys) == 0 {
		return result, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError(s.Name(), "find", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Indexed but deleted.
			continue
		}
		record, err := decodeRecord([]byte(raw))
		if err != nil {
			s.log.Warn("Skipping malformed config record", slog.String("key", keys[i]), "err", err)
			continue
		}
		if !record.Subscribes(ref) {
			continue
		}
		result = append(result, record)
	}

	sortByRepoID(result)
	return result, nil
}

func (s *RedisStore) Available(ctx context.Context) bool {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.Warn("Redis store unavailable", "err", err)
		return false
	}
	return true
}

func (s *RedisStore) Name() string {
	return "redis-" + s.client.Options().Addr
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
