package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/templatizer-backend/interfaces"
	bolt "go.etcd.io/bbolt"
)

const (
	boltConfigsBucket       = "configs"
	boltSubscriptionsBucket = "subscriptions"
)

// BoltStore keeps records in a single BoltDB file. The subscriptions bucket
// holds one nested bucket per reference whose keys are subscriber repo ids.
type BoltStore struct {
	db   *bolt.DB
	path string
	log  *slog.Logger
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string, log *slog.Logger) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt store path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltConfigsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(boltSubscriptionsBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: cleaned, log: log}, nil
}

func (s *BoltStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	record, err := prepareRecord(repoID, cfg)
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}
	payload, err := encodeRecord(record)
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}

	key := []byte(formatRepoID(repoID))
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		configs := tx.Bucket([]byte(boltConfigsBucket))
		subscriptions := tx.Bucket([]byte(boltSubscriptionsBucket))
		if configs == nil || subscriptions == nil {
			return errors.New("bolt store buckets missing")
		}

		var previous []string
		if existing := configs.Get(key); existing != nil {
			if old, decodeErr := decodeRecord(existing); decodeErr == nil {
				previous = old.ConfigSets
			}
		}

		for _, ref := range droppedRefs(previous, record.ConfigSets) {
			if refBucket := subscriptions.Bucket([]byte(ref)); refBucket != nil {
				if err := refBucket.Delete(key); err != nil {
					return err
				}
			}
		}
		for _, ref := range record.ConfigSets {
			refBucket, err := subscriptions.CreateBucketIfNotExists([]byte(ref))
			if err != nil {
				return err
			}
			if err := refBucket.Put(key, []byte{}); err != nil {
				return err
			}
		}

		return configs.Put(key, payload)
	})
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		configs := tx.Bucket([]byte(boltConfigsBucket))
		if configs == nil {
			return nil
		}
		if value := configs.Get([]byte(formatRepoID(repoID))); value != nil {
			data = append([]byte{}, value...)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(s.Name(), "get", err)
	}
	if data == nil {
		return nil, interfaces.ErrConfigNotFound
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, storeError(s.Name(), "get", err)
	}
	return &record, nil
}

func (s *BoltStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	result := []interfaces.FullConfig{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		configs := tx.Bucket([]byte(boltConfigsBucket))
		subscriptions := tx.Bucket([]byte(boltSubscriptionsBucket))
		if configs == nil || subscriptions == nil {
			return nil
		}
		refBucket := subscriptions.Bucket([]byte(ref))
		if refBucket == nil {
			return nil
		}

		return refBucket.ForEach(func(k, _ []byte) error {
			value := configs.Get(k)
			if value == nil {
				return nil
			}
			record, err := decodeRecord(value)
			if err != nil {
				s.log.Warn("Skipping malformed config record", slog.String("repo_id", string(k)), "err", err)
				return nil
			}
			if record.Subscribes(ref) {
				result = append(result, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, storeError(s.Name(), "find", err)
	}

	sortByRepoID(result)
	return result, nil
}

func (s *BoltStore) Available(ctx context.Context) bool {
	return s.db.View(func(tx *bolt.Tx) error { return nil }) == nil
}

func (s *BoltStore) Name() string {
	return "bolt-" + filepath.Base(s.path)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
