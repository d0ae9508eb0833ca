package storage

import (
	"context"
	"sync"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// MemoryStore keeps records in process memory. It is the default for local
// runs and tests; records do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[int64]interfaces.FullConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[int64]interfaces.FullConfig)}
}

func (s *MemoryStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	record, err := prepareRecord(repoID, cfg)
	if err != nil {
		return storeError(s.Name(), "upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[repoID] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.configs[repoID]
	if !ok {
		return nil, interfaces.ErrConfigNotFound
	}
	clone := cloneRecord(record)
	return &clone, nil
}

func (s *MemoryStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []interfaces.FullConfig{}
	for _, record := range s.configs {
		if record.Subscribes(ref) {
			result = append(result, cloneRecord(record))
		}
	}
	sortByRepoID(result)
	return result, nil
}

func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneRecord(cfg interfaces.FullConfig) interfaces.FullConfig {
	clone := cfg
	clone.SourceSets = make([]interfaces.SourceSet, len(cfg.SourceSets))
	for i, set := range cfg.SourceSets {
		clone.SourceSets[i] = interfaces.SourceSet{Name: set.Name, Files: append([]string{}, set.Files...)}
	}
	clone.ConfigSets = append([]string{}, cfg.ConfigSets...)
	return clone
}
