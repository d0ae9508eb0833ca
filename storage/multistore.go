package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// MultiStore implements interfaces.ConfigStore over several backends.
// Writes go to every available backend; reads are served by the first
// available backend that answers.
type MultiStore struct {
	backends []interfaces.ConfigStore
	log      *slog.Logger
}

func NewMultiStore(backends []interfaces.ConfigStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStore{
		backends: backends,
		log:      logger,
	}
}

// Upsert succeeds if at least one available backend stored the record.
func (m *MultiStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	start := time.Now()
	var stored int
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Upsert(ctx, repoID, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store config to backend",
				slog.String("backend_name", backend.Name()),
				slog.Int64("repo_id", repoID),
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All backends failed to store config",
			slog.Int64("repo_id", repoID),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			errs = append(errs, interfaces.ErrBackendUnavailable)
		}
		return storeError(m.Name(), "upsert", errors.Join(errs...))
	}

	m.log.Debug("Stored config",
		slog.Int64("repo_id", repoID),
		slog.Int("backends", stored),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Get returns the record from the first backend that has it.
func (m *MultiStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	var errs []error
	var notFound bool

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}

		cfg, err := backend.Get(ctx, repoID)
		if err == nil {
			return cfg, nil
		}
		if errors.Is(err, interfaces.ErrConfigNotFound) {
			notFound = true
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to get config from backend",
			slog.String("backend_name", backend.Name()),
			"err", err)
	}

	if len(errs) == 0 && notFound {
		return nil, interfaces.ErrConfigNotFound
	}
	if len(errs) == 0 {
		errs = append(errs, interfaces.ErrBackendUnavailable)
	}
	return nil, storeError(m.Name(), "get", errors.Join(errs...))
}

// FindBySubscriptionRef queries backends in order until one answers.
func (m *MultiStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}

		configs, err := backend.FindBySubscriptionRef(ctx, ref)
		if err == nil {
			return configs, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to query backend",
			slog.String("backend_name", backend.Name()),
			slog.String("ref", ref),
			"err", err)
	}

	if len(errs) == 0 {
		errs = append(errs, interfaces.ErrBackendUnavailable)
	}
	return nil, storeError(m.Name(), "find", errors.Join(errs...))
}

// Available checks if any backend is available
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStore) Name() string {
	return "multi-store"
}

func (m *MultiStore) Close() error {
	var errs []error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}
