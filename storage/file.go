package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// FileStore implements a config store using the local file system.
// Each record is a JSON document named after the repository id.
type FileStore struct {
	baseDir     string
	configDir   string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory layout if it doesn't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	configDir := filepath.Join(baseDir, "configs")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create configs directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		configDir:   configDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

func (b *FileStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	record, err := prepareRecord(repoID, cfg)
	if err != nil {
		return storeError(b.Name(), "upsert", err)
	}
	data, err := encodeRecord(record)
	if err != nil {
		return storeError(b.Name(), "upsert", err)
	}

	filePath := b.recordPath(repoID)

	// Write to a temporary file first so readers never see a partial record.
	tmp, err := os.CreateTemp(b.configDir, ".tmp-*")
	if err != nil {
		return storeError(b.Name(), "upsert", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storeError(b.Name(), "upsert", err)
	}
	if err := tmp.Close(); err != nil {
		return storeError(b.Name(), "upsert", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return storeError(b.Name(), "upsert", err)
	}

	b.log.Debug("Stored config in file",
		slog.String("path", filePath),
		slog.Int64("repo_id", repoID))
	return nil
}

func (b *FileStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	filePath := b.recordPath(repoID)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrConfigNotFound
	}
	if err != nil {
		return nil, storeError(b.Name(), "get", err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, storeError(b.Name(), "get", err)
	}
	return &record, nil
}

// FindBySubscriptionRef scans every record in the directory.
func (b *FileStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	entries, err := os.ReadDir(b.configDir)
	if err != nil {
		return nil, storeError(b.Name(), "find", err)
	}

	result := []interfaces.FullConfig{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, storeError(b.Name(), "find", err)
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		filePath := filepath.Join(b.configDir, entry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, storeError(b.Name(), "find", err)
		}
		record, err := decodeRecord(data)
		if err != nil {
			b.log.Warn("Skipping malformed config record",
				slog.String("path", filePath),
				"err", err)
			continue
		}
		if record.Subscribes(ref) {
			result = append(result, record)
		}
	}

	sortByRepoID(result)
	return result, nil
}

// Available checks if the file store is accessible by verifying the base directory exists.
func (b *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(b.configDir)
	if err != nil {
		b.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

func (b *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *FileStore) Close() error {
	return nil
}

// LocationURI returns the URI that identifies this store.
func (b *FileStore) LocationURI() string {
	return b.locationURI
}

func (b *FileStore) recordPath(repoID int64) string {
	return filepath.Join(b.configDir, formatRepoID(repoID)+".json")
}
