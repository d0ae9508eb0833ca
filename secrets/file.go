package secrets

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

// FileProvider reads each secret from a file named after it inside baseDir.
// This matches how Kubernetes and Docker mount secrets into containers.
type FileProvider struct {
	baseDir string
	log     *slog.Logger
}

// NewFileProvider creates a provider rooted at baseDir.
func NewFileProvider(baseDir string, log *slog.Logger) (*FileProvider, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path %s is not a directory", baseDir)
	}
	return &FileProvider{baseDir: baseDir, log: log}, nil
}

func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	path := filepath.Join(p.baseDir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	p.log.Debug("Read secret from file", slog.String("name", name), slog.Int("size", len(data)))
	return string(data), nil
}

func (p *FileProvider) Name() string {
	return "file-" + filepath.Base(p.baseDir)
}
