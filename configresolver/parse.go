package configresolver

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/templatizer-backend/interfaces"
	"gopkg.in/yaml.v3"
)

// ErrEmptyConfig is returned for a configuration document with no content.
var ErrEmptyConfig = errors.New("empty configuration document")

// ParseConfig decodes a YAML configuration document. Unknown keys are
// ignored and both lists default to empty.
func ParseConfig(data []byte) (*interfaces.RepoConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyConfig
	}

	cfg := &interfaces.RepoConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.SourceSets == nil {
		cfg.SourceSets = []interfaces.SourceSet{}
	}
	if cfg.ConfigSets == nil {
		cfg.ConfigSets = []string{}
	}
	return cfg, nil
}

// DecodeContent decodes the content field of a contents response. GitHub
// wraps the base64 body at 60 columns.
func DecodeContent(encoding, content string) ([]byte, error) {
	switch encoding {
	case "base64", "":
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(content), ""))
	if err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	return data, nil
}
