package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/ruteri/templatizer-backend/interfaces"
)

// prepareRecord binds cfg to repoID and normalizes it for storage.
func prepareRecord(repoID int64, cfg interfaces.FullConfig) (interfaces.FullConfig, error) {
	if cfg.RepoID == 0 {
		cfg.RepoID = repoID
	}
	if cfg.RepoID != repoID {
		return cfg, fmt.Errorf("record repository id %d does not match key %d", cfg.RepoID, repoID)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.SourceSets == nil {
		cfg.SourceSets = []interfaces.SourceSet{}
	}
	cfg.ConfigSets = normalizeRefs(cfg.ConfigSets)
	return cfg, nil
}

// normalizeRefs drops blank and repeated subscription references, keeping
// first-seen order. The input slice is not modified.
func normalizeRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" || slices.Contains(out, ref) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func encodeRecord(cfg interfaces.FullConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

// decodeRecord parses a stored document. Documents that do not decode or
// lack a valid identity are reported as malformed.
func decodeRecord(data []byte) (interfaces.FullConfig, error) {
	var cfg interfaces.FullConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("malformed record: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("malformed record: %w", err)
	}
	return cfg, nil
}

// droppedRefs returns the references in previous that current no longer holds.
func droppedRefs(previous, current []string) []string {
	var dropped []string
	for _, ref := range previous {
		if !slices.Contains(current, ref) && !slices.Contains(dropped, ref) {
			dropped = append(dropped, ref)
		}
	}
	return dropped
}

func sortByRepoID(configs []interfaces.FullConfig) {
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].RepoID < configs[j].RepoID
	})
}

func formatRepoID(repoID int64) string {
	return strconv.FormatInt(repoID, 10)
}
