package interfaces

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceSet is a named group of glob patterns declared by a producer
// repository. Files matching any pattern belong to the group.
type SourceSet struct {
	Name  string   `yaml:"name" json:"name"`
	Files []string `yaml:"files" json:"files"`
}

// RepoConfig is the freshly parsed configuration document of a repository,
// before the repository identifier is attached.
type RepoConfig struct {
	SourceSets []SourceSet `yaml:"sourceSets" json:"sourceSets"`
	ConfigSets []string    `yaml:"configSets" json:"configSets"`
}

// IsProducer reports whether the configuration declares any source set.
func (c *RepoConfig) IsProducer() bool {
	return c != nil && len(c.SourceSets) > 0
}

// FullConfig is the durable record of a repository configuration, keyed by
// the numeric repository id.
type FullConfig struct {
	RepoID     int64       `json:"repoId"`
	Repository string      `json:"repository"`
	SourceSets []SourceSet `json:"sourceSets"`
	ConfigSets []string    `json:"configSets"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// NewFullConfig attaches the repository identity to a fetched configuration.
func NewFullConfig(repoID int64, repository string, cfg *RepoConfig, now time.Time) FullConfig {
	full := FullConfig{
		RepoID:     repoID,
		Repository: repository,
		SourceSets: []SourceSet{},
		ConfigSets: []string{},
		UpdatedAt:  now.UTC(),
	}
	if cfg != nil {
		full.SourceSets = append(full.SourceSets, cfg.SourceSets...)
		full.ConfigSets = append(full.ConfigSets, cfg.ConfigSets...)
	}
	return full
}

// Subscribes reports whether the record declares the given subscription reference.
func (c FullConfig) Subscribes(ref string) bool {
	for _, configSet := range c.ConfigSets {
		if configSet == ref {
			return true
		}
	}
	return false
}

// Validate checks the fields required to store and index the record.
func (c FullConfig) Validate() error {
	if c.RepoID <= 0 {
		return errors.New("invalid repository id")
	}
	if _, _, err := SplitRepository(c.Repository); err != nil {
		return err
	}
	return nil
}

// SubscriptionRef identifies a producer repository and one of its source sets.
// Its string form is "owner/repo/group".
type SubscriptionRef struct {
	Owner string
	Repo  string
	Group string
}

// NewSubscriptionRef builds the fully-qualified reference of a source set.
func NewSubscriptionRef(repository, group string) (SubscriptionRef, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return SubscriptionRef{}, err
	}
	if group == "" {
		return SubscriptionRef{}, errors.New("empty source set name")
	}
	return SubscriptionRef{Owner: owner, Repo: repo, Group: group}, nil
}

// ParseSubscriptionRef parses an "owner/repo/group" reference. The group
// part may itself contain slashes.
func ParseSubscriptionRef(ref string) (SubscriptionRef, error) {
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return SubscriptionRef{}, fmt.Errorf("invalid subscription reference %q: want owner/repo/group", ref)
	}
	return SubscriptionRef{Owner: parts[0], Repo: parts[1], Group: parts[2]}, nil
}

// String returns the "owner/repo/group" form.
func (r SubscriptionRef) String() string {
	return r.Owner + "/" + r.Repo + "/" + r.Group
}

// Repository returns the "owner/repo" part of the reference.
func (r SubscriptionRef) Repository() string {
	return r.Owner + "/" + r.Repo
}

// SplitRepository splits an "owner/name" repository identifier.
func SplitRepository(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository name %q: want owner/name", fullName)
	}
	return owner, name, nil
}
