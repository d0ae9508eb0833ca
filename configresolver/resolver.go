// Package configresolver locates and decodes repository configuration
// documents. A repository's own document wins over the organization-wide
// one in the owner's .github repository.
package configresolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruteri/templatizer-backend/githubapi"
	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/metrics"
)

const (
	// DefaultConfigPath is the well-known location of the document.
	DefaultConfigPath = ".github/templatizer.yml"

	// DefaultOrgConfigRepo is the organization fallback repository.
	DefaultOrgConfigRepo = ".github"
)

// TokenSource hands out installation access tokens.
type TokenSource interface {
	GetAccessToken(ctx context.Context, installationID int64) (string, error)
}

// ContentsAPI reads repository contents. *githubapi.Client implements it.
type ContentsAPI interface {
	ContentsURL(owner, repo, path string) string
	GetContents(ctx context.Context, token, rawURL string) (*githubapi.Contents, error)
}

// Options tune where the resolver looks.
type Options struct {
	ConfigPath    string
	OrgConfigRepo string
	Metrics       *metrics.Collectors
	Log           *slog.Logger
}

type Resolver struct {
	tokens        TokenSource
	api           ContentsAPI
	configPath    string
	orgConfigRepo string
	metrics       *metrics.Collectors
	log           *slog.Logger
}

func NewResolver(tokens TokenSource, api ContentsAPI, opts Options) *Resolver {
	r := &Resolver{
		tokens:        tokens,
		api:           api,
		configPath:    opts.ConfigPath,
		orgConfigRepo: opts.OrgConfigRepo,
		metrics:       opts.Metrics,
		log:           opts.Log,
	}
	if r.configPath == "" {
		r.configPath = DefaultConfigPath
	}
	if r.orgConfigRepo == "" {
		r.orgConfigRepo = DefaultOrgConfigRepo
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Locations returns the contents URLs consulted for owner/repo, in order.
func (r *Resolver) Locations(owner, repo string) []string {
	return []string{
		r.api.ContentsURL(owner, repo, r.configPath),
		r.api.ContentsURL(owner, r.orgConfigRepo, r.configPath),
	}
}

// GetConfig returns the first configuration found for owner/repo, or nil
// when neither location yields one. Only credential failures are errors.
func (r *Resolver) GetConfig(ctx context.Context, installationID int64, owner, repo string) (*interfaces.RepoConfig, error) {
	for _, location := range r.Locations(owner, repo) {
		cfg, err := r.GetConfigByURL(ctx, installationID, location)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	r.log.Info("No configuration found",
		slog.String("owner", owner),
		slog.String("repo", repo))
	return nil, nil
}

// GetConfigByURL fetches and decodes the document at one contents URL.
// Non-success responses and undecodable documents yield nil, nil.
func (r *Resolver) GetConfigByURL(ctx context.Context, installationID int64, url string) (*interfaces.RepoConfig, error) {
	token, err := r.tokens.GetAccessToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("configresolver: empty access token")
	}

	contents, err := r.api.GetContents(ctx, token, url)
	if err != nil {
		outcome := "error"
		if githubapi.IsNotFound(err) {
			outcome = "not_found"
		}
		r.metrics.ConfigFetches.WithLabelValues(outcome).Inc()
		r.log.Warn("Request for config failed",
			slog.String("url", url),
			slog.Int("status_code", githubapi.StatusCode(err)),
			"err", err)
		return nil, nil
	}

	data, err := DecodeContent(contents.Encoding, contents.Content)
	if err != nil {
		r.metrics.ConfigFetches.WithLabelValues("invalid").Inc()
		r.log.Warn("Could not decode config", slog.String("url", url), "err", err)
		return nil, nil
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		r.metrics.ConfigFetches.WithLabelValues("invalid").Inc()
		r.log.Warn("Could not parse config", slog.String("url", url), "err", err)
		return nil, nil
	}

	r.metrics.ConfigFetches.WithLabelValues("found").Inc()
	r.log.Debug("Resolved config",
		slog.String("url", url),
		slog.Int("source_sets", len(cfg.SourceSets)),
		slog.Int("config_sets", len(cfg.ConfigSets)))
	return cfg, nil
}
