// Package planner classifies push events against the producer's declared
// source sets and plans which subscriber repositories must receive the
// changed files.
//
// Each commit of a push is classified on its own: a path changed by two
// commits appears in an entry for each, unless Options.DeduplicatePaths is
// set. Matching uses doublestar globs, so "**" crosses directory boundaries
// and matching is case-sensitive.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/storage"
)

// ConfigResolver locates the configuration document of a repository.
// *configresolver.Resolver implements it.
type ConfigResolver interface {
	GetConfig(ctx context.Context, installationID int64, owner, repo string) (*interfaces.RepoConfig, error)
}

// Executor carries out emitted plans.
type Executor = interfaces.PlanExecutor

type Options struct {
	// DeduplicatePaths reports a path only for the first commit of a push
	// that changed it, per source set.
	DeduplicatePaths bool

	// Clock stamps persisted records. Defaults to time.Now.
	Clock func() time.Time
	Log   *slog.Logger
}

type Planner struct {
	resolver ConfigResolver
	store    interfaces.ConfigStore
	dedup    bool
	clock    func() time.Time
	log      *slog.Logger
}

func NewPlanner(resolver ConfigResolver, store interfaces.ConfigStore, opts Options) *Planner {
	p := &Planner{
		resolver: resolver,
		store:    store,
		dedup:    opts.DeduplicatePaths,
		clock:    opts.Clock,
		log:      opts.Log,
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// HandlePush plans propagation for a push whose signature the caller has
// already verified. Pushes to other branches are ignored before any fetch
// or write. Credential and store failures are returned as errors; an absent
// or unreadable configuration ends in StateIgnored.
func (p *Planner) HandlePush(ctx context.Context, event *interfaces.PushEvent) (*Result, error) {
	if event == nil {
		return nil, errors.New("planner: nil push event")
	}

	result := NewResult().SignatureChecked()
	result.advance(StateEventClassified)

	log := p.log.With(
		slog.String("delivery", event.DeliveryID),
		slog.String("repository", event.RepositoryName()),
		slog.String("ref", event.Ref))

	if !event.TargetsDefaultBranch() {
		log.Debug("Ignoring push outside the default branch",
			slog.String("default_branch", event.Repository.DefaultBranch))
		return result.Ignore(ReasonNotDefaultBranch), nil
	}

	repository := event.RepositoryName()
	owner, name, err := interfaces.SplitRepository(repository)
	if err != nil {
		log.Warn("Ignoring push with malformed repository", "err", err)
		return result.Ignore(ReasonMalformedRepository), nil
	}
	if event.Repository.ID <= 0 {
		log.Warn("Ignoring push without repository id", "repository", repository)
		return result.Ignore(ReasonMissingRepositoryID), nil
	}

	cfg, err := p.resolver.GetConfig(ctx, event.InstallationID, owner, name)
	if err != nil {
		return nil, fmt.Errorf("resolving config for %s: %w", repository, err)
	}
	if cfg == nil {
		return result.Ignore(ReasonNoConfig), nil
	}
	result.advance(StateConfigResolved)

	record := interfaces.NewFullConfig(event.Repository.ID, repository, cfg, p.clock())
	if err := p.store.Upsert(ctx, event.Repository.ID, record); err != nil {
		return nil, asStoreError(p.store.Name(), "upsert", err)
	}
	result.advance(StateConfigPersisted)
	log.Info("Persisted repository config",
		slog.Int64("repo_id", event.Repository.ID),
		slog.Int("source_sets", len(cfg.SourceSets)),
		slog.Int("config_sets", len(cfg.ConfigSets)))

	if !cfg.IsProducer() {
		return result.Ignore(ReasonNotProducer), nil
	}

	affected := p.classify(log, repository, cfg.SourceSets, event.Commits)
	result.advance(StateChangesClassified)

	plan := &interfaces.Plan{
		DeliveryID: event.DeliveryID,
		Repository: repository,
		Ref:        event.Ref,
		HeadCommit: event.HeadCommit(),
		Entries:    []interfaces.PlanEntry{},
	}

	// Several commits touching one group share a single store query.
	subscribers := make(map[string][]interfaces.Subscriber)
	for _, c := range affected {
		subs, ok := subscribers[c.ref]
		if !ok {
			configs, err := p.store.FindBySubscriptionRef(ctx, c.ref)
			if err != nil {
				return nil, asStoreError(p.store.Name(), "find", err)
			}
			subs = toSubscribers(configs)
			subscribers[c.ref] = subs
		}

		plan.Entries = append(plan.Entries, interfaces.PlanEntry{
			Group:        c.group,
			GroupRef:     c.ref,
			CommitID:     c.commitID,
			MatchedPaths: c.paths,
			Subscribers:  subs,
		})
	}
	result.advance(StateSubscribersQueried)

	result.advance(StatePlanEmitted)
	result.Plan = plan
	if plan.Empty() {
		result.Reason = ReasonNoChanges
	}

	log.Info("Emitted propagation plan",
		slog.Int("commits", len(event.Commits)),
		slog.Int("entries", len(plan.Entries)),
		slog.Int("groups", len(subscribers)))
	return result, nil
}

// change is one source set affected by one commit.
type change struct {
	group    string
	ref      string
	commitID string
	paths    []string
}

func (p *Planner) classify(log *slog.Logger, repository string, sets []interfaces.SourceSet, commits []interfaces.Commit) []change {
	type setMatcher struct {
		name     string
		ref      string
		patterns []string
	}

	matchers := make([]setMatcher, 0, len(sets))
	for _, set := range sets {
		ref, err := interfaces.NewSubscriptionRef(repository, set.Name)
		if err != nil {
			log.Warn("Skipping source set", slog.String("source_set", set.Name), "err", err)
			continue
		}

		m := setMatcher{name: set.Name, ref: ref.String()}
		for _, pattern := range set.Files {
			if !doublestar.ValidatePattern(pattern) {
				log.Warn("Skipping invalid pattern",
					slog.String("source_set", set.Name),
					slog.String("pattern", pattern))
				continue
			}
			m.patterns = append(m.patterns, pattern)
		}
		matchers = append(matchers, m)
	}

	// seen[ref][path] is only consulted when deduplicating.
	seen := make(map[string]map[string]struct{})

	var changes []change
	for _, commit := range commits {
		paths := commit.ChangedPaths()
		for _, m := range matchers {
			matched := MatchPaths(m.patterns, paths)
			if p.dedup {
				matched = dropSeen(seen, m.ref, matched)
			}
			if len(matched) == 0 {
				continue
			}
			changes = append(changes, change{
				group:    m.name,
				ref:      m.ref,
				commitID: commit.ID,
				paths:    matched,
			})
		}
	}
	return changes
}

// MatchPaths returns the paths, in order and without repeats, that match at
// least one pattern.
func MatchPaths(patterns, paths []string) []string {
	var matched []string
	included := make(map[string]struct{})
	for _, path := range paths {
		if _, ok := included[path]; ok {
			continue
		}
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, path); ok {
				matched = append(matched, path)
				included[path] = struct{}{}
				break
			}
		}
	}
	return matched
}

func dropSeen(seen map[string]map[string]struct{}, ref string, paths []string) []string {
	if seen[ref] == nil {
		seen[ref] = make(map[string]struct{})
	}
	var fresh []string
	for _, path := range paths {
		if _, ok := seen[ref][path]; ok {
			continue
		}
		seen[ref][path] = struct{}{}
		fresh = append(fresh, path)
	}
	return fresh
}

func toSubscribers(configs []interfaces.FullConfig) []interfaces.Subscriber {
	subs := make([]interfaces.Subscriber, 0, len(configs))
	for _, cfg := range configs {
		subs = append(subs, interfaces.Subscriber{RepoID: cfg.RepoID, Repository: cfg.Repository})
	}
	return subs
}

func asStoreError(backend, op string, err error) error {
	var storeErr *storage.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &storage.StoreError{Backend: backend, Op: op, Err: err}
}
