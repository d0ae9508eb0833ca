package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) GetConfig(ctx context.Context, installationID int64, owner, repo string) (*interfaces.RepoConfig, error) {
	args := m.Called(ctx, installationID, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.RepoConfig), args.Error(1)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Clock: func() time.Time { return testNow },
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func templatesConfig() *interfaces.RepoConfig {
	return &interfaces.RepoConfig{
		SourceSets: []interfaces.SourceSet{
			{Name: "ci", Files: []string{"templates/*.yml"}},
			{Name: "docs", Files: []string{"docs/**/*.md", "README.md"}},
		},
	}
}

func templatesPush(commits ...interfaces.Commit) *interfaces.PushEvent {
	return &interfaces.PushEvent{
		DeliveryID:     "delivery-1",
		Ref:            "refs/heads/main",
		After:          "after-sha",
		InstallationID: 42,
		Repository: interfaces.Repository{
			ID:            100,
			Owner:         "acme",
			Name:          "templates",
			FullName:      "acme/templates",
			DefaultBranch: "main",
		},
		Commits: commits,
	}
}

func TestMatchPaths(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		paths    []string
		expected []string
	}{
		{
			name:     "single star stays in directory",
			patterns: []string{"templates/*.yml"},
			paths:    []string{"templates/build.yml", "templates/sub/deploy.yml", "src/main.go"},
			expected: []string{"templates/build.yml"},
		},
		{
			name:     "double star crosses directories",
			patterns: []string{"docs/**/*.md"},
			paths:    []string{"docs/intro.md", "docs/a/b/c.md", "docs/a/b/c.txt"},
			expected: []string{"docs/intro.md", "docs/a/b/c.md"},
		},
		{
			name:     "case sensitive",
			patterns: []string{"templates/*.yml"},
			paths:    []string{"Templates/build.yml", "templates/build.YML"},
			expected: nil,
		},
		{
			name:     "repeated path reported once",
			patterns: []string{"*.md", "README.md"},
			paths:    []string{"README.md", "README.md"},
			expected: []string{"README.md"},
		},
		{
			name:     "no patterns",
			patterns: nil,
			paths:    []string{"templates/build.yml"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchPaths(tt.patterns, tt.paths))
		})
	}
}

func TestHandlePush_NotDefaultBranch(t *testing.T) {
	resolver := &MockResolver{}
	store := &storage.MockConfigStore{}
	p := NewPlanner(resolver, store, testOptions())

	event := templatesPush(interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml"}})
	event.Ref = "refs/heads/feature"

	result, err := p.HandlePush(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, StateIgnored, result.State)
	assert.Equal(t, ReasonNotDefaultBranch, result.Reason)
	assert.Nil(t, result.Plan)
	assert.Equal(t, []State{StateReceived, StateSignatureChecked, StateEventClassified, StateIgnored}, result.Path)

	resolver.AssertNotCalled(t, "GetConfig", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePush_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	// acme/app subscribes to the ci group, acme/web to docs.
	require.NoError(t, store.Upsert(ctx, 7, interfaces.NewFullConfig(7, "acme/app",
		&interfaces.RepoConfig{ConfigSets: []string{"acme/templates/ci"}}, testNow)))
	require.NoError(t, store.Upsert(ctx, 8, interfaces.NewFullConfig(8, "acme/web",
		&interfaces.RepoConfig{ConfigSets: []string{"acme/templates/docs"}}, testNow)))

	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(templatesConfig(), nil)

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(ctx, templatesPush(
		interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml", "src/main.go"}},
	))
	require.NoError(t, err)

	assert.Equal(t, StatePlanEmitted, result.State)
	assert.Empty(t, result.Reason)
	assert.Equal(t, []State{
		StateReceived, StateSignatureChecked, StateEventClassified, StateConfigResolved,
		StateConfigPersisted, StateChangesClassified, StateSubscribersQueried, StatePlanEmitted,
	}, result.Path)

	require.NotNil(t, result.Plan)
	assert.Equal(t, "acme/templates", result.Plan.Repository)
	assert.Equal(t, "c1", result.Plan.HeadCommit)
	require.Len(t, result.Plan.Entries, 1)

	entry := result.Plan.Entries[0]
	assert.Equal(t, "ci", entry.Group)
	assert.Equal(t, "acme/templates/ci", entry.GroupRef)
	assert.Equal(t, "c1", entry.CommitID)
	assert.Equal(t, []string{"templates/build.yml"}, entry.MatchedPaths)
	assert.Equal(t, []interfaces.Subscriber{{RepoID: 7, Repository: "acme/app"}}, entry.Subscribers)

	// The producer's own config is persisted.
	stored, err := store.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "acme/templates", stored.Repository)
	assert.Len(t, stored.SourceSets, 2)
	assert.Equal(t, testNow, stored.UpdatedAt)

	// Redelivery gives the same plan and leaves one record.
	again, err := p.HandlePush(ctx, templatesPush(
		interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml", "src/main.go"}},
	))
	require.NoError(t, err)
	assert.Equal(t, result.Plan, again.Plan)
}

func TestHandlePush_NoConfig(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(nil, nil)
	store := &storage.MockConfigStore{}

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush())
	require.NoError(t, err)
	assert.Equal(t, StateIgnored, result.State)
	assert.Equal(t, ReasonNoConfig, result.Reason)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePush_ResolverError(t *testing.T) {
	resolverErr := errors.New("exchange token: 401")
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(nil, resolverErr)
	store := &storage.MockConfigStore{}

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, resolverErr)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePush_ConsumerOnly(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").
		Return(&interfaces.RepoConfig{ConfigSets: []string{"acme/base/ci"}}, nil)

	store := &storage.MockConfigStore{}
	store.On("Upsert", mock.Anything, int64(100), mock.MatchedBy(func(cfg interfaces.FullConfig) bool {
		return cfg.RepoID == 100 && cfg.Subscribes("acme/base/ci")
	})).Return(nil)

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush(
		interfaces.Commit{ID: "c1", Added: []string{"templates/build.yml"}},
	))
	require.NoError(t, err)
	assert.Equal(t, StateIgnored, result.State)
	assert.Equal(t, ReasonNotProducer, result.Reason)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "FindBySubscriptionRef", mock.Anything, mock.Anything)
}

func TestHandlePush_StoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(store *storage.MockConfigStore)
		wantOp string
	}{
		{
			name: "upsert fails",
			setup: func(store *storage.MockConfigStore) {
				store.On("Upsert", mock.Anything, int64(100), mock.Anything).Return(errors.New("connection refused"))
			},
			wantOp: "upsert",
		},
		{
			name: "find fails",
			setup: func(store *storage.MockConfigStore) {
				store.On("Upsert", mock.Anything, int64(100), mock.Anything).Return(nil)
				store.On("FindBySubscriptionRef", mock.Anything, "acme/templates/ci").Return(nil, errors.New("timeout"))
			},
			wantOp: "find",
		},
		{
			name: "typed error passes through",
			setup: func(store *storage.MockConfigStore) {
				store.On("Upsert", mock.Anything, int64(100), mock.Anything).
					Return(&storage.StoreError{Backend: "redis-localhost", Op: "upsert tx", Err: interfaces.ErrBackendUnavailable})
			},
			wantOp: "upsert tx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &MockResolver{}
			resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(templatesConfig(), nil)
			store := &storage.MockConfigStore{StoreName: "mock-store"}
			tt.setup(store)

			p := NewPlanner(resolver, store, testOptions())
			result, err := p.HandlePush(context.Background(), templatesPush(
				interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml"}},
			))
			assert.Nil(t, result)

			var storeErr *storage.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, tt.wantOp, storeErr.Op)
		})
	}
}

func TestHandlePush_SubscriberLookupMemoized(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(templatesConfig(), nil)

	subscribers := []interfaces.FullConfig{
		interfaces.NewFullConfig(7, "acme/app", &interfaces.RepoConfig{ConfigSets: []string{"acme/templates/ci"}}, testNow),
	}
	store := &storage.MockConfigStore{}
	store.On("Upsert", mock.Anything, int64(100), mock.Anything).Return(nil)
	store.On("FindBySubscriptionRef", mock.Anything, "acme/templates/ci").Return(subscribers, nil).Once()
	store.On("FindBySubscriptionRef", mock.Anything, "acme/templates/docs").Return([]interfaces.FullConfig{}, nil).Once()

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush(
		interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml"}},
		interfaces.Commit{ID: "c2", Added: []string{"templates/lint.yml", "docs/guide/setup.md"}},
		interfaces.Commit{ID: "c3", Removed: []string{"templates/old.yml"}},
	))
	require.NoError(t, err)
	require.Len(t, result.Plan.Entries, 4)

	store.AssertNumberOfCalls(t, "FindBySubscriptionRef", 2)
	assert.Equal(t, "c3", result.Plan.HeadCommit)
	assert.Equal(t, []string{"acme/app"}, result.Plan.SubscriberNames("ci"))

	// Groups without subscribers still appear in the plan.
	docs := result.Plan.Entries[2]
	assert.Equal(t, "docs", docs.Group)
	assert.Equal(t, "c2", docs.CommitID)
	assert.Empty(t, docs.Subscribers)
}

func TestHandlePush_DeduplicatePaths(t *testing.T) {
	commits := []interfaces.Commit{
		{ID: "c1", Modified: []string{"templates/build.yml"}},
		{ID: "c2", Modified: []string{"templates/build.yml"}},
		{ID: "c3", Modified: []string{"templates/build.yml", "templates/lint.yml"}},
	}

	tests := []struct {
		name        string
		dedup       bool
		wantCommits []string
		wantPaths   [][]string
	}{
		{
			name:        "per commit attribution",
			dedup:       false,
			wantCommits: []string{"c1", "c2", "c3"},
			wantPaths: [][]string{
				{"templates/build.yml"},
				{"templates/build.yml"},
				{"templates/build.yml", "templates/lint.yml"},
			},
		},
		{
			name:        "deduplicated",
			dedup:       true,
			wantCommits: []string{"c1", "c3"},
			wantPaths: [][]string{
				{"templates/build.yml"},
				{"templates/lint.yml"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &MockResolver{}
			resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(templatesConfig(), nil)

			opts := testOptions()
			opts.DeduplicatePaths = tt.dedup
			p := NewPlanner(resolver, storage.NewMemoryStore(), opts)

			result, err := p.HandlePush(context.Background(), templatesPush(commits...))
			require.NoError(t, err)

			var gotCommits []string
			var gotPaths [][]string
			for _, entry := range result.Plan.Entries {
				gotCommits = append(gotCommits, entry.CommitID)
				gotPaths = append(gotPaths, entry.MatchedPaths)
			}
			assert.Equal(t, tt.wantCommits, gotCommits)
			assert.Equal(t, tt.wantPaths, gotPaths)
		})
	}
}

func TestHandlePush_NoAffectedGroups(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(templatesConfig(), nil)

	p := NewPlanner(resolver, storage.NewMemoryStore(), testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush(
		interfaces.Commit{ID: "c1", Modified: []string{"src/main.go"}},
	))
	require.NoError(t, err)
	assert.Equal(t, StatePlanEmitted, result.State)
	assert.Equal(t, ReasonNoChanges, result.Reason)
	assert.True(t, result.Plan.Empty())
}

func TestHandlePush_InvalidPatternSkipped(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("GetConfig", mock.Anything, int64(42), "acme", "templates").Return(&interfaces.RepoConfig{
		SourceSets: []interfaces.SourceSet{{Name: "ci", Files: []string{"templates/[.yml", "templates/*.yml"}}},
	}, nil)

	p := NewPlanner(resolver, storage.NewMemoryStore(), testOptions())
	result, err := p.HandlePush(context.Background(), templatesPush(
		interfaces.Commit{ID: "c1", Modified: []string{"templates/build.yml"}},
	))
	require.NoError(t, err)
	require.Len(t, result.Plan.Entries, 1)
	assert.Equal(t, []string{"templates/build.yml"}, result.Plan.Entries[0].MatchedPaths)
}

func TestHandlePush_MalformedRepository(t *testing.T) {
	resolver := &MockResolver{}
	event := templatesPush()
	event.Repository.FullName = ""
	event.Repository.Owner = ""

	p := NewPlanner(resolver, &storage.MockConfigStore{}, testOptions())
	result, err := p.HandlePush(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, StateIgnored, result.State)
	assert.Equal(t, ReasonMalformedRepository, result.Reason)
	resolver.AssertNotCalled(t, "GetConfig", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePush_MissingRepositoryID(t *testing.T) {
	resolver := &MockResolver{}
	store := &storage.MockConfigStore{}
	event := templatesPush(interfaces.Commit{ID: "c1", Added: []string{"templates/build.yml"}})
	event.Repository.ID = 0

	p := NewPlanner(resolver, store, testOptions())
	result, err := p.HandlePush(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, StateIgnored, result.State)
	assert.Equal(t, ReasonMissingRepositoryID, result.Reason)
	resolver.AssertNotCalled(t, "GetConfig", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestResult(t *testing.T) {
	r := NewResult()
	assert.Equal(t, StateReceived, r.State)
	assert.False(t, r.State.Terminal())

	r.Reject(ReasonInvalidSignature)
	assert.Equal(t, StateRejected, r.State)
	assert.True(t, r.State.Terminal())
	assert.Equal(t, []State{StateReceived, StateRejected}, r.Path)

	r = NewResult().SignatureChecked().Ignore(ReasonUnsupportedEvent)
	assert.Equal(t, []State{StateReceived, StateSignatureChecked, StateIgnored}, r.Path)
	assert.Equal(t, ReasonUnsupportedEvent, r.Reason)
}

func TestLogExecutor(t *testing.T) {
	exec := NewLogExecutor(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.NoError(t, exec.Execute(context.Background(), nil))
	assert.NoError(t, exec.Execute(context.Background(), &interfaces.Plan{
		Repository: "acme/templates",
		Entries: []interfaces.PlanEntry{
			{Group: "ci", GroupRef: "acme/templates/ci", CommitID: "c1", MatchedPaths: []string{"templates/build.yml"},
				Subscribers: []interfaces.Subscriber{{RepoID: 7, Repository: "acme/app"}}},
			{Group: "docs", GroupRef: "acme/templates/docs", CommitID: "c1"},
		},
	}))
}
