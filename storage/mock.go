package storage

import (
	"context"

	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockConfigStore mocks the interfaces.ConfigStore interface
type MockConfigStore struct {
	mock.Mock
	StoreName string
}

// Upsert mocks the Upsert method
func (m *MockConfigStore) Upsert(ctx context.Context, repoID int64, cfg interfaces.FullConfig) error {
	args := m.Called(ctx, repoID, cfg)
	return args.Error(0)
}

// Get mocks the Get method
func (m *MockConfigStore) Get(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	args := m.Called(ctx, repoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FullConfig), args.Error(1)
}

// FindBySubscriptionRef mocks the FindBySubscriptionRef method
func (m *MockConfigStore) FindBySubscriptionRef(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.FullConfig), args.Error(1)
}

// Available mocks the Available method
func (m *MockConfigStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockConfigStore) Name() string {
	if m.StoreName == "" {
		return "mock"
	}
	return m.StoreName
}

func (m *MockConfigStore) Close() error {
	return nil
}
