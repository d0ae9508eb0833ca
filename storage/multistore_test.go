package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStore_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.ConfigStore
			for i, available := range tt.backends {
				mockStore := &MockConfigStore{StoreName: fmt.Sprintf("mock-%d", i)}
				mockStore.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStore)
			}

			multi := NewMultiStore(backends, testLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, backend := range backends {
				backend.(*MockConfigStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_Get(t *testing.T) {
	record := &interfaces.FullConfig{RepoID: 7, Repository: "acme/app"}
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.ConfigStore
		expected      *interfaces.FullConfig
		expectedError error
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, int64(7)).Return(record, nil)

				// Not consulted once the first backend answers.
				mock2 := &MockConfigStore{StoreName: "mock-B"}

				return []interfaces.ConfigStore{mock1, mock2}
			},
			expected: record,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, int64(7)).Return(nil, testErr)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, int64(7)).Return(record, nil)

				return []interfaces.ConfigStore{mock1, mock2}
			},
			expected: record,
		},
		{
			name: "not found everywhere",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, int64(7)).Return(nil, interfaces.ErrConfigNotFound)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(false)

				return []interfaces.ConfigStore{mock1, mock2}
			},
			expectedError: interfaces.ErrConfigNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, int64(7)).Return(nil, testErr)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, int64(7)).Return(nil, interfaces.ErrConfigNotFound)

				return []interfaces.ConfigStore{mock1, mock2}
			},
			expectedError: testErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStore(backends, testLogger())

			cfg, err := multi.Get(context.Background(), 7)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, cfg)

			for _, backend := range backends {
				backend.(*MockConfigStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_Upsert(t *testing.T) {
	record := interfaces.FullConfig{RepoID: 7, Repository: "acme/app", ConfigSets: []string{"acme/templates/ci"}}
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.ConfigStore
		expectedError bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upsert", mock.Anything, int64(7), record).Return(nil)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upsert", mock.Anything, int64(7), record).Return(nil)

				return []interfaces.ConfigStore{mock1, mock2}
			},
		},
		{
			name: "some backends fail",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upsert", mock.Anything, int64(7), record).Return(testErr)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upsert", mock.Anything, int64(7), record).Return(nil)

				return []interfaces.ConfigStore{mock1, mock2}
			},
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upsert", mock.Anything, int64(7), record).Return(testErr)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upsert", mock.Anything, int64(7), record).Return(testErr)

				return []interfaces.ConfigStore{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockConfigStore{StoreName: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upsert", mock.Anything, int64(7), record).Return(nil)

				return []interfaces.ConfigStore{mock1, mock2}
			},
		},
		{
			name: "no backend available",
			setupMocks: func() []interfaces.ConfigStore {
				mock1 := &MockConfigStore{StoreName: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)
				return []interfaces.ConfigStore{mock1}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStore(backends, testLogger())

			err := multi.Upsert(context.Background(), 7, record)
			if tt.expectedError {
				var storeErr *StoreError
				assert.ErrorAs(t, err, &storeErr)
			} else {
				assert.NoError(t, err)
			}

			for _, backend := range backends {
				backend.(*MockConfigStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_FindBySubscriptionRef(t *testing.T) {
	matches := []interfaces.FullConfig{{RepoID: 9, Repository: "acme/app"}}

	mock1 := &MockConfigStore{StoreName: "mock-A"}
	mock1.On("Available", mock.Anything).Return(true)
	mock1.On("FindBySubscriptionRef", mock.Anything, "acme/templates/ci").Return(nil, errors.New("down"))

	mock2 := &MockConfigStore{StoreName: "mock-B"}
	mock2.On("Available", mock.Anything).Return(true)
	mock2.On("FindBySubscriptionRef", mock.Anything, "acme/templates/ci").Return(matches, nil)

	multi := NewMultiStore([]interfaces.ConfigStore{mock1, mock2}, testLogger())
	found, err := multi.FindBySubscriptionRef(context.Background(), "acme/templates/ci")
	assert.NoError(t, err)
	assert.Equal(t, matches, found)

	mock1.AssertExpectations(t)
	mock2.AssertExpectations(t)
}
