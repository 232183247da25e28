package events

import (
	"testing"

	"github.com/agrisync/agrisync/internal/connectivity"
	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventBus is a mock for EventBus.Bus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Subscribe(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeAsync(topic string, fn interface{}, transactional bool) error {
	args := m.Called(topic, fn, transactional)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeOnce(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeOnceAsync(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) Unsubscribe(topic string, handler interface{}) error {
	args := m.Called(topic, handler)
	return args.Error(0)
}

func (m *MockEventBus) Publish(topic string, args ...interface{}) {
	m.Called(append([]interface{}{topic}, args...)...)
}

func (m *MockEventBus) HasCallback(topic string) bool {
	args := m.Called(topic)
	return args.Bool(0)
}

func (m *MockEventBus) WaitAsync() {
	m.Called()
}

func TestNewSubscribers(t *testing.T) {
	log := logger.Mock()
	mockBus := new(MockEventBus)

	var connectivityHandler, syncHandler interface{}
	mockBus.On("Subscribe", connectivity.TopicChanged, mock.AnythingOfType("func(bool)")).
		Run(func(args mock.Arguments) {
			connectivityHandler = args.Get(1)
		}).
		Return(nil)
	mockBus.On("Subscribe", syncqueue.TopicSyncCompleted, mock.AnythingOfType("func(*domain.SyncSummary)")).
		Run(func(args mock.Arguments) {
			syncHandler = args.Get(1)
		}).
		Return(nil)

	_ = NewSubscribers(log, mockBus)

	mockBus.AssertCalled(t, "Subscribe", connectivity.TopicChanged, mock.AnythingOfType("func(bool)"))
	mockBus.AssertCalled(t, "Subscribe", syncqueue.TopicSyncCompleted, mock.AnythingOfType("func(*domain.SyncSummary)"))
	require.NotNil(t, connectivityHandler)
	require.NotNil(t, syncHandler)

	connFn, ok := connectivityHandler.(func(bool))
	require.True(t, ok, "captured handler is not of the expected type")
	assert.NotPanics(t, func() {
		connFn(true)
		connFn(false)
	})

	syncFn, ok := syncHandler.(func(*domain.SyncSummary))
	require.True(t, ok, "captured handler is not of the expected type")
	assert.NotPanics(t, func() {
		syncFn(&domain.SyncSummary{SyncedCount: 2, PendingCount: 1})
		syncFn(nil)
	})
}

func TestSubscriber_Register_SubscribeError(t *testing.T) {
	log := logger.Mock()
	mockBus := new(MockEventBus)

	mockBus.On("Subscribe", mock.Anything, mock.Anything).Return(assert.AnError)

	// errors are logged, never fatal
	assert.NotPanics(t, func() {
		_ = NewSubscribers(log, mockBus)
	})
	mockBus.AssertNumberOfCalls(t, "Subscribe", 2)
}
