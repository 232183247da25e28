package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(cfg *domain.Config) *Monitor {
	if cfg == nil {
		cfg = &domain.Config{}
	}
	return NewMonitor(logger.Mock(), cfg, EventBus.New())
}

func TestMonitor_OfflineBeforeFirstObservation(t *testing.T) {
	m := newTestMonitor(nil)
	assert.False(t, m.Online())
}

func TestMonitor_FirstObservationDoesNotNotify(t *testing.T) {
	m := newTestMonitor(nil)

	notified := 0
	m.Subscribe(func(online bool) { notified++ })

	m.SetOnline(true)

	assert.True(t, m.Online())
	assert.Zero(t, notified, "first observation must not fire a transition")
}

func TestMonitor_TransitionNotifiesInRegistrationOrder(t *testing.T) {
	m := newTestMonitor(nil)
	m.SetOnline(false)

	var order []string
	m.Subscribe(func(online bool) { order = append(order, "first") })
	m.Subscribe(func(online bool) { order = append(order, "second") })

	m.SetOnline(true)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.True(t, m.Online())
}

func TestMonitor_NoNotificationWithoutChange(t *testing.T) {
	m := newTestMonitor(nil)
	m.SetOnline(true)

	notified := 0
	m.Subscribe(func(online bool) { notified++ })

	m.SetOnline(true)
	m.SetOnline(true)

	assert.Zero(t, notified)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := newTestMonitor(nil)
	m.SetOnline(false)

	notified := 0
	unsubscribe := m.Subscribe(func(online bool) { notified++ })

	m.SetOnline(true)
	require.Equal(t, 1, notified)

	unsubscribe()
	m.SetOnline(false)
	assert.Equal(t, 1, notified)
}

func TestMonitor_PublishesOnBus(t *testing.T) {
	bus := EventBus.New()
	m := NewMonitor(logger.Mock(), &domain.Config{}, bus)
	m.SetOnline(false)

	received := make(chan bool, 1)
	err := bus.Subscribe(TopicChanged, func(online bool) {
		received <- online
	})
	require.NoError(t, err)

	m.SetOnline(true)

	select {
	case online := <-received:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("no event published on bus")
	}
}

func TestMonitor_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &domain.Config{
		Remote: domain.RemoteConfig{ProbeURL: srv.URL, TimeoutSeconds: 2},
	}
	m := newTestMonitor(cfg)

	assert.True(t, m.probe())

	srv.Close()
	assert.False(t, m.probe())
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m := newTestMonitor(nil)
	m.Stop()
	m.Stop()
}
