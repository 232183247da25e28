package events

import (
	"github.com/agrisync/agrisync/internal/connectivity"
	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/rs/zerolog"
)

// Subscriber wires bus topics to the application log so connectivity
// transitions and replay outcomes show up in one place.
type Subscriber struct {
	log zerolog.Logger
	bus EventBus
}

// EventBus is the subset of EventBus.Bus the subscribers need.
type EventBus interface {
	Subscribe(topic string, fn interface{}) error
	SubscribeAsync(topic string, fn interface{}, transactional bool) error
	SubscribeOnce(topic string, fn interface{}) error
	SubscribeOnceAsync(topic string, fn interface{}) error
	Unsubscribe(topic string, handler interface{}) error
	Publish(topic string, args ...interface{})
	HasCallback(topic string) bool
	WaitAsync()
}

func NewSubscribers(log logger.Logger, bus EventBus) *Subscriber {
	s := &Subscriber{
		log: log.With().Str("module", "events").Logger(),
		bus: bus,
	}

	s.Register()
	return s
}

func (s *Subscriber) Register() {
	if err := s.bus.Subscribe(connectivity.TopicChanged, s.connectivityChanged); err != nil {
		s.log.Error().Err(err).Str("topic", connectivity.TopicChanged).Msg("could not subscribe to topic")
	}
	if err := s.bus.Subscribe(syncqueue.TopicSyncCompleted, s.syncCompleted); err != nil {
		s.log.Error().Err(err).Str("topic", syncqueue.TopicSyncCompleted).Msg("could not subscribe to topic")
	}
}

func (s *Subscriber) connectivityChanged(online bool) {
	if online {
		s.log.Info().Msg("device is back online")
		return
	}
	s.log.Info().Msg("device went offline, writes will be queued")
}

func (s *Subscriber) syncCompleted(summary *domain.SyncSummary) {
	if summary == nil {
		return
	}
	s.log.Info().
		Int("synced", summary.SyncedCount).
		Int("failed", summary.FailedCount).
		Int("pending", summary.PendingCount).
		Msg("sync replay finished")
}
