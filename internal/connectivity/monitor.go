package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Topic published on the event bus on every online/offline transition.
// The payload is the new online flag.
const TopicChanged = "connectivity:changed"

type subscriber struct {
	id int
	fn func(online bool)
}

// Monitor tracks reachability of the registration backend. It is the
// single source of truth for online/offline state: the cache service
// asks it before choosing a read path and the sync queue subscribes to
// its transitions to trigger replay.
//
// State is established by periodic probes against the configured
// endpoint and can also be pushed by the host shell via SetOnline when
// the platform exposes its own reachability signal.
type Monitor struct {
	log zerolog.Logger
	cfg *domain.Config
	bus EventBus.Bus

	client *http.Client

	m      sync.Mutex
	online bool
	// known is false until the first observation. The first observation
	// sets state without firing a transition, so a cold start while
	// online does not trigger a spurious sync burst.
	known  bool
	subs   []subscriber
	nextID int

	stopCh  chan struct{}
	stopped bool
}

func NewMonitor(log logger.Logger, cfg *domain.Config, bus EventBus.Bus) *Monitor {
	timeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Monitor{
		log:    log.With().Str("module", "connectivity").Logger(),
		cfg:    cfg,
		bus:    bus,
		client: &http.Client{Timeout: timeout},
		stopCh: make(chan struct{}),
	}
}

// Start launches the probe loop. The first probe runs immediately.
func (m *Monitor) Start() {
	if m.cfg.Remote.ProbeURL == "" {
		m.log.Warn().Msg("no probe URL configured, connectivity relies on pushed state only")
		return
	}

	go m.probeLoop()
}

func (m *Monitor) Stop() {
	m.m.Lock()
	defer m.m.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	close(m.stopCh)
}

// Online reports the current connectivity state. Before the first
// observation the monitor assumes offline, the safe default for reads.
func (m *Monitor) Online() bool {
	m.m.Lock()
	defer m.m.Unlock()
	return m.known && m.online
}

// Subscribe registers a callback invoked synchronously on every
// transition, in registration order. The returned function removes the
// subscription.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.m.Lock()
	defer m.m.Unlock()

	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.m.Lock()
		defer m.m.Unlock()
		for i, sub := range m.subs {
			if sub.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// SetOnline records a connectivity observation. The first observation
// only establishes state; later observations that change it notify
// subscribers and publish on the event bus.
func (m *Monitor) SetOnline(online bool) {
	m.m.Lock()

	first := !m.known
	changed := m.online != online
	m.known = true
	m.online = online

	if first || !changed {
		m.m.Unlock()
		return
	}

	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.m.Unlock()

	m.log.Info().Bool("online", online).Msg("connectivity changed")

	for _, sub := range subs {
		sub.fn(online)
	}

	if m.bus != nil {
		m.bus.Publish(TopicChanged, online)
	}
}

func (m *Monitor) probeLoop() {
	interval := time.Duration(m.cfg.Connectivity.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m.SetOnline(m.probe())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.SetOnline(m.probe())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.Remote.ProbeURL, nil)
	if err != nil {
		m.log.Error().Err(err).Msg("could not build probe request")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Debug().Err(err).Msg("probe failed")
		return false
	}
	defer resp.Body.Close()

	// any response means the backend is reachable
	return true
}
