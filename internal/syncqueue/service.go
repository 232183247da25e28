package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// opKeyPrefix namespaces queued operations inside the shared kv store.
const opKeyPrefix = "queue:op:"

// TopicSyncCompleted is published on the event bus after an automatic
// replay pass. The payload is the *domain.SyncSummary.
const TopicSyncCompleted = "sync:completed"

type connectivityMonitor interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type Service interface {
	// Enqueue durably records a local write for later replay. Pure
	// local effect, no network. Fails only if persistence fails, in
	// which case the error matches ErrQueueWriteFailed.
	Enqueue(ctx context.Context, kind domain.OpKind, entityType string, payload json.RawMessage) (*domain.QueuedOperation, error)

	// ReplayOne replays a single operation against its registered
	// writer, updating its durable state on both outcomes. The returned
	// error reflects the replay outcome; state is already recorded.
	ReplayOne(ctx context.Context, op *domain.QueuedOperation) error

	// ReplayAll sequentially replays every eligible operation. Safe to
	// call while offline: it returns a zero summary. Individual
	// failures never abort the batch.
	ReplayAll(ctx context.Context) (*domain.SyncSummary, error)

	// RetryOne is the user-triggered replay of one failed operation.
	// The attempt count is NOT reset, so manual retries keep
	// accumulating toward the ceiling.
	RetryOne(ctx context.Context, id string) error

	PendingCount(ctx context.Context) (int, error)
	List(ctx context.Context) ([]domain.QueuedOperation, error)

	// ClearAll removes every queued operation. Explicit user-initiated
	// data reset only.
	ClearAll(ctx context.Context) error

	// PruneDone removes operations completed longer than the retention
	// window ago and returns how many were removed.
	PruneDone(ctx context.Context, olderThan time.Duration) (int, error)

	// RegisterWriter binds the remote writer replayed for the given
	// entity type and operation kind.
	RegisterWriter(entityType string, kind domain.OpKind, w domain.RemoteWriter)

	// Start recovers operations a previous process left in flight,
	// then subscribes to connectivity transitions so an offline to
	// online transition triggers an automatic replay pass.
	Start()
	Stop()
}

type service struct {
	log     zerolog.Logger
	kv      domain.KVStore
	monitor connectivityMonitor
	bus     EventBus.Bus
	policy  domain.RetryPolicy

	// serializes queue read-modify-write sequences
	m sync.Mutex
	// serializes replay passes so writes are never in flight concurrently
	replayM sync.Mutex

	writersM sync.RWMutex
	writers  map[string]domain.RemoteWriter

	unsubscribe func()
	now         func() time.Time
}

func NewService(log logger.Logger, kv domain.KVStore, monitor connectivityMonitor, bus EventBus.Bus, policy domain.RetryPolicy) Service {
	if policy.MaxAttempts <= 0 {
		policy = domain.DefaultRetryPolicy()
	}

	return &service{
		log:     log.With().Str("module", "syncqueue").Logger(),
		kv:      kv,
		monitor: monitor,
		bus:     bus,
		policy:  policy,
		writers: map[string]domain.RemoteWriter{},
		now:     time.Now,
	}
}

func (s *service) Start() {
	s.recoverStranded(context.Background())

	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		// the subscriber list is delivered synchronously; run the pass
		// off the notification path
		go s.autoReplay()
	})
}

func (s *service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *service) RegisterWriter(entityType string, kind domain.OpKind, w domain.RemoteWriter) {
	s.writersM.Lock()
	defer s.writersM.Unlock()
	s.writers[writerKey(entityType, kind)] = w
}

func (s *service) Enqueue(ctx context.Context, kind domain.OpKind, entityType string, payload json.RawMessage) (*domain.QueuedOperation, error) {
	now := s.now()
	op := &domain.QueuedOperation{
		ID:         fmt.Sprintf("%x-%s", now.UnixNano(), uuid.New().String()[:8]),
		Kind:       kind,
		EntityType: entityType,
		Payload:    payload,
		Status:     domain.OpStatusPending,
		CreatedAt:  now,
	}

	if err := s.persist(ctx, op); err != nil {
		s.log.Error().Err(err).Str("entity_type", entityType).Msg("could not enqueue operation, data at risk")
		return nil, &domain.QueueWriteError{Cause: err}
	}

	s.log.Info().Str("id", op.ID).Str("kind", string(kind)).Str("entity_type", entityType).Msg("operation queued for sync")
	return op, nil
}

func (s *service) ReplayOne(ctx context.Context, op *domain.QueuedOperation) error {
	op.Status = domain.OpStatusInFlight
	op.LastAttemptAt = s.now()
	if err := s.persist(ctx, op); err != nil {
		return errors.Wrap(err, "could not mark operation %s in flight", op.ID)
	}

	writer := s.writer(op.EntityType, op.Kind)

	var writeErr error
	if writer == nil {
		writeErr = errors.New("no writer registered for %s %s", op.EntityType, op.Kind)
	} else {
		writeErr = writer.Write(ctx, op.Payload)
	}

	if writeErr == nil {
		op.Status = domain.OpStatusDone
		op.LastError = ""
		op.DoneAt = s.now()
		if err := s.persist(ctx, op); err != nil {
			return errors.Wrap(err, "could not mark operation %s done", op.ID)
		}
		s.log.Info().Str("id", op.ID).Str("entity_type", op.EntityType).Msg("operation synced")
		return nil
	}

	op.AttemptCount++
	op.LastError = writeErr.Error()
	op.Status = domain.OpStatusFailed

	var validationErr *domain.ValidationError
	if errors.As(writeErr, &validationErr) {
		// replaying identical data would fail identically
		op.Terminal = true
		s.log.Warn().Str("id", op.ID).Str("reason", validationErr.Reason).Msg("operation rejected by backend, manual intervention required")
	} else if op.AttemptCount >= s.policy.MaxAttempts {
		s.log.Warn().Str("id", op.ID).Int("attempts", op.AttemptCount).Msg("operation reached retry ceiling")
	} else {
		s.log.Debug().Err(writeErr).Str("id", op.ID).Int("attempts", op.AttemptCount).Msg("operation replay failed, will retry")
	}

	if err := s.persist(ctx, op); err != nil {
		return errors.Wrap(err, "could not record failure of operation %s", op.ID)
	}

	return writeErr
}

func (s *service) ReplayAll(ctx context.Context) (*domain.SyncSummary, error) {
	// enforced redundantly so the call is safe to make blindly
	if !s.monitor.Online() {
		s.log.Debug().Msg("replay requested while offline, skipping")
		return &domain.SyncSummary{}, nil
	}

	s.replayM.Lock()
	defer s.replayM.Unlock()

	ops, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.SyncSummary{}
	first := true

	for i := range ops {
		op := &ops[i]
		if !s.policy.Retryable(op) {
			continue
		}

		if !first {
			// spacing between writes keeps the backend from being
			// hammered after a long offline window
			select {
			case <-time.After(s.policy.Delay):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}
		first = false

		if err := s.ReplayOne(ctx, op); err != nil {
			summary.FailedCount++
			continue
		}
		summary.SyncedCount++
	}

	pending, err := s.PendingCount(ctx)
	if err != nil {
		return summary, err
	}
	summary.PendingCount = pending

	s.log.Info().
		Int("synced", summary.SyncedCount).
		Int("failed", summary.FailedCount).
		Int("pending", summary.PendingCount).
		Msg("replay pass complete")

	return summary, nil
}

func (s *service) RetryOne(ctx context.Context, id string) error {
	if !s.monitor.Online() {
		return errors.Wrap(domain.ErrNoNetwork, "cannot retry operation %s", id)
	}

	op, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if op == nil {
		return errors.Wrap(domain.ErrNotFound, "operation %s", id)
	}
	if op.Status != domain.OpStatusFailed {
		return errors.Wrap(domain.ErrNotRetryable, "operation %s has status %s", id, op.Status)
	}

	s.replayM.Lock()
	defer s.replayM.Unlock()

	return s.ReplayOne(ctx, op)
}

func (s *service) PendingCount(ctx context.Context) (int, error) {
	ops, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range ops {
		if ops[i].Status != domain.OpStatusDone {
			count++
		}
	}
	return count, nil
}

func (s *service) List(ctx context.Context) ([]domain.QueuedOperation, error) {
	keys, err := s.kv.Keys(ctx, opKeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not list queued operations")
	}

	ops := make([]domain.QueuedOperation, 0, len(keys))
	for _, key := range keys {
		data, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrap(err, "could not read queued operation %q", key)
		}
		if data == nil {
			continue
		}

		var op domain.QueuedOperation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, errors.Wrap(err, "could not decode queued operation %q", key)
		}
		ops = append(ops, op)
	}

	// replay in insertion order
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	return ops, nil
}

func (s *service) ClearAll(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	keys, err := s.kv.Keys(ctx, opKeyPrefix)
	if err != nil {
		return errors.Wrap(err, "could not list queued operations")
	}

	s.log.Warn().Int("count", len(keys)).Msg("clearing sync queue")
	return s.kv.RemoveMany(ctx, keys)
}

func (s *service) PruneDone(ctx context.Context, olderThan time.Duration) (int, error) {
	ops, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	var stale []string
	for i := range ops {
		op := &ops[i]
		if op.Status == domain.OpStatusDone && !op.DoneAt.IsZero() && op.DoneAt.Before(cutoff) {
			stale = append(stale, opKeyPrefix+op.ID)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	s.m.Lock()
	defer s.m.Unlock()

	if err := s.kv.RemoveMany(ctx, stale); err != nil {
		return 0, errors.Wrap(err, "could not prune completed operations")
	}

	s.log.Debug().Int("count", len(stale)).Msg("pruned completed operations")
	return len(stale), nil
}

// recoverStranded returns operations left in_flight by a crash
// mid-replay to pending. The interrupted attempt never reached an
// outcome, so it does not count toward the ceiling.
func (s *service) recoverStranded(ctx context.Context) {
	ops, err := s.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("could not scan queue for stranded operations")
		return
	}

	for i := range ops {
		op := &ops[i]
		if op.Status != domain.OpStatusInFlight {
			continue
		}

		op.Status = domain.OpStatusPending
		if err := s.persist(ctx, op); err != nil {
			s.log.Error().Err(err).Str("id", op.ID).Msg("could not recover stranded operation")
			continue
		}
		s.log.Warn().Str("id", op.ID).Str("entity_type", op.EntityType).Msg("operation was in flight during shutdown, queued again")
	}
}

func (s *service) autoReplay() {
	summary, err := s.ReplayAll(context.Background())
	if err != nil {
		s.log.Error().Err(err).Msg("automatic replay pass failed")
		return
	}

	if s.bus != nil {
		s.bus.Publish(TopicSyncCompleted, summary)
	}
}

func (s *service) persist(ctx context.Context, op *domain.QueuedOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return errors.Wrap(err, "could not marshal operation %s", op.ID)
	}

	s.m.Lock()
	defer s.m.Unlock()

	return s.kv.Set(ctx, opKeyPrefix+op.ID, data)
}

func (s *service) find(ctx context.Context, id string) (*domain.QueuedOperation, error) {
	data, err := s.kv.Get(ctx, opKeyPrefix+id)
	if err != nil {
		return nil, errors.Wrap(err, "could not read operation %s", id)
	}
	if data == nil {
		return nil, nil
	}

	var op domain.QueuedOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, errors.Wrap(err, "could not decode operation %s", id)
	}
	return &op, nil
}

func (s *service) writer(entityType string, kind domain.OpKind) domain.RemoteWriter {
	s.writersM.RLock()
	defer s.writersM.RUnlock()
	return s.writers[writerKey(entityType, kind)]
}

func writerKey(entityType string, kind domain.OpKind) string {
	return entityType + "/" + string(kind)
}
