package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// keyPrefix namespaces cache entries inside the shared kv store.
const keyPrefix = "cache:"

type connectivityChecker interface {
	Online() bool
}

type Service interface {
	// FetchWithCache serves the resource under key using the
	// cache-first-or-network policy:
	//
	//   offline          -> any cached entry, fresh or stale, else
	//                       ErrNoCachedData
	//   online, fresh    -> cached entry immediately, remote refresh in
	//                       the background (unless forceRefresh)
	//   online, otherwise-> fetch; on success cache and return, on
	//                       failure fall back to any cached entry, else
	//                       ErrRemoteFetchFailed carrying the cause
	//
	// The returned origin says whether the payload came over the wire
	// or out of the cache.
	FetchWithCache(ctx context.Context, key string, fetch domain.RemoteFetcher, ttl time.Duration, forceRefresh bool) (json.RawMessage, domain.DataOrigin, error)

	// Set stores a payload directly, stamping it with the current time.
	Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
	// Get returns the payload if a fresh entry exists, nil otherwise.
	// A non-zero ttlOverride is evaluated instead of the stored TTL.
	// No network is involved.
	Get(ctx context.Context, key string, ttlOverride time.Duration) (json.RawMessage, error)
	Clear(ctx context.Context, key string) error
	ClearAll(ctx context.Context) error
	// Stats reports per-key size, age and item count for diagnostics.
	Stats(ctx context.Context) (*domain.CacheStats, error)
}

type service struct {
	log     zerolog.Logger
	kv      domain.KVStore
	monitor connectivityChecker

	// serializes read-modify-write sequences on cache entries
	m sync.Mutex
	// dedupes concurrent background revalidations per key
	revalidate singleflight.Group

	now func() time.Time
}

func NewService(log logger.Logger, kv domain.KVStore, monitor connectivityChecker) Service {
	return &service{
		log:     log.With().Str("module", "cache").Logger(),
		kv:      kv,
		monitor: monitor,
		now:     time.Now,
	}
}

func (s *service) FetchWithCache(ctx context.Context, key string, fetch domain.RemoteFetcher, ttl time.Duration, forceRefresh bool) (json.RawMessage, domain.DataOrigin, error) {
	if key == "" {
		return nil, "", errors.New("cache key must not be empty")
	}

	online := s.monitor.Online()

	if !online {
		entry, err := s.load(ctx, key)
		if err != nil {
			return nil, "", err
		}
		if entry == nil {
			return nil, "", errors.Wrap(domain.ErrNoCachedData, "offline read for key %q", key)
		}
		s.log.Debug().Str("key", key).Bool("fresh", entry.Fresh(s.now())).Msg("serving cached data offline")
		return entry.Payload, domain.FromCache, nil
	}

	if !forceRefresh {
		entry, err := s.load(ctx, key)
		if err != nil {
			return nil, "", err
		}
		if entry != nil && entry.Fresh(s.now()) {
			s.refreshInBackground(key, fetch, ttl)
			return entry.Payload, domain.FromCache, nil
		}
	}

	payload, err := fetch(ctx)
	if err != nil {
		entry, loadErr := s.load(ctx, key)
		if loadErr == nil && entry != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("remote fetch failed, serving cached fallback")
			return entry.Payload, domain.FromCache, nil
		}
		return nil, "", &domain.RemoteFetchError{Key: key, Cause: err}
	}

	if err := s.Set(ctx, key, payload, ttl); err != nil {
		// the caller still gets a usable answer
		s.log.Error().Err(err).Str("key", key).Msg("could not cache fetched payload")
	}

	return payload, domain.FromNetwork, nil
}

// refreshInBackground revalidates a fresh-but-served entry without
// blocking the caller. Failures are logged, never surfaced; concurrent
// refreshes of the same key collapse into one fetch.
func (s *service) refreshInBackground(key string, fetch domain.RemoteFetcher, ttl time.Duration) {
	go func() {
		_, err, _ := s.revalidate.Do(key, func() (interface{}, error) {
			ctx := context.Background()
			payload, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return nil, s.Set(ctx, key, payload, ttl)
		})
		if err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("background revalidation failed")
		}
	}()
}

func (s *service) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	entry := domain.CacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: s.now(),
		TTL:      ttl,
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return errors.Wrap(err, "could not marshal cache entry %q", key)
	}

	s.m.Lock()
	defer s.m.Unlock()

	return s.kv.Set(ctx, keyPrefix+key, data)
}

func (s *service) Get(ctx context.Context, key string, ttlOverride time.Duration) (json.RawMessage, error) {
	entry, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	if ttlOverride > 0 {
		entry.TTL = ttlOverride
	}
	if !entry.Fresh(s.now()) {
		return nil, nil
	}

	return entry.Payload, nil
}

func (s *service) Clear(ctx context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()

	return s.kv.Remove(ctx, keyPrefix+key)
}

func (s *service) ClearAll(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return errors.Wrap(err, "could not list cache keys")
	}

	return s.kv.RemoveMany(ctx, keys)
}

func (s *service) Stats(ctx context.Context) (*domain.CacheStats, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not list cache keys")
	}

	now := s.now()
	stats := &domain.CacheStats{Keys: make([]domain.CacheKeyStats, 0, len(keys))}

	for _, storeKey := range keys {
		key := storeKey[len(keyPrefix):]
		entry, err := s.load(ctx, key)
		if err != nil || entry == nil {
			continue
		}

		size := len(entry.Payload)
		stats.Keys = append(stats.Keys, domain.CacheKeyStats{
			Key:       key,
			Size:      size,
			SizeHuman: humanize.Bytes(uint64(size)),
			StoredAt:  entry.StoredAt,
			Age:       humanize.Time(entry.StoredAt),
			ItemCount: itemCount(entry.Payload),
			Fresh:     entry.Fresh(now),
		})
		stats.TotalSize += size
	}

	stats.TotalKeys = len(stats.Keys)
	stats.TotalHuman = humanize.Bytes(uint64(stats.TotalSize))

	return stats, nil
}

func (s *service) load(ctx context.Context, key string) (*domain.CacheEntry, error) {
	data, err := s.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		return nil, errors.Wrap(err, "could not read cache entry %q", key)
	}
	if data == nil {
		return nil, nil
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrap(err, "could not decode cache entry %q", key)
	}

	return &entry, nil
}

// itemCount reports the element count for array payloads, 1 otherwise.
func itemCount(payload json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return 1
	}
	return len(items)
}
