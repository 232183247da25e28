package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cache keys used for the backend collections. Stable so a reinstall
// of the same config finds its old entries.
const (
	KeyFarmersList  = "farmers-list"
	KeyClustersList = "clusters-list"
	keyFarmsPrefix  = "farms-for-farmer-"
)

func farmsKey(farmerID string) string {
	return keyFarmsPrefix + farmerID
}

type backendClient interface {
	ListFarmers(ctx context.Context) (json.RawMessage, error)
	ListFarmsByFarmer(ctx context.Context, farmerID string) (json.RawMessage, error)
	ListClusters(ctx context.Context) (json.RawMessage, error)
	CreateFarmer(ctx context.Context, payload json.RawMessage) error
	UpdateFarmer(ctx context.Context, payload json.RawMessage) error
	CreateFarm(ctx context.Context, payload json.RawMessage) error
	UpdateFarm(ctx context.Context, payload json.RawMessage) error
}

type cacheService interface {
	FetchWithCache(ctx context.Context, key string, fetch domain.RemoteFetcher, ttl time.Duration, forceRefresh bool) (json.RawMessage, domain.DataOrigin, error)
	Clear(ctx context.Context, key string) error
}

type queueService interface {
	Enqueue(ctx context.Context, kind domain.OpKind, entityType string, payload json.RawMessage) (*domain.QueuedOperation, error)
}

type connectivityChecker interface {
	Online() bool
}

// Service is the entity-level surface the app talks to. Reads go
// through the cache, writes go to the backend when a connection is up
// and into the sync queue when it is not.
type Service interface {
	Farmers(ctx context.Context, forceRefresh bool) ([]domain.Farmer, domain.DataOrigin, error)
	FarmsByFarmer(ctx context.Context, farmerID string, forceRefresh bool) ([]domain.Farm, domain.DataOrigin, error)
	Clusters(ctx context.Context, forceRefresh bool) ([]domain.Cluster, domain.DataOrigin, error)

	CreateFarmer(ctx context.Context, farmer *domain.Farmer) (domain.SaveOutcome, error)
	UpdateFarmer(ctx context.Context, farmer *domain.Farmer) (domain.SaveOutcome, error)
	CreateFarm(ctx context.Context, farm *domain.Farm) (domain.SaveOutcome, error)
	UpdateFarm(ctx context.Context, farm *domain.Farm) (domain.SaveOutcome, error)
}

type service struct {
	log     zerolog.Logger
	cache   cacheService
	queue   queueService
	client  backendClient
	monitor connectivityChecker
	ttl     time.Duration
}

func NewService(log logger.Logger, cache cacheService, queue queueService, client backendClient, monitor connectivityChecker, cfg domain.CacheConfig) Service {
	ttl := time.Duration(cfg.DefaultTTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &service{
		log:     log.With().Str("module", "store").Logger(),
		cache:   cache,
		queue:   queue,
		client:  client,
		monitor: monitor,
		ttl:     ttl,
	}
}

func (s *service) Farmers(ctx context.Context, forceRefresh bool) ([]domain.Farmer, domain.DataOrigin, error) {
	payload, origin, err := s.cache.FetchWithCache(ctx, KeyFarmersList, s.client.ListFarmers, s.ttl, forceRefresh)
	if err != nil {
		return nil, "", err
	}

	var farmers []domain.Farmer
	if err := json.Unmarshal(payload, &farmers); err != nil {
		return nil, "", errors.Wrap(err, "could not decode farmers list")
	}
	return farmers, origin, nil
}

func (s *service) FarmsByFarmer(ctx context.Context, farmerID string, forceRefresh bool) ([]domain.Farm, domain.DataOrigin, error) {
	if farmerID == "" {
		return nil, "", errors.New("farmer id must not be empty")
	}

	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return s.client.ListFarmsByFarmer(ctx, farmerID)
	}

	payload, origin, err := s.cache.FetchWithCache(ctx, farmsKey(farmerID), fetch, s.ttl, forceRefresh)
	if err != nil {
		return nil, "", err
	}

	var farms []domain.Farm
	if err := json.Unmarshal(payload, &farms); err != nil {
		return nil, "", errors.Wrap(err, "could not decode farms for farmer %s", farmerID)
	}
	return farms, origin, nil
}

func (s *service) Clusters(ctx context.Context, forceRefresh bool) ([]domain.Cluster, domain.DataOrigin, error) {
	payload, origin, err := s.cache.FetchWithCache(ctx, KeyClustersList, s.client.ListClusters, s.ttl, forceRefresh)
	if err != nil {
		return nil, "", err
	}

	var clusters []domain.Cluster
	if err := json.Unmarshal(payload, &clusters); err != nil {
		return nil, "", errors.Wrap(err, "could not decode clusters list")
	}
	return clusters, origin, nil
}

func (s *service) CreateFarmer(ctx context.Context, farmer *domain.Farmer) (domain.SaveOutcome, error) {
	if farmer.ID == "" {
		// device-issued id so the record can be referenced before it
		// ever reaches the backend
		farmer.ID = uuid.New().String()
	}
	farmer.CreatedAt = time.Now()

	payload, err := json.Marshal(farmer)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal farmer")
	}

	return s.write(ctx, domain.OpKindCreate, domain.EntityTypeFarmer, payload, s.client.CreateFarmer, KeyFarmersList)
}

func (s *service) UpdateFarmer(ctx context.Context, farmer *domain.Farmer) (domain.SaveOutcome, error) {
	if farmer.ID == "" {
		return "", errors.New("farmer id must not be empty")
	}
	farmer.UpdatedAt = time.Now()

	payload, err := json.Marshal(farmer)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal farmer")
	}

	return s.write(ctx, domain.OpKindUpdate, domain.EntityTypeFarmer, payload, s.client.UpdateFarmer, KeyFarmersList)
}

func (s *service) CreateFarm(ctx context.Context, farm *domain.Farm) (domain.SaveOutcome, error) {
	if farm.FarmerID == "" {
		return "", errors.New("farm must reference a farmer")
	}
	if farm.ID == "" {
		farm.ID = uuid.New().String()
	}
	farm.CreatedAt = time.Now()

	payload, err := json.Marshal(farm)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal farm")
	}

	return s.write(ctx, domain.OpKindCreate, domain.EntityTypeFarm, payload, s.client.CreateFarm, farmsKey(farm.FarmerID))
}

func (s *service) UpdateFarm(ctx context.Context, farm *domain.Farm) (domain.SaveOutcome, error) {
	if farm.ID == "" {
		return "", errors.New("farm id must not be empty")
	}
	if farm.FarmerID == "" {
		return "", errors.New("farm must reference a farmer")
	}
	farm.UpdatedAt = time.Now()

	payload, err := json.Marshal(farm)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal farm")
	}

	return s.write(ctx, domain.OpKindUpdate, domain.EntityTypeFarm, payload, s.client.UpdateFarm, farmsKey(farm.FarmerID))
}

// write pushes a payload to the backend when online and falls back to
// the durable queue when offline or when the backend is unreachable
// mid-flight. Validation rejections are surfaced to the caller instead
// of queued, since replaying them verbatim cannot succeed.
func (s *service) write(ctx context.Context, kind domain.OpKind, entityType string, payload json.RawMessage, direct func(context.Context, json.RawMessage) error, invalidateKey string) (domain.SaveOutcome, error) {
	if s.monitor.Online() {
		err := direct(ctx, payload)
		if err == nil {
			// drop the stale list so the next read refetches
			if clearErr := s.cache.Clear(ctx, invalidateKey); clearErr != nil {
				s.log.Warn().Err(clearErr).Str("key", invalidateKey).Msg("could not invalidate cache after write")
			}
			return domain.SavedRemotely, nil
		}

		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return "", err
		}

		s.log.Warn().Err(err).Str("entity_type", entityType).Msg("direct write failed, queueing for sync")
	}

	if _, err := s.queue.Enqueue(ctx, kind, entityType, payload); err != nil {
		return "", err
	}

	return domain.SavedOffline, nil
}
