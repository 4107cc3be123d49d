package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository"
)

const keyPrefix = "deploywatch:state:"

// Store keeps reconcile snapshots in Redis, one JSON value per tenant.
type Store struct {
	client *redis.Client
}

var _ repository.StateRepository = (*Store)(nil)

// New connects to Redis and verifies reachability before returning a Store.
func New(addr, password string, db int) (*Store, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// LoadState reads the tenant's snapshot, returning an empty state when the
// key does not exist.
func (s *Store) LoadState(ctx context.Context, tenantID string) (*domain.ReconcileState, error) {
	payload, err := s.client.Get(ctx, keyPrefix+tenantID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewReconcileState(), nil
		}
		return nil, fmt.Errorf("load reconcile state: %w", err)
	}
	return domain.ParseReconcileState(payload)
}

// SaveState replaces the tenant's snapshot with a single SET.
func (s *Store) SaveState(ctx context.Context, tenantID string, state *domain.ReconcileState) error {
	payload, err := state.Encode()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+tenantID, payload, 0).Err()
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}
