package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evermark/servicedesk-backend/pkg/redis"
)

// Manager tracks processed external event IDs per source using Redis SETNX
// with a TTL. Keys follow the `sd:idempotency:evt:processed:<source>:<event_id>`
// pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a dedupe guard that marks events as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the event has already been processed and
// otherwise marks it as processed with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, source, eventID string) (bool, error) {
	key, err := m.processedKey(source, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the processed marker so the event can be handled again.
func (m *Manager) Delete(ctx context.Context, source, eventID string) error {
	key, err := m.processedKey(source, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(source, eventID string) (string, error) {
	if source == "" {
		return "", errors.New("source name is required")
	}
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", source)
	return m.store.IdempotencyKey(scope, eventID), nil
}
