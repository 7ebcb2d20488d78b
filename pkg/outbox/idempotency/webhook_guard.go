package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zipdrop/zipdrop-backend/pkg/redis"
)

// WebhookGuard deduplicates inbound webhook deliveries by processor delivery
// id. It is advisory only; the transactional reconcile path stays correct if
// Redis loses the marker.
type WebhookGuard struct {
	store    redis.IdempotencyStore
	provider string
	ttl      time.Duration
}

// NewWebhookGuard builds a guard scoped to one webhook provider.
func NewWebhookGuard(store redis.IdempotencyStore, provider string, ttl time.Duration) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if strings.TrimSpace(provider) == "" {
		return nil, errors.New("provider name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &WebhookGuard{store: store, provider: provider, ttl: ttl}, nil
}

// CheckAndMark returns true if the delivery was already seen and otherwise
// marks it for the configured TTL.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	key, err := g.deliveryKey(deliveryID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the delivery marker so the processor retry can run again.
func (g *WebhookGuard) Delete(ctx context.Context, deliveryID string) error {
	key, err := g.deliveryKey(deliveryID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *WebhookGuard) deliveryKey(deliveryID string) (string, error) {
	if strings.TrimSpace(deliveryID) == "" {
		return "", errors.New("delivery id is required")
	}
	return g.store.IdempotencyKey("webhook:"+g.provider, deliveryID), nil
}
