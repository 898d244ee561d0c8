package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// HoldCacheService keeps short-lived advisory cart holds in Redis. Holds
// only adjust the availability figure shown to shoppers; the database ledger
// stays authoritative and a reservation still re-validates capacity under
// the row lock. A nil client disables the feature entirely.
type HoldCacheService struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewHoldCacheService creates a new HoldCacheService
func NewHoldCacheService(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *HoldCacheService {
	return &HoldCacheService{client: client, ttl: ttl, logger: logger}
}

func holdKey(tripDateID, userID uuid.UUID) string {
	return fmt.Sprintf("cart_hold:%s:%s", tripDateID, userID)
}

// Place records a hold of qty seats for a user on a trip date. A repeat call
// overwrites the previous hold and refreshes its TTL.
func (s *HoldCacheService) Place(ctx context.Context, tripDateID, userID uuid.UUID, qty int) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Set(ctx, holdKey(tripDateID, userID), qty, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to place cart hold: %w", err)
	}
	return nil
}

// Release drops a user's hold, typically once the reservation is committed
func (s *HoldCacheService) Release(ctx context.Context, tripDateID, userID uuid.UUID) {
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, holdKey(tripDateID, userID)).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to release cart hold")
	}
}

// Held sums all live holds on a trip date. Errors degrade to zero so a Redis
// outage never blocks availability reads.
func (s *HoldCacheService) Held(ctx context.Context, tripDateID uuid.UUID) int {
	if s.client == nil {
		return 0
	}

	var total int
	pattern := fmt.Sprintf("cart_hold:%s:*", tripDateID)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		if qty, err := strconv.Atoi(val); err == nil {
			total += qty
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to scan cart holds")
		return 0
	}
	return total
}
