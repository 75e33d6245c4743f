package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/banking/merchant-risk-service/internal/domain"
)

const latestKeyPrefix = "risk:assessment:latest:"

// AssessmentCache keeps the latest assessment result per merchant in Redis
// so latest-risk reads skip the primary store. Entries expire; the
// repository remains the source of truth.
type AssessmentCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewAssessmentCache wraps an existing Redis client.
func NewAssessmentCache(client *goredis.Client, ttl time.Duration) *AssessmentCache {
	return &AssessmentCache{client: client, ttl: ttl}
}

// SetLatest stores the result under the merchant's latest-assessment key.
func (c *AssessmentCache) SetLatest(ctx context.Context, result *domain.AssessmentResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding assessment: %w", err)
	}
	if err := c.client.Set(ctx, latestKeyPrefix+result.MerchantID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching assessment for %s: %w", result.MerchantID, err)
	}
	return nil
}

// GetLatest returns the cached latest result, or domain.ErrNotFound on a
// cache miss.
func (c *AssessmentCache) GetLatest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error) {
	payload, err := c.client.Get(ctx, latestKeyPrefix+merchantID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("cached assessment for %s: %w", merchantID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading cached assessment for %s: %w", merchantID, err)
	}

	var result domain.AssessmentResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding cached assessment for %s: %w", merchantID, err)
	}
	return &result, nil
}

// Invalidate drops the cached result for a merchant.
func (c *AssessmentCache) Invalidate(ctx context.Context, merchantID string) error {
	return c.client.Del(ctx, latestKeyPrefix+merchantID).Err()
}
