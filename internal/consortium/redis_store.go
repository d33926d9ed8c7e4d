package consortium

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencatalog/search-indexer/pkg/redis"
)

// RedisStore persists provenance claims in Redis hashes. Each shared
// resource id maps to one hash keyed "consortium:{central}:{id}" with one
// field per member tenant, so concurrent members touch disjoint fields.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(centralTenant, resourceID string) string {
	return fmt.Sprintf("consortium:%s:%s", centralTenant, resourceID)
}

func (s *RedisStore) Save(ctx context.Context, centralTenant, resourceID string, claim Claim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("marshaling claim for %s: %w", resourceID, err)
	}
	if err := s.client.HSet(ctx, redisKey(centralTenant, resourceID), claim.Tenant, data); err != nil {
		return fmt.Errorf("saving claim for %s/%s: %w", centralTenant, resourceID, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, centralTenant, resourceID, memberTenant string) error {
	if err := s.client.HDel(ctx, redisKey(centralTenant, resourceID), memberTenant); err != nil {
		return fmt.Errorf("removing claim for %s/%s: %w", centralTenant, resourceID, err)
	}
	return nil
}

func (s *RedisStore) Claims(ctx context.Context, centralTenant, resourceID string) ([]Claim, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(centralTenant, resourceID))
	if err != nil {
		return nil, fmt.Errorf("loading claims for %s/%s: %w", centralTenant, resourceID, err)
	}
	claims := make([]Claim, 0, len(fields))
	for tenant, raw := range fields {
		var claim Claim
		if err := json.Unmarshal([]byte(raw), &claim); err != nil {
			return nil, fmt.Errorf("decoding claim of tenant %s for %s: %w", tenant, resourceID, err)
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context, centralTenant string) error {
	pattern := fmt.Sprintf("consortium:%s:*", centralTenant)
	if _, err := s.client.FlushByPattern(ctx, pattern); err != nil {
		return fmt.Errorf("flushing claims for %s: %w", centralTenant, err)
	}
	return nil
}
