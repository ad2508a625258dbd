package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chainvoice/internal/models"
)

type CacheService interface {
	// Invoice caching
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error
	DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error

	// Resolved-chain caching
	GetChain(ctx context.Context, rootID uuid.UUID) ([]*models.Invoice, error)
	SetChain(ctx context.Context, rootID uuid.UUID, chain []*models.Invoice, ttl time.Duration) error
	DeleteChain(ctx context.Context, rootID uuid.UUID) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) error

	// Generic string operations
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Strip a redis:// prefix if the address came from a URL-style env var
	addr = strings.TrimPrefix(addr, "redis://")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &redisCacheService{client: client}
}

func invoiceKey(invoiceID uuid.UUID) string {
	return fmt.Sprintf("invoice:%s", invoiceID.String())
}

func chainKey(rootID uuid.UUID) string {
	return fmt.Sprintf("invoice_chain:%s", rootID.String())
}

func (s *redisCacheService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	data, err := s.client.Get(ctx, invoiceKey(invoiceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached invoice: %v", err)
	}

	var invoice models.Invoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached invoice: %v", err)
	}
	return &invoice, nil
}

func (s *redisCacheService) SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error {
	data, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice: %v", err)
	}
	return s.client.Set(ctx, invoiceKey(invoice.ID), data, ttl).Err()
}

func (s *redisCacheService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return s.client.Del(ctx, invoiceKey(invoiceID)).Err()
}

func (s *redisCacheService) GetChain(ctx context.Context, rootID uuid.UUID) ([]*models.Invoice, error) {
	data, err := s.client.Get(ctx, chainKey(rootID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached chain: %v", err)
	}

	var chain []*models.Invoice
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached chain: %v", err)
	}
	return chain, nil
}

func (s *redisCacheService) SetChain(ctx context.Context, rootID uuid.UUID, chain []*models.Invoice, ttl time.Duration) error {
	data, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %v", err)
	}
	return s.client.Set(ctx, chainKey(rootID), data, ttl).Err()
}

func (s *redisCacheService) DeleteChain(ctx context.Context, rootID uuid.UUID) error {
	return s.client.Del(ctx, chainKey(rootID)).Err()
}

func (s *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Get(ctx, "ratelimit:"+key).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= limit, nil
}

func (s *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, "ratelimit:"+key)
	pipe.Expire(ctx, "ratelimit:"+key, window)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *redisCacheService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
