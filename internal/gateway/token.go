package gateway

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/redis"
)

// DefaultTokenTTL is shorter than the provider's one hour so a cached token never expires mid-request
const DefaultTokenTTL = 55 * time.Minute

// DefaultTokenKey is the Redis key of the shared access token
const DefaultTokenKey = "mpesa:access_token"

// DefaultTokenFetchTimeout bounds one provider token request
const DefaultTokenFetchTimeout = 30 * time.Second

// TokenStore keeps the provider access token between requests
type TokenStore interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory
type MemoryTokenStore struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewMemoryTokenStore creates an empty MemoryTokenStore
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{now: time.Now}
}

func (s *MemoryTokenStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !s.now().Before(s.expires) {
		return "", false, nil
	}
	return s.token, true, nil
}

func (s *MemoryTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expires = s.now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisTokenStore shares the token between service instances
type RedisTokenStore struct {
	client goredis.Cmdable
	key    string
}

// NewRedisTokenStore creates a RedisTokenStore; an empty key uses DefaultTokenKey
func NewRedisTokenStore(client goredis.Cmdable, key string) *RedisTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

func (s *RedisTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key, token, ttl).Err()
}

func (s *RedisTokenStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// TokenFetcher obtains a fresh token from the provider
type TokenFetcher func(ctx context.Context) (string, error)

// TokenCache returns a cached token and refreshes it lazily.
// Concurrent refreshes collapse into one provider call.
type TokenCache struct {
	store        TokenStore
	fetch        TokenFetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	log          *logger.Logger
}

// NewTokenCache creates a TokenCache; a nil store keeps the token in memory
func NewTokenCache(store TokenStore, fetch TokenFetcher, ttl time.Duration) *TokenCache {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCache{
		store:        store,
		fetch:        fetch,
		ttl:          ttl,
		fetchTimeout: DefaultTokenFetchTimeout,
		log:          logger.Get().Component("mpesa_token"),
	}
}

// AccessToken returns a valid token, fetching one when the store has none.
// A failing store is logged and bypassed.
//
// The shared fetch is detached from the caller that started it, so one
// cancelled request does not fail every caller waiting on the same refresh.
func (c *TokenCache) AccessToken(ctx context.Context) (string, error) {
	if token, ok := c.cached(ctx); ok {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		if token, ok := c.cached(fetchCtx); ok {
			return token, nil
		}
		token, err := c.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		if err := c.store.Set(fetchCtx, token, c.ttl); err != nil {
			c.log.Warn("failed to cache access token", zap.Error(err))
		}
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token, e.g. after the provider answered 401
func (c *TokenCache) Invalidate(ctx context.Context) {
	if err := c.store.Delete(ctx); err != nil {
		c.log.Warn("failed to drop access token", zap.Error(err))
	}
}

func (c *TokenCache) cached(ctx context.Context) (string, bool) {
	token, ok, err := c.store.Get(ctx)
	if err != nil {
		c.log.Warn("token store unavailable", zap.Error(err))
		return "", false
	}
	return token, ok
}
