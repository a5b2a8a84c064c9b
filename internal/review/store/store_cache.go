package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	reviewmetrics "expatdesk/internal/review/metrics"
	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/platform/circuit"
	"expatdesk/pkg/platform/tx"
)

const tokenKeyPrefix = "review:token:"

// Backing is the store the cache reads through to.
type Backing interface {
	Create(ctx context.Context, r *models.ReviewRecord) error
	FindByToken(ctx context.Context, token id.AccessToken) (*models.ReviewRecord, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*models.ReviewRecord, error)
	Execute(ctx context.Context, token id.AccessToken, validate func(*models.ReviewRecord) error, mutate func(*models.ReviewRecord)) (*models.ReviewRecord, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.ReviewRecord, error)
}

// CachedStore is a Redis read-through cache for token lookups. Every write
// goes to the backing store first and drops the cached entry once the
// enclosing transaction commits. After consecutive Redis failures the breaker
// opens and lookups go straight to the backing store.
type CachedStore struct {
	Backing
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *zap.Logger
	metrics *reviewmetrics.Metrics

	// tokens whose Del failed; never served from Redis until a Del succeeds
	mu    sync.Mutex
	stale map[id.AccessToken]struct{}
}

type CacheOption func(*CachedStore)

func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedStore) { c.logger = logger }
}

func WithCacheMetrics(m *reviewmetrics.Metrics) CacheOption {
	return func(c *CachedStore) { c.metrics = m }
}

func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(c *CachedStore) { c.breaker = b }
}

func NewCached(backing Backing, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedStore {
	c := &CachedStore{
		Backing: backing,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("review-cache"),
		logger:  zap.NewNop(),
		stale:   make(map[id.AccessToken]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func tokenKey(token id.AccessToken) string {
	return tokenKeyPrefix + token.String()
}

// cachedReview is the cache encoding of a record.
type cachedReview struct {
	Record            models.ReviewResponse `json:"record"`
	CheckoutSessionID string                `json:"checkout_session_id,omitempty"`
}

func (c *CachedStore) FindByToken(ctx context.Context, token id.AccessToken) (*models.ReviewRecord, error) {
	if c.isStale(token) && !c.invalidate(ctx, token) {
		c.metrics.IncrementCacheLookup("bypass")
		return c.Backing.FindByToken(ctx, token)
	}
	if c.breaker.Allow() {
		raw, err := c.client.Get(ctx, tokenKey(token)).Bytes()
		switch {
		case err == nil:
			c.recordSuccess()
			if r, decodeErr := decodeCached(raw); decodeErr == nil {
				c.metrics.IncrementCacheLookup("hit")
				return r, nil
			}
			c.logger.Warn("dropping undecodable cache entry", zap.String("key", tokenKey(token)))
			c.invalidate(ctx, token)
		case errors.Is(err, redis.Nil):
			c.recordSuccess()
			c.metrics.IncrementCacheLookup("miss")
		default:
			c.recordFailure(err)
			c.metrics.IncrementCacheLookup("error")
		}
	}

	r, err := c.Backing.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, r)
	return r, nil
}

func (c *CachedStore) Create(ctx context.Context, r *models.ReviewRecord) error {
	if err := c.Backing.Create(ctx, r); err != nil {
		return err
	}
	c.invalidateAfterCommit(ctx, r.AccessToken)
	return nil
}

func (c *CachedStore) Execute(ctx context.Context, token id.AccessToken, validate func(*models.ReviewRecord) error, mutate func(*models.ReviewRecord)) (*models.ReviewRecord, error) {
	r, err := c.Backing.Execute(ctx, token, validate, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidateAfterCommit(ctx, token)
	return r, nil
}

func (c *CachedStore) populate(ctx context.Context, r *models.ReviewRecord) {
	if !c.breaker.Allow() {
		return
	}
	raw, err := json.Marshal(cachedReview{Record: models.ToResponse(r), CheckoutSessionID: r.CheckoutSessionID})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tokenKey(r.AccessToken), raw, c.ttl).Err(); err != nil {
		c.recordFailure(err)
		return
	}
	c.recordSuccess()
}

// invalidateAfterCommit drops the entry before the write is visible and again
// after it commits, so a lookup racing the transaction cannot leave the old
// row cached.
func (c *CachedStore) invalidateAfterCommit(ctx context.Context, token id.AccessToken) {
	c.invalidate(ctx, token)
	tx.AfterCommit(ctx, func(ctx context.Context) {
		c.invalidate(context.WithoutCancel(ctx), token)
	})
}

// invalidate deletes the entry. On failure the token is marked stale and
// reports false.
func (c *CachedStore) invalidate(ctx context.Context, token id.AccessToken) bool {
	if err := c.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		c.markStale(token)
		c.recordFailure(err)
		c.logger.Warn("review cache invalidation failed",
			zap.String("key", tokenKey(token)),
			zap.Error(err),
		)
		return false
	}
	c.mu.Lock()
	delete(c.stale, token)
	c.mu.Unlock()
	c.recordSuccess()
	return true
}

func (c *CachedStore) markStale(token id.AccessToken) {
	c.mu.Lock()
	c.stale[token] = struct{}{}
	c.mu.Unlock()
}

func (c *CachedStore) isStale(token id.AccessToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stale[token]
	return ok
}

func (c *CachedStore) recordFailure(err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("review cache circuit opened", zap.Error(err))
	}
}

func (c *CachedStore) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("review cache circuit closed")
	}
}

func decodeCached(raw []byte) (*models.ReviewRecord, error) {
	var cr cachedReview
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, err
	}
	reviewID, err := id.ParseReviewID(cr.Record.ID)
	if err != nil {
		return nil, err
	}
	progress, err := models.ParseSections(cr.Record.FormProgress)
	if err != nil {
		return nil, err
	}
	return &models.ReviewRecord{
		ID:                reviewID,
		AccessToken:       id.AccessToken(cr.Record.AccessToken),
		CheckoutSessionID: cr.CheckoutSessionID,
		CustomerEmail:     cr.Record.CustomerEmail,
		FormData:          cr.Record.FormData,
		FormProgress:      progress,
		Status:            models.Status(cr.Record.Status),
		EscalationFlags:   models.ParseFlags(cr.Record.EscalationFlags),
		AmbiguityScore:    cr.Record.AmbiguityScore,
		CreatedAt:         cr.Record.CreatedAt,
		UpdatedAt:         cr.Record.UpdatedAt,
		SubmittedAt:       cr.Record.SubmittedAt,
	}, nil
}
