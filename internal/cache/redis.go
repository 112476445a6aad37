package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
	"github.com/actuallystonmai/cinema-recommendation/internal/metrics"
)

const (
	defaultTTL = 10 * time.Minute

	// CatalogChannel carries domain.CatalogEvent payloads between instances.
	CatalogChannel = "catalog:changed"

	breakerName      = "redis"
	breakerThreshold = 5
)

type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is passed by value
func NewCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &Cache{
		client: client,
		ttl:    ttl,
		logger: logging.Component(logger, "cache"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			c.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))
	return c
}

// Epoch is the invalidation counter pair a cached list was ranked under.
// Any ClearViewerCache or ClearAll moves it forward.
type Epoch struct {
	Viewer int64
	Global int64
}

// globalEpochKey sits outside the rec:viewer: prefix so ClearAll never deletes it.
const globalEpochKey = "rec:epoch:all"

func buildKey(viewerID int64, limit int) string {
	return fmt.Sprintf("rec:viewer:%d:limit:%d", viewerID, limit)
}

func viewerEpochKey(viewerID int64) string {
	return fmt.Sprintf("rec:epoch:viewer:%d", viewerID)
}

// storeIfCurrent writes a list only while both epochs still match the ones
// read before ranking. KEYS: list, viewer epoch, global epoch.
// ARGV: viewer epoch, global epoch, payload, ttl in ms.
var storeIfCurrent = redis.NewScript(`
local function current(key)
	local v = redis.call('GET', key)
	if not v then return '0' end
	return v
end
if current(KEYS[2]) ~= ARGV[1] or current(KEYS[3]) ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
return 1
`)

// Epoch reads the viewer's current invalidation epoch. Read it before
// loading ranking inputs and hand it back to Set.
func (c *Cache) Epoch(ctx context.Context, viewerID int64) (Epoch, error) {
	var vals []any
	_, err := c.breaker.Execute(func() ([]byte, error) {
		var err error
		vals, err = c.client.MGet(ctx, viewerEpochKey(viewerID), globalEpochKey).Result()
		return nil, err
	})
	if err != nil {
		return Epoch{}, fmt.Errorf("read cache epoch: %w", err)
	}

	viewer, err := parseEpoch(vals[0])
	if err != nil {
		return Epoch{}, err
	}
	global, err := parseEpoch(vals[1])
	if err != nil {
		return Epoch{}, err
	}
	return Epoch{Viewer: viewer, Global: global}, nil
}

func parseEpoch(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("parse cache epoch: unexpected %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache epoch: %w", err)
	}
	return n, nil
}

// Get recommendations from cache. The bool reports a hit.
func (c *Cache) Get(ctx context.Context, viewerID int64, limit int) ([]domain.ScoredRecommendation, bool, error) {
	key := buildKey(viewerID, limit)
	val, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get recommendations from cache: %w", err)
	}

	var recs []domain.ScoredRecommendation
	if err := json.Unmarshal(val, &recs); err != nil {
		return nil, false, fmt.Errorf("unmarshal recommendations %s: %w", key, err)
	}
	return recs, true, nil
}

// Store recommendations in cache. The list is dropped, and false returned,
// when the viewer was invalidated after epoch was read.
func (c *Cache) Set(ctx context.Context, viewerID int64, limit int, epoch Epoch, recs []domain.ScoredRecommendation) (bool, error) {
	key := buildKey(viewerID, limit)
	val, err := json.Marshal(recs)
	if err != nil {
		return false, fmt.Errorf("marshal recommendations: %w", err)
	}

	var stored int
	_, err = c.breaker.Execute(func() ([]byte, error) {
		var err error
		stored, err = storeIfCurrent.Run(ctx, c.client,
			[]string{key, viewerEpochKey(viewerID), globalEpochKey},
			epoch.Viewer, epoch.Global, val, c.ttl.Milliseconds(),
		).Int()
		return nil, err
	})
	if err != nil {
		return false, fmt.Errorf("set recommendations in cache: %w", err)
	}
	if stored == 0 {
		c.logger.Debug().Int64("viewer_id", viewerID).Msg("stale list not cached")
	}
	return stored == 1, nil
}

// Clear viewer cache: used when ratings or activity change. The epoch moves
// before the delete so an in-flight ranking cannot write its list back.
func (c *Cache) ClearViewerCache(ctx context.Context, viewerID int64) error {
	if err := c.bumpEpoch(ctx, viewerEpochKey(viewerID)); err != nil {
		return err
	}
	return c.deletePattern(ctx, fmt.Sprintf("rec:viewer:%d:limit:*", viewerID))
}

// ClearAll drops every cached list; any catalogue change can reorder them.
func (c *Cache) ClearAll(ctx context.Context) error {
	if err := c.bumpEpoch(ctx, globalEpochKey); err != nil {
		return err
	}
	return c.deletePattern(ctx, "rec:viewer:*")
}

func (c *Cache) bumpEpoch(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Incr(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("bump cache epoch %s: %w", key, err)
	}
	return nil
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return nil, fmt.Errorf("cache delete %s: %w", iter.Val(), err)
			}
		}
		return nil, iter.Err()
	})
	return err
}

// NewCatalogEvent stamps a catalogue change with a fresh id.
func NewCatalogEvent(reason string) domain.CatalogEvent {
	return domain.CatalogEvent{
		ID:         uuid.NewString(),
		Reason:     reason,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// PublishCatalogChanged broadcasts ev to every subscribed instance.
func (c *Cache) PublishCatalogChanged(ctx context.Context, ev domain.CatalogEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal catalog event: %w", err)
	}
	if err := c.client.Publish(ctx, CatalogChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish catalog event: %w", err)
	}
	metrics.CatalogEvents.WithLabelValues("published").Inc()
	return nil
}

// SubscribeCatalog calls handle for each catalogue event until ctx is done
// or the subscription breaks. Malformed payloads are logged and skipped.
func (c *Cache) SubscribeCatalog(ctx context.Context, handle func(domain.CatalogEvent)) error {
	sub := c.client.Subscribe(ctx, CatalogChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", CatalogChannel, err)
	}
	c.logger.Info().Str("channel", CatalogChannel).Msg("subscribed to catalog events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription %s closed", CatalogChannel)
			}
			ev, err := decodeCatalogEvent(msg.Payload)
			if err != nil {
				c.logger.Warn().Err(err).Msg("skipping catalog event")
				continue
			}
			metrics.CatalogEvents.WithLabelValues("received").Inc()
			handle(ev)
		}
	}
}

func decodeCatalogEvent(payload string) (domain.CatalogEvent, error) {
	var ev domain.CatalogEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decode catalog event: %w", err)
	}
	return ev, nil
}

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
