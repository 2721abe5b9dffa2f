package enduse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionPrefix = "enduse:version:"
	bumpChannel   = "enduse.bump"
)

// Cache keeps computed breakdowns in Redis. Every building carries its own
// version counter, so refreshing one building never evicts another's rows.
// A nil Cache, or one without a client, is a pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Version returns the building's cache version, initialising it to one.
func (c *Cache) Version(ctx context.Context, buildingID string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	key := versionPrefix + buildingID
	if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
		return 0, err
	}
	ver, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0, err
	}
	return max(ver, 1), nil
}

// key places the request under the building's current version.
func (c *Cache) key(ctx context.Context, req Request) (string, error) {
	ver, err := c.Version(ctx, req.Building.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", req.key(), ver), nil
}

// Load returns the cached breakdown of req or computes and stores it with
// compute. Redis failures are returned; callers fall back to compute.
func (c *Cache) Load(ctx context.Context, req Request, compute func(context.Context) (Breakdown, error)) (Breakdown, error) {
	if !c.enabled() {
		return compute(ctx)
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return Breakdown{}, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out Breakdown
		if err := json.Unmarshal(payload, &out); err != nil {
			return Breakdown{}, fmt.Errorf("enduse: decode cached breakdown: %w", err)
		}
		return out, nil
	case !errors.Is(err, redis.Nil):
		return Breakdown{}, err
	}
	out, err := compute(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return Breakdown{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Bump invalidates every cached breakdown of a building and announces the new
// version as "<buildingID>:<version>".
func (c *Cache) Bump(ctx context.Context, buildingID string) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionPrefix+buildingID).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, buildingID+":"+strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation applies version bumps published by other processes.
// Older versions than the stored one are ignored.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) applyBump(ctx context.Context, payload string) {
	buildingID, raw, ok := strings.Cut(payload, ":")
	if !ok || buildingID == "" {
		return
	}
	ver, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	current, err := c.Version(ctx, buildingID)
	if err != nil || current >= ver {
		return
	}
	_ = c.client.Set(ctx, versionPrefix+buildingID, ver, 0).Err()
}
