package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
)

const keyPrefix = "winedash:"

// maxRelativeExp is the largest expiration memcached treats as relative seconds.
// Larger values are read as absolute unix timestamps.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedBackend implements Backend using memcached.
// Keys are scoped to the process: a restarted service starts with empty slots
// even when memcached kept the previous process's entries.
type MemcachedBackend struct {
	client     *memcache.Client
	now        func() time.Time
	generation string
}

// NewMemcachedBackend creates a MemcachedBackend. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedBackend(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedBackend, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedBackend{client: client, now: time.Now, generation: uuid.New().String()}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedBackend) key(k string) string {
	return keyPrefix + c.generation + ":" + k
}

// Get implements Backend.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

// Set implements Backend.Set. A zero ttl stores the item without expiry.
func (c *MemcachedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      value,
		Expiration: c.expiration(ttl),
	})
}

func (c *MemcachedBackend) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	sec := int64(ttl / time.Second)
	if sec < 1 {
		sec = 1
	}
	if sec > maxRelativeExp {
		return int32(c.now().Add(ttl).Unix())
	}
	return int32(sec)
}

// Delete implements Backend.Delete. A missing key is not an error.
func (c *MemcachedBackend) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(c.key(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedBackend) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedBackend) Close() error {
	return c.client.Close()
}
