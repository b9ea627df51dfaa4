// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// DefaultIdempotencyTTL matches spec.md §4.5's default 15 minute window.
const DefaultIdempotencyTTL = 15 * time.Minute

// idempotencyKey builds the cache key from (principal.subject,
// idempotency_key), the pair spec.md §4.5 keys the cache on.
func idempotencyKey(subject, key string) string {
	return subject + "\x00" + key
}

// IdempotencyCache caches terminal responses keyed by
// (principal.subject, idempotency_key). Implementations must be safe for
// concurrent use.
type IdempotencyCache interface {
	Get(subject, key string) (*mpcgw.Response, bool)
	Set(subject, key string, resp mpcgw.Response, ttl time.Duration)
	Close()
}

type cacheEntry struct {
	response  mpcgw.Response
	expiresAt time.Time
}

// MemoryIdempotencyCacheOption configures a MemoryIdempotencyCache.
type MemoryIdempotencyCacheOption func(*MemoryIdempotencyCache)

// WithSweepInterval overrides the default 1 minute TTL-eviction sweep.
func WithSweepInterval(d time.Duration) MemoryIdempotencyCacheOption {
	return func(c *MemoryIdempotencyCache) { c.sweepInterval = d }
}

// MemoryIdempotencyCache is the single-process default: a sync.Map plus a
// background goroutine sweeping expired entries, generalized from the
// teacher's striped rateLimitMap/rateLimitMu pattern (agent/auth.go) but
// using sync.Map since entries are independent and short-lived.
type MemoryIdempotencyCache struct {
	entries       sync.Map // string -> cacheEntry
	sweepInterval time.Duration
	shutdown      chan struct{}
	wg            sync.WaitGroup
}

// NewMemoryIdempotencyCache builds a MemoryIdempotencyCache and starts its
// sweep goroutine.
func NewMemoryIdempotencyCache(opts ...MemoryIdempotencyCacheOption) *MemoryIdempotencyCache {
	c := &MemoryIdempotencyCache{
		sweepInterval: time.Minute,
		shutdown:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.wg.Add(1)
	go c.sweep()
	return c
}

func (c *MemoryIdempotencyCache) sweep() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.entries.Range(func(k, v interface{}) bool {
				if entry, ok := v.(cacheEntry); ok && now.After(entry.expiresAt) {
					c.entries.Delete(k)
				}
				return true
			})
		case <-c.shutdown:
			return
		}
	}
}

// Get returns the cached response for (subject, key) if present and not
// expired.
func (c *MemoryIdempotencyCache) Get(subject, key string) (*mpcgw.Response, bool) {
	v, ok := c.entries.Load(idempotencyKey(subject, key))
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	resp := entry.response
	return &resp, true
}

// Set stores resp under (subject, key) with the given TTL.
func (c *MemoryIdempotencyCache) Set(subject, key string, resp mpcgw.Response, ttl time.Duration) {
	c.entries.Store(idempotencyKey(subject, key), cacheEntry{response: resp, expiresAt: time.Now().Add(ttl)})
}

// Close stops the sweep goroutine. Entries are dropped, matching spec.md
// §6's "Idempotency Cache ... cleared on shutdown."
func (c *MemoryIdempotencyCache) Close() {
	close(c.shutdown)
	c.wg.Wait()
	c.entries.Range(func(k, _ interface{}) bool {
		c.entries.Delete(k)
		return true
	})
}

// RedisIdempotencyCache is the multi-process variant named in the DOMAIN
// STACK table, sharing cached responses across gateway instances. Modeled
// on pii.RedisTokenStore's client-wrapping shape.
type RedisIdempotencyCache struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyCache wraps an existing Redis client.
func NewRedisIdempotencyCache(client *redis.Client) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{client: client, prefix: "gw:idem:"}
}

func (c *RedisIdempotencyCache) Get(subject, key string) (*mpcgw.Response, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, c.prefix+idempotencyKey(subject, key)).Bytes()
	if err != nil {
		return nil, false
	}
	var resp mpcgw.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (c *RedisIdempotencyCache) Set(subject, key string, resp mpcgw.Response, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+idempotencyKey(subject, key), raw, ttl)
}

// Close is a no-op: the wrapped *redis.Client is owned by the caller.
func (c *RedisIdempotencyCache) Close() {}
