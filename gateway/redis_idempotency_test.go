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
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

func newTestRedisIdempotencyCache(t *testing.T) (*RedisIdempotencyCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyCache(client), mr
}

func TestRedisIdempotencyCache_SetGet(t *testing.T) {
	cache, _ := newTestRedisIdempotencyCache(t)

	resp := mpcgw.Response{RequestID: "req-1", Status: mpcgw.StatusOK, Result: json.RawMessage(`"cached answer"`)}
	cache.Set("user-1", "idem-key-1", resp, DefaultIdempotencyTTL)

	got, ok := cache.Get("user-1", "idem-key-1")
	require.True(t, ok)
	require.Equal(t, resp.RequestID, got.RequestID)
	require.JSONEq(t, string(resp.Result), string(got.Result))
}

func TestRedisIdempotencyCache_MissOnUnknownKey(t *testing.T) {
	cache, _ := newTestRedisIdempotencyCache(t)

	_, ok := cache.Get("user-1", "never-set")
	require.False(t, ok)
}

func TestRedisIdempotencyCache_ScopedBySubject(t *testing.T) {
	cache, _ := newTestRedisIdempotencyCache(t)

	resp := mpcgw.Response{RequestID: "req-2", Status: mpcgw.StatusOK, Result: json.RawMessage(`"for user-1 only"`)}
	cache.Set("user-1", "shared-key", resp, DefaultIdempotencyTTL)

	_, ok := cache.Get("user-2", "shared-key")
	require.False(t, ok, "entries must be scoped by subject even when the idempotency key collides")
}

func TestRedisIdempotencyCache_ExpiresAfterTTL(t *testing.T) {
	cache, mr := newTestRedisIdempotencyCache(t)

	resp := mpcgw.Response{RequestID: "req-3", Status: mpcgw.StatusOK, Result: json.RawMessage(`"short-lived"`)}
	cache.Set("user-1", "ttl-key", resp, 5*time.Second)

	_, ok := cache.Get("user-1", "ttl-key")
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	_, ok = cache.Get("user-1", "ttl-key")
	require.False(t, ok)
}
