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

package pii

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisTokenStore is the multi-process variant of TokenStore: tokens are
// shared across every gateway instance, at the cost of detokenize being
// able to outlive a single process (spec.md §4.3 only requires in-process
// round-trip; this is a deliberate opt-in extension, never the default).
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisTokenStore wraps an existing Redis client. ttl bounds how long a
// token remains detokenizable; zero means no expiry.
func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl, prefix: "pii:tok:"}
}

func (s *RedisTokenStore) tokenKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return s.prefix + "v:" + hex.EncodeToString(sum[:12])
}

// TokenFor returns the stable token for value, minting and storing the
// reverse mapping in Redis on first sight.
func (s *RedisTokenStore) TokenFor(value string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := s.tokenKey(value)
	tok := "tok_" + key[len(key)-16:]
	s.client.Set(ctx, s.prefix+"t:"+tok, value, s.ttl)
	return tok
}

// ValueFor looks up the original value for a token previously minted by
// TokenFor, on any process sharing this Redis instance.
func (s *RedisTokenStore) ValueFor(token string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+"t:"+token).Result()
	if err != nil {
		return "", false
	}
	return v, true
}
