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
	"fmt"
	"sync"

	"github.com/axonflow-gateway/mpc-gateway/backend"
	"github.com/axonflow-gateway/mpc-gateway/registry"
)

// adapterSet pairs the Backend Registry's descriptors (used for routing
// decisions) with the concrete backend.Backend implementations (used for
// invocation), keeping both in lockstep behind RegisterBackend.
type adapterSet struct {
	mu       sync.RWMutex
	registry *registry.Registry
	byID     map[string]backend.Backend
}

func newAdapterSet(reg *registry.Registry) *adapterSet {
	return &adapterSet{registry: reg, byID: make(map[string]backend.Backend)}
}

// register adds b to both the routing catalog and the invocation table.
func (s *adapterSet) register(b backend.Backend) error {
	desc := b.Describe()
	if err := s.registry.Register(&desc); err != nil {
		return err
	}
	s.mu.Lock()
	s.byID[desc.ID] = b
	s.mu.Unlock()
	return nil
}

func (s *adapterSet) get(id string) (backend.Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("gateway: no adapter registered for backend id %q", id)
	}
	return b, nil
}
