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

package registry

import (
	"fmt"
	"sync/atomic"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/shared/logger"
)

// Error carries a stable code, generalized from the teacher's
// RegistryError/ProviderError shape (orchestrator/llm/registry.go,
// orchestrator/llm/types.go).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

const (
	ErrCodeInvalidBackend = "INVALID_BACKEND"
	ErrCodeDuplicateID    = "DUPLICATE_ID"
	ErrCodeNotFound       = "NOT_FOUND"
)

// snapshot is the immutable view readers see. Replacing the Registry's
// *snapshot pointer is the only mutation path once built.
type snapshot struct {
	backends map[string]*mpcgw.Backend
	ordered  []*mpcgw.Backend
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger attaches a structured logger, following the teacher's
// RegistryOption/WithLogger pattern.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Registry is the Backend Registry of spec.md §2: an in-memory catalog of
// Backend descriptors, read-only during request handling, reloadable only
// by atomic pointer swap.
type Registry struct {
	snap   atomic.Pointer[snapshot]
	logger *logger.Logger
}

// New builds an empty Registry. Backends are added with Register or a
// whole catalog is installed at once with Reload.
func New(opts ...Option) *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{backends: map[string]*mpcgw.Backend{}})
	for _, o := range opts {
		o(r)
	}
	return r
}

func validateBackend(b *mpcgw.Backend) *Error {
	if b == nil || b.ID == "" {
		return &Error{Code: ErrCodeInvalidBackend, Message: "backend id must not be empty"}
	}
	if b.CostPer1KTokens < 0 {
		return &Error{Code: ErrCodeInvalidBackend, Message: "cost_per_1k_tokens must be >= 0"}
	}
	if b.MaxTokens <= 0 {
		return &Error{Code: ErrCodeInvalidBackend, Message: "max_tokens must be > 0"}
	}
	if b.PIIAllowed && !b.SensitivityAllowed[mpcgw.SensitivityPII] {
		return &Error{Code: ErrCodeInvalidBackend, Message: "pii_allowed requires pii in sensitivity_allowed"}
	}
	return nil
}

// Register adds a single backend to the catalog by copy-on-write: build a
// new snapshot, validate, then swap the pointer.
func (r *Registry) Register(b *mpcgw.Backend) error {
	if err := validateBackend(b); err != nil {
		return err
	}

	cur := r.snap.Load()
	if _, exists := cur.backends[b.ID]; exists {
		return &Error{Code: ErrCodeDuplicateID, Message: "backend already registered: " + b.ID}
	}

	next := &snapshot{backends: make(map[string]*mpcgw.Backend, len(cur.backends)+1)}
	for id, existing := range cur.backends {
		next.backends[id] = existing
	}
	next.backends[b.ID] = b
	next.ordered = append(append([]*mpcgw.Backend{}, cur.ordered...), b)

	r.snap.Store(next)
	if r.logger != nil {
		r.logger.Info("", "", "backend registered", map[string]interface{}{"backend_id": b.ID, "type": string(b.Type)})
	}
	return nil
}

// Reload atomically replaces the entire catalog with backends, per
// spec.md §9's "reloads performed by atomic pointer swap" design note.
func (r *Registry) Reload(backends []*mpcgw.Backend) error {
	next := &snapshot{backends: make(map[string]*mpcgw.Backend, len(backends))}
	for _, b := range backends {
		if err := validateBackend(b); err != nil {
			return err
		}
		if _, dup := next.backends[b.ID]; dup {
			return &Error{Code: ErrCodeDuplicateID, Message: "duplicate backend id in reload set: " + b.ID}
		}
		next.backends[b.ID] = b
		next.ordered = append(next.ordered, b)
	}

	r.snap.Store(next)
	if r.logger != nil {
		r.logger.Info("", "", "registry reloaded", map[string]interface{}{"backend_count": len(backends)})
	}
	return nil
}

// Get returns the backend with id, or ErrCodeNotFound.
func (r *Registry) Get(id string) (*mpcgw.Backend, error) {
	cur := r.snap.Load()
	b, ok := cur.backends[id]
	if !ok {
		return nil, &Error{Code: ErrCodeNotFound, Message: "no such backend: " + id}
	}
	return b, nil
}

// All returns every registered backend, in registration/reload order. The
// returned slice is a snapshot; later Register/Reload calls never mutate
// it out from under a caller mid-iteration.
func (r *Registry) All() []*mpcgw.Backend {
	cur := r.snap.Load()
	out := make([]*mpcgw.Backend, len(cur.ordered))
	copy(out, cur.ordered)
	return out
}

// Len reports how many backends are currently registered.
func (r *Registry) Len() int {
	return len(r.snap.Load().backends)
}
