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

package audit

import (
	"sync"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Sink accepts audit records. Write must never block the caller for long;
// implementations that persist asynchronously queue internally.
type Sink interface {
	Write(rec mpcgw.AuditRecord)
	Flush() error
	Close() error
}

// MemorySink stores records in process memory, for tests and for the
// reference in-memory deployment mode.
type MemorySink struct {
	mu      sync.Mutex
	records []mpcgw.AuditRecord
}

// NewMemorySink builds an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(rec mpcgw.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Flush is a no-op: MemorySink has nothing buffered beyond its slice.
func (s *MemorySink) Flush() error { return nil }

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Records returns a snapshot of every record written so far.
func (s *MemorySink) Records() []mpcgw.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mpcgw.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
