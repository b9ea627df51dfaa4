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

package events

import (
	"sync"
	"time"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Stats is an aggregate computed over a time window.
type Stats struct {
	EventCount   int
	ErrorCount   int
	TotalCostUSD float64
	AvgLatencyMS float64
}

// Storage is the append-only persistence boundary for events and
// anomalies. Per spec.md §4.6, writes must be durable before the pipeline
// reports completion, and concurrent writers are serialized by the
// implementation (a single-writer guarantee per process).
type Storage interface {
	InsertEvent(event mpcgw.AIEvent) error
	InsertAnomaly(anomaly mpcgw.Anomaly) error
	RecentEvents(n int) []mpcgw.AIEvent
	AnomaliesBySeverity(sev mpcgw.AnomalySeverity) []mpcgw.Anomaly
	AggregateStats(window time.Duration) Stats
}

// MemoryStorage is an in-process Storage, indexed only by insertion order;
// suitable for tests and the reference in-memory deployment mode.
type MemoryStorage struct {
	mu        sync.Mutex
	events    []mpcgw.AIEvent
	anomalies []mpcgw.Anomaly
	now       func() time.Time
}

// NewMemoryStorage builds an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{now: time.Now}
}

func (s *MemoryStorage) InsertEvent(event mpcgw.AIEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStorage) InsertAnomaly(anomaly mpcgw.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, anomaly)
	return nil
}

func (s *MemoryStorage) RecentEvents(n int) []mpcgw.AIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]mpcgw.AIEvent, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

func (s *MemoryStorage) AnomaliesBySeverity(sev mpcgw.AnomalySeverity) []mpcgw.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mpcgw.Anomaly
	for _, a := range s.anomalies {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemoryStorage) AggregateStats(window time.Duration) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-window)

	var stats Stats
	var totalLatency int64
	for _, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		stats.EventCount++
		if !e.Success {
			stats.ErrorCount++
		}
		stats.TotalCostUSD += e.CostUSD
		totalLatency += e.LatencyMS
	}
	if stats.EventCount > 0 {
		stats.AvgLatencyMS = float64(totalLatency) / float64(stats.EventCount)
	}
	return stats
}
