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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

func TestMemoryStorage_InsertAndRecent(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.InsertEvent(mpcgw.AIEvent{RequestID: "r1"}))
	require.NoError(t, s.InsertEvent(mpcgw.AIEvent{RequestID: "r2"}))

	recent := s.RecentEvents(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "r2", recent[0].RequestID)
}

func TestMemoryStorage_AnomaliesBySeverity(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.InsertAnomaly(mpcgw.Anomaly{Severity: mpcgw.SeverityHigh}))
	require.NoError(t, s.InsertAnomaly(mpcgw.Anomaly{Severity: mpcgw.SeverityCritical}))

	high := s.AnomaliesBySeverity(mpcgw.SeverityHigh)
	require.Len(t, high, 1)
}

func TestMemoryStorage_AggregateStats(t *testing.T) {
	now := time.Now()
	s := NewMemoryStorage()
	s.now = func() time.Time { return now }
	require.NoError(t, s.InsertEvent(mpcgw.AIEvent{Timestamp: now, Success: true, CostUSD: 1, LatencyMS: 100}))
	require.NoError(t, s.InsertEvent(mpcgw.AIEvent{Timestamp: now, Success: false, CostUSD: 2, LatencyMS: 300}))

	stats := s.AggregateStats(time.Hour)
	assert.Equal(t, 2, stats.EventCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.InDelta(t, 3.0, stats.TotalCostUSD, 1e-9)
	assert.InDelta(t, 200.0, stats.AvgLatencyMS, 1e-9)
}

func TestPostgresStorage_InsertEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresStorage(db)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.InsertEvent(mpcgw.AIEvent{RequestID: "r1", Timestamp: time.Now()}))

	assert.NoError(t, mock.ExpectationsWereMet())
}
