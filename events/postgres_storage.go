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
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// PostgresStorage persists events and anomalies to `events` and
// `anomalies` tables, adapted from the teacher's
// BatchWriter/createAuditTables pattern (orchestrator/audit_logger.go) but
// writing synchronously: spec.md §4.6 requires a write be durable before
// the pipeline reports completion, so there is no batching queue here,
// only a mutex serializing writers (the single-writer guarantee the spec
// asks for).
type PostgresStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPostgresStorage opens the events/anomalies tables against db
// (already connected via sql.Open("postgres", ...)).
func NewPostgresStorage(db *sql.DB) (*PostgresStorage, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			principal_hash VARCHAR(64) NOT NULL,
			provider VARCHAR(64),
			model VARCHAR(128),
			latency_ms BIGINT,
			tokens JSONB,
			cost_usd DOUBLE PRECISION,
			success BOOLEAN,
			error_code VARCHAR(64),
			has_pii BOOLEAN,
			pii_types JSONB,
			injection_detected BOOLEAN,
			risk_level VARCHAR(16)
		);
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_provider ON events(provider);
		CREATE INDEX IF NOT EXISTS idx_events_model ON events(model);
		CREATE INDEX IF NOT EXISTS idx_events_risk_level ON events(risk_level);

		CREATE TABLE IF NOT EXISTS anomalies (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(64),
			timestamp TIMESTAMPTZ NOT NULL,
			type VARCHAR(64) NOT NULL,
			severity VARCHAR(16) NOT NULL,
			description TEXT,
			details JSONB,
			recommended_action TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_anomalies_severity ON anomalies(severity);
	`); err != nil {
		return nil, err
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) InsertEvent(event mpcgw.AIEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokensJSON, _ := json.Marshal(event.Tokens)
	piiTypesJSON, _ := json.Marshal(event.PIITypes)

	_, err := s.db.Exec(`
		INSERT INTO events (request_id, timestamp, principal_hash, provider, model, latency_ms,
			tokens, cost_usd, success, error_code, has_pii, pii_types, injection_detected, risk_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, event.RequestID, event.Timestamp, event.PrincipalHash, event.Provider, event.Model, event.LatencyMS,
		tokensJSON, event.CostUSD, event.Success, string(event.ErrorCode), event.HasPII, piiTypesJSON,
		event.InjectionDetected, string(event.RiskLevel))
	return err
}

func (s *PostgresStorage) InsertAnomaly(anomaly mpcgw.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, _ := json.Marshal(anomaly.Details)
	_, err := s.db.Exec(`
		INSERT INTO anomalies (event_id, timestamp, type, severity, description, details, recommended_action)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, anomaly.EventID, anomaly.Timestamp, anomaly.Type, string(anomaly.Severity), anomaly.Description, detailsJSON, anomaly.RecommendedAction)
	return err
}

func (s *PostgresStorage) RecentEvents(n int) []mpcgw.AIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT request_id, timestamp, principal_hash, provider, model, latency_ms,
		cost_usd, success, error_code, has_pii, injection_detected, risk_level
		FROM events ORDER BY timestamp DESC LIMIT $1`, n)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []mpcgw.AIEvent
	for rows.Next() {
		var e mpcgw.AIEvent
		var errorCode, riskLevel string
		if err := rows.Scan(&e.RequestID, &e.Timestamp, &e.PrincipalHash, &e.Provider, &e.Model, &e.LatencyMS,
			&e.CostUSD, &e.Success, &errorCode, &e.HasPII, &e.InjectionDetected, &riskLevel); err != nil {
			continue
		}
		e.ErrorCode = mpcgw.ErrorCode(errorCode)
		e.RiskLevel = mpcgw.RiskLevel(riskLevel)
		out = append(out, e)
	}
	return out
}

func (s *PostgresStorage) AnomaliesBySeverity(sev mpcgw.AnomalySeverity) []mpcgw.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT event_id, timestamp, type, severity, description, recommended_action
		FROM anomalies WHERE severity = $1 ORDER BY timestamp DESC`, string(sev))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []mpcgw.Anomaly
	for rows.Next() {
		var a mpcgw.Anomaly
		var severity string
		if err := rows.Scan(&a.EventID, &a.Timestamp, &a.Type, &severity, &a.Description, &a.RecommendedAction); err != nil {
			continue
		}
		a.Severity = mpcgw.AnomalySeverity(severity)
		out = append(out, a)
	}
	return out
}

func (s *PostgresStorage) AggregateStats(window time.Duration) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	var avgLatency sql.NullFloat64
	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN NOT success THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(cost_usd), 0), AVG(latency_ms)
		FROM events WHERE timestamp >= NOW() - $1 * INTERVAL '1 second'
	`, window.Seconds())
	if err := row.Scan(&stats.EventCount, &stats.ErrorCount, &stats.TotalCostUSD, &avgLatency); err != nil {
		return Stats{}
	}
	if avgLatency.Valid {
		stats.AvgLatencyMS = avgLatency.Float64
	}
	return stats
}
