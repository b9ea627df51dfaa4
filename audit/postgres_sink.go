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
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// PostgresSinkOption configures a PostgresSink at construction.
type PostgresSinkOption func(*PostgresSink)

// WithBatchSize overrides the default batch size of 100.
func WithBatchSize(n int) PostgresSinkOption {
	return func(s *PostgresSink) { s.batchSize = n }
}

// WithFlushInterval overrides the default 5 second flush ticker.
func WithFlushInterval(d time.Duration) PostgresSinkOption {
	return func(s *PostgresSink) { s.flushInterval = d }
}

// PostgresSink batches AuditRecord writes to a `audit_records` table,
// generalized from the teacher's AuditLogger/BatchWriter
// (orchestrator/audit_logger.go): a bounded queue drained by a background
// goroutine, flushed on a ticker, on the batch filling, or at Close.
type PostgresSink struct {
	db            *sql.DB
	queue         chan mpcgw.AuditRecord
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []mpcgw.AuditRecord

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewPostgresSink opens db (already connected via sql.Open("postgres",
// ...)), ensures the audit_records table exists, and starts the
// background batching worker.
func NewPostgresSink(db *sql.DB, opts ...PostgresSinkOption) (*PostgresSink, error) {
	if err := createAuditTable(db); err != nil {
		return nil, err
	}

	s := &PostgresSink{
		db:            db,
		queue:         make(chan mpcgw.AuditRecord, 10000),
		batchSize:     100,
		flushInterval: 5 * time.Second,
		shutdown:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

func createAuditTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			request_id VARCHAR(64) NOT NULL,
			principal_hash VARCHAR(64) NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			attrs JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_records_request_id ON audit_records(request_id);
		CREATE INDEX IF NOT EXISTS idx_audit_records_event_type ON audit_records(event_type);
	`)
	return err
}

// Write enqueues rec. If the queue is full the record is written
// synchronously rather than dropped, following the teacher's
// enqueueEntry fallback.
func (s *PostgresSink) Write(rec mpcgw.AuditRecord) {
	select {
	case s.queue <- rec:
	default:
		log.Printf("audit: queue full, writing record directly")
		s.add(rec)
		_ = s.Flush()
	}
}

func (s *PostgresSink) add(rec mpcgw.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
}

func (s *PostgresSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-s.queue:
			s.mu.Lock()
			s.pending = append(s.pending, rec)
			full := len(s.pending) >= s.batchSize
			s.mu.Unlock()
			if full {
				_ = s.Flush()
			}
		case <-ticker.C:
			_ = s.Flush()
		case <-s.shutdown:
			for drained := false; !drained; {
				select {
				case rec := <-s.queue:
					s.add(rec)
				default:
					drained = true
				}
			}
			_ = s.Flush()
			return
		}
	}
}

// Flush writes every pending record in one transaction.
func (s *PostgresSink) Flush() error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO audit_records (timestamp, request_id, principal_hash, event_type, outcome, attrs)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range batch {
		attrsJSON, _ := json.Marshal(rec.Attrs)
		if _, err := stmt.Exec(rec.Timestamp, rec.RequestID, rec.PrincipalHash, string(rec.EventType), rec.Outcome, attrsJSON); err != nil {
			log.Printf("audit: failed to insert record: %v", err)
		}
	}

	return tx.Commit()
}

// Close signals the worker to stop, flushing whatever remains, then waits
// for it to exit.
func (s *PostgresSink) Close() error {
	close(s.shutdown)
	s.wg.Wait()
	return nil
}
