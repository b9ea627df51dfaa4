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

	"github.com/google/uuid"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/shared/logger"
)

// DefaultQueueCapacity is the bounded event queue size of spec.md §5.
const DefaultQueueCapacity = 4096

// DefaultDrainDeadline bounds the synchronous fallback write used when the
// queue is full, per spec.md §5's "falls back to a synchronous drain with
// a short deadline."
const DefaultDrainDeadline = 200 * time.Millisecond

// PipelineOption configures a Pipeline at construction.
type PipelineOption func(*Pipeline)

// WithQueueCapacity overrides the default bounded queue size.
func WithQueueCapacity(n int) PipelineOption {
	return func(p *Pipeline) { p.queueCapacity = n }
}

// WithAlertEmitter overrides the default StderrAlertEmitter.
func WithAlertEmitter(e AlertEmitter) PipelineOption {
	return func(p *Pipeline) { p.alerter = e }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline is the asynchronous Event Pipeline of spec.md §4.6: a single
// consumer goroutine draining a bounded channel, enriching each raw event,
// running anomaly detection, and persisting both. Events for a given
// request_id are delivered in the order Submit was called (single
// consumer, FIFO channel), satisfying the causal-order guarantee of
// spec.md §5.
type Pipeline struct {
	queue         chan pipelineJob
	queueCapacity int
	processor     *Processor
	detector      *AnomalyDetector
	storage       Storage
	alerter       AlertEmitter
	logger        *logger.Logger

	wg       sync.WaitGroup
	shutdown chan struct{}
}

type pipelineJob struct {
	event     mpcgw.AIEvent
	pii       mpcgw.PIIResult
	injection bool
}

// NewPipeline builds a Pipeline persisting to storage and starts its
// consumer goroutine.
func NewPipeline(storage Storage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		queueCapacity: DefaultQueueCapacity,
		processor:     NewProcessor(),
		detector:      NewAnomalyDetector(),
		storage:       storage,
		alerter:       NewStderrAlertEmitter(),
		shutdown:      make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.queue = make(chan pipelineJob, p.queueCapacity)

	p.wg.Add(1)
	go p.run()
	return p
}

// Submit enqueues raw for enrichment and persistence. If the queue is
// full, Submit falls back to processing the event synchronously with a
// bounded deadline rather than silently dropping it.
func (p *Pipeline) Submit(raw mpcgw.AIEvent, pii mpcgw.PIIResult, injectionDetected bool) {
	job := pipelineJob{event: raw, pii: pii, injection: injectionDetected}
	select {
	case p.queue <- job:
	default:
		if p.logger != nil {
			p.logger.Warn(raw.RequestID, raw.PrincipalHash, "event queue full, draining synchronously", nil)
		}
		done := make(chan struct{})
		go func() {
			p.process(job)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(DefaultDrainDeadline):
		}
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.queue:
			p.process(job)
		case <-p.shutdown:
			for {
				select {
				case job := <-p.queue:
					p.process(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) process(job pipelineJob) {
	event := p.processor.Enrich(job.event, job.pii, job.injection)
	if err := p.storage.InsertEvent(event); err != nil && p.logger != nil {
		p.logger.Error(event.RequestID, event.PrincipalHash, "failed to persist event", map[string]interface{}{"error": err.Error()})
	}

	anomalies := p.detector.DetectEventLocal(event)
	for i := range anomalies {
		anomalies[i].AnomalyID = uuid.NewString()
		anomalies[i].EventID = event.RequestID
		anomalies[i].Timestamp = event.Timestamp
		if err := p.storage.InsertAnomaly(anomalies[i]); err != nil && p.logger != nil {
			p.logger.Error(event.RequestID, event.PrincipalHash, "failed to persist anomaly", map[string]interface{}{"error": err.Error()})
		}
		if p.alerter != nil {
			p.alerter.Emit(anomalies[i])
		}
	}
}

// Anomalies returns the pattern-level anomalies the AnomalyDetector
// currently observes (called periodically or on demand, not per event).
func (p *Pipeline) Anomalies() []mpcgw.Anomaly {
	return p.detector.DetectPatterns()
}

// Close stops the consumer goroutine after draining whatever is already
// queued, bounded by spec.md §6's "drained on shutdown with a bounded
// deadline before abort."
func (p *Pipeline) Close() {
	close(p.shutdown)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
