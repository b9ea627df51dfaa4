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
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// AlertEmitter notifies a sink when an anomaly reaches high severity or
// above. Emit must be best-effort: a slow or failing sink never blocks or
// fails event persistence, per spec.md §4.6.
type AlertEmitter interface {
	Emit(anomaly mpcgw.Anomaly)
}

// severityAtLeastHigh reports whether sev qualifies for alerting.
func severityAtLeastHigh(sev mpcgw.AnomalySeverity) bool {
	return sev == mpcgw.SeverityHigh || sev == mpcgw.SeverityCritical
}

// StderrAlertEmitter writes one line per qualifying anomaly to w (stderr
// by default). It never returns an error: a write failure is itself
// swallowed, consistent with "alerts are best-effort."
type StderrAlertEmitter struct {
	out io.Writer
}

// NewStderrAlertEmitter builds an emitter writing to os.Stderr.
func NewStderrAlertEmitter() *StderrAlertEmitter {
	return &StderrAlertEmitter{out: os.Stderr}
}

// NewStderrAlertEmitterWithWriter builds an emitter writing to w, for
// tests that want to capture output.
func NewStderrAlertEmitterWithWriter(w io.Writer) *StderrAlertEmitter {
	return &StderrAlertEmitter{out: w}
}

func (e *StderrAlertEmitter) Emit(anomaly mpcgw.Anomaly) {
	if !severityAtLeastHigh(anomaly.Severity) {
		return
	}
	fmt.Fprintf(e.out, "[ALERT] severity=%s type=%s description=%q\n", anomaly.Severity, anomaly.Type, anomaly.Description)
}

// anomalyAlertsTotal counts emitted alerts by severity and type, in the
// style of the teacher's promRequestsTotal CounterVec (orchestrator/run.go).
var anomalyAlertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mpc_gateway_anomaly_alerts_total",
		Help: "Total anomaly alerts emitted, by severity and type.",
	},
	[]string{"severity", "type"},
)

// PrometheusAlertEmitter increments a counter per qualifying anomaly
// instead of (or alongside) writing a log line; scraped by the metrics
// endpoint wired in cmd/gateway.
type PrometheusAlertEmitter struct {
	registered bool
}

// NewPrometheusAlertEmitter registers the alert counter with reg (or the
// default registerer if reg is nil) and returns an emitter backed by it.
func NewPrometheusAlertEmitter(reg prometheus.Registerer) *PrometheusAlertEmitter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	_ = reg.Register(anomalyAlertsTotal)
	return &PrometheusAlertEmitter{registered: true}
}

func (e *PrometheusAlertEmitter) Emit(anomaly mpcgw.Anomaly) {
	if !severityAtLeastHigh(anomaly.Severity) {
		return
	}
	anomalyAlertsTotal.WithLabelValues(string(anomaly.Severity), anomaly.Type).Inc()
}
