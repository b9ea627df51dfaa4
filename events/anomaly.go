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
	"sync"
	"time"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Default thresholds for the event-local checks of spec.md §4.6.
const (
	DefaultCostThresholdUSD    = 0.50
	DefaultLatencyThresholdMS  = 5000
	DefaultTokenThreshold      = 8000
	DefaultSpikeFactor         = 3.0
	DefaultSpikeWindow         = 10 * time.Minute
	DefaultMinSpikeSamples     = 5

	DefaultErrorRateWindow    = 5 * time.Minute
	DefaultErrorRateMinEvents = 10
	DefaultErrorRateThreshold = 0.10

	DefaultRequestRateWindow    = 1 * time.Minute
	DefaultRequestRateThreshold = 50.0

	DefaultCostRateWindow    = 1 * time.Hour
	DefaultCostRateThreshold = 10.0

	DefaultModelErrorMinSamples = 5
	DefaultModelErrorThreshold  = 0.2

	historyCap = 1000
)

// dataPoint is one ring-buffer entry behind the anomaly detector's
// history windows, shaped after the teacher's bounded
// RequestTypeMetrics.responseTimes pattern (orchestrator/metrics_collector.go).
type dataPoint struct {
	at      time.Time
	model   string
	cost    float64
	latency int64
	success bool
}

// ring is a capacity-bounded, append-only point history.
type ring struct {
	points []dataPoint
}

func (r *ring) add(p dataPoint) {
	r.points = append(r.points, p)
	if len(r.points) > historyCap {
		r.points = r.points[len(r.points)-historyCap:]
	}
}

func (r *ring) since(now time.Time, window time.Duration) []dataPoint {
	cutoff := now.Add(-window)
	out := make([]dataPoint, 0, len(r.points))
	for _, p := range r.points {
		if !p.at.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// Thresholds holds every tunable in spec.md §4.6's detection formulas.
// NewAnomalyDetector seeds this with the spec's defaults; WithThresholds
// overrides the whole set, following the teacher's RouterOption/
// RegistryOption "config struct + functional option" pattern.
type Thresholds struct {
	CostUSD       float64
	LatencyMS     int64
	Tokens        int
	SpikeFactor   float64
	SpikeWindow   time.Duration
	MinSpikeSamples int

	ErrorRateWindow    time.Duration
	ErrorRateMinEvents int
	ErrorRateThreshold float64

	RequestRateWindow    time.Duration
	RequestRateThreshold float64

	CostRateWindow    time.Duration
	CostRateThreshold float64

	ModelErrorMinSamples int
	ModelErrorThreshold  float64
}

// DefaultThresholds matches spec.md §4.6's default T_cost/T_lat/T_tok/K/M
// and pattern-level window defaults exactly.
var DefaultThresholds = Thresholds{
	CostUSD:         DefaultCostThresholdUSD,
	LatencyMS:       DefaultLatencyThresholdMS,
	Tokens:          DefaultTokenThreshold,
	SpikeFactor:     DefaultSpikeFactor,
	SpikeWindow:     DefaultSpikeWindow,
	MinSpikeSamples: DefaultMinSpikeSamples,

	ErrorRateWindow:    DefaultErrorRateWindow,
	ErrorRateMinEvents: DefaultErrorRateMinEvents,
	ErrorRateThreshold: DefaultErrorRateThreshold,

	RequestRateWindow:    DefaultRequestRateWindow,
	RequestRateThreshold: DefaultRequestRateThreshold,

	CostRateWindow:    DefaultCostRateWindow,
	CostRateThreshold: DefaultCostRateThreshold,

	ModelErrorMinSamples: DefaultModelErrorMinSamples,
	ModelErrorThreshold:  DefaultModelErrorThreshold,
}

// AnomalyDetectorOption configures an AnomalyDetector at construction.
type AnomalyDetectorOption func(*AnomalyDetector)

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(now func() time.Time) AnomalyDetectorOption {
	return func(d *AnomalyDetector) { d.now = now }
}

// WithThresholds overrides the spec-default detection thresholds.
func WithThresholds(t Thresholds) AnomalyDetectorOption {
	return func(d *AnomalyDetector) { d.thresholds = t }
}

// AnomalyDetector implements both evaluation modes of spec.md §4.6:
// event-local synchronous checks (including per-model spike detection)
// and pattern-level sliding-window checks evaluated on demand.
type AnomalyDetector struct {
	mu         sync.Mutex
	global     ring
	perModel   map[string]*ring
	now        func() time.Time
	thresholds Thresholds
}

// NewAnomalyDetector builds an AnomalyDetector with spec-default
// thresholds and windows.
func NewAnomalyDetector(opts ...AnomalyDetectorOption) *AnomalyDetector {
	d := &AnomalyDetector{
		perModel:   make(map[string]*ring),
		now:        time.Now,
		thresholds: DefaultThresholds,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func newAnomaly(typ string, severity mpcgw.AnomalySeverity, description, action string, details map[string]string) mpcgw.Anomaly {
	return mpcgw.Anomaly{
		Type:              typ,
		Severity:          severity,
		Description:       description,
		Details:           details,
		RecommendedAction: action,
	}
}

// DetectEventLocal runs the synchronous per-event checks against event,
// using (and then updating) this detector's history, and returns every
// anomaly it fires. Anomaly.EventID and Timestamp are left for the caller
// to stamp, since this package never generates IDs or reads the clock for
// anything but window math.
func (d *AnomalyDetector) DetectEventLocal(event mpcgw.AIEvent) []mpcgw.Anomaly {
	d.mu.Lock()
	defer d.mu.Unlock()

	var anomalies []mpcgw.Anomaly

	if event.CostUSD > d.thresholds.CostUSD {
		anomalies = append(anomalies, newAnomaly("high_cost", mpcgw.SeverityHigh,
			fmt.Sprintf("cost_usd %.4f exceeds threshold %.2f", event.CostUSD, d.thresholds.CostUSD),
			"review model selection and prompt size", map[string]string{"model": event.Model}))
	}
	if event.LatencyMS > d.thresholds.LatencyMS {
		anomalies = append(anomalies, newAnomaly("high_latency", mpcgw.SeverityMedium,
			fmt.Sprintf("latency_ms %d exceeds threshold %d", event.LatencyMS, d.thresholds.LatencyMS),
			"investigate backend health", map[string]string{"model": event.Model}))
	}
	if event.Tokens.Total > d.thresholds.Tokens {
		anomalies = append(anomalies, newAnomaly("high_tokens", mpcgw.SeverityMedium,
			fmt.Sprintf("tokens.total %d exceeds threshold %d", event.Tokens.Total, d.thresholds.Tokens),
			"consider prompt truncation", map[string]string{"model": event.Model}))
	}
	if event.HasPII {
		anomalies = append(anomalies, newAnomaly("pii_detected", mpcgw.SeverityHigh,
			"request contained personally identifiable information",
			"verify routing compatibility was enforced", nil))
	}
	if event.InjectionDetected {
		anomalies = append(anomalies, newAnomaly("prompt_injection", mpcgw.SeverityCritical,
			"prompt matched a known injection pattern",
			"review prompt and principal for abuse", nil))
	}
	if !event.Success {
		anomalies = append(anomalies, newAnomaly("request_failure", mpcgw.SeverityHigh,
			fmt.Sprintf("request failed with error_code %s", event.ErrorCode),
			"inspect backend health and retry budget", map[string]string{"model": event.Model}))
	}

	now := d.now()
	perModel := d.perModel[event.Model]
	if perModel == nil {
		perModel = &ring{}
		d.perModel[event.Model] = perModel
	}
	recent := perModel.since(now, d.thresholds.SpikeWindow)
	if len(recent) >= d.thresholds.MinSpikeSamples {
		meanCost := meanOf(recent, func(p dataPoint) float64 { return p.cost })
		if meanCost > 0 && event.CostUSD > d.thresholds.SpikeFactor*meanCost {
			anomalies = append(anomalies, newAnomaly("cost_spike", mpcgw.SeverityHigh,
				fmt.Sprintf("cost_usd %.4f exceeds %.0fx the %d-sample mean %.4f", event.CostUSD, d.thresholds.SpikeFactor, len(recent), meanCost),
				"check for prompt-size or pricing regression", map[string]string{"model": event.Model}))
		}
		meanLatency := meanOf(recent, func(p dataPoint) float64 { return float64(p.latency) })
		if meanLatency > 0 && float64(event.LatencyMS) > d.thresholds.SpikeFactor*meanLatency {
			anomalies = append(anomalies, newAnomaly("latency_spike", mpcgw.SeverityMedium,
				fmt.Sprintf("latency_ms %d exceeds %.0fx the %d-sample mean %.0f", event.LatencyMS, d.thresholds.SpikeFactor, len(recent), meanLatency),
				"check backend health", map[string]string{"model": event.Model}))
		}
	}

	point := dataPoint{at: now, model: event.Model, cost: event.CostUSD, latency: event.LatencyMS, success: event.Success}
	d.global.add(point)
	perModel.add(point)

	return anomalies
}

func meanOf(points []dataPoint, f func(dataPoint) float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += f(p)
	}
	return sum / float64(len(points))
}

// DetectPatterns evaluates the sliding-window pattern-level checks of
// spec.md §4.6 against the detector's current history: high_error_rate
// and high_request_rate/high_cost_rate over the global window,
// model_errors per individual model.
func (d *AnomalyDetector) DetectPatterns() []mpcgw.Anomaly {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var anomalies []mpcgw.Anomaly

	errWindow := d.global.since(now, d.thresholds.ErrorRateWindow)
	if len(errWindow) >= d.thresholds.ErrorRateMinEvents {
		rate := errorRate(errWindow)
		if rate > d.thresholds.ErrorRateThreshold {
			anomalies = append(anomalies, newAnomaly("high_error_rate", mpcgw.SeverityCritical,
				fmt.Sprintf("error_rate %.2f over %d events exceeds %.2f", rate, len(errWindow), d.thresholds.ErrorRateThreshold),
				"page on-call; check backend health", nil))
		}
	}

	rateWindow := d.global.since(now, d.thresholds.RequestRateWindow)
	perMinuteRate := float64(len(rateWindow)) / d.thresholds.RequestRateWindow.Minutes()
	if perMinuteRate > d.thresholds.RequestRateThreshold {
		anomalies = append(anomalies, newAnomaly("high_request_rate", mpcgw.SeverityMedium,
			fmt.Sprintf("request rate %.1f/min exceeds %.1f/min", perMinuteRate, d.thresholds.RequestRateThreshold),
			"check for traffic spike or abuse", nil))
	}

	costWindow := d.global.since(now, d.thresholds.CostRateWindow)
	totalCost := 0.0
	for _, p := range costWindow {
		totalCost += p.cost
	}
	if totalCost > d.thresholds.CostRateThreshold {
		anomalies = append(anomalies, newAnomaly("high_cost_rate", mpcgw.SeverityHigh,
			fmt.Sprintf("cost $%.2f/hour exceeds $%.2f/hour", totalCost, d.thresholds.CostRateThreshold),
			"review cost ceilings and routing", nil))
	}

	for model, hist := range d.perModel {
		window := hist.since(now, d.thresholds.ErrorRateWindow)
		if len(window) < d.thresholds.ModelErrorMinSamples {
			continue
		}
		rate := errorRate(window)
		if rate > d.thresholds.ModelErrorThreshold {
			anomalies = append(anomalies, newAnomaly("model_errors", mpcgw.SeverityHigh,
				fmt.Sprintf("model %s error_rate %.2f over %d samples exceeds %.2f", model, rate, len(window), d.thresholds.ModelErrorThreshold),
				"consider removing model from rotation", map[string]string{"model": model}))
		}
	}

	return anomalies
}

func errorRate(points []dataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var failures int
	for _, p := range points {
		if !p.success {
			failures++
		}
	}
	return float64(failures) / float64(len(points))
}
