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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

func anomalyTypes(anomalies []mpcgw.Anomaly) []string {
	out := make([]string, len(anomalies))
	for i, a := range anomalies {
		out[i] = a.Type
	}
	return out
}

func TestAnomalyDetector_HighCost(t *testing.T) {
	d := NewAnomalyDetector()
	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.60})
	require.Contains(t, anomalyTypes(anomalies), "high_cost")
}

func TestAnomalyDetector_PromptInjectionCritical(t *testing.T) {
	d := NewAnomalyDetector()
	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, InjectionDetected: true})
	require.Len(t, anomalies, 1)
	assert.Equal(t, "prompt_injection", anomalies[0].Type)
	assert.Equal(t, mpcgw.SeverityCritical, anomalies[0].Severity)
}

func TestAnomalyDetector_RequestFailure(t *testing.T) {
	d := NewAnomalyDetector()
	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: false})
	require.Contains(t, anomalyTypes(anomalies), "request_failure")
}

func TestAnomalyDetector_CostSpike(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 10; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.01})
	}

	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.10})
	require.Contains(t, anomalyTypes(anomalies), "cost_spike")
	for _, a := range anomalies {
		if a.Type == "cost_spike" {
			assert.Equal(t, mpcgw.SeverityHigh, a.Severity)
		}
	}
}

func TestAnomalyDetector_NoSpikeBelowMinSamples(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.01})
	}
	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.10})
	assert.NotContains(t, anomalyTypes(anomalies), "cost_spike")
}

func TestAnomalyDetector_HighErrorRatePattern(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 8; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true})
	}
	for i := 0; i < 3; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: false})
	}

	patterns := d.DetectPatterns()
	require.Contains(t, anomalyTypes(patterns), "high_error_rate")
}

func TestAnomalyDetector_ModelErrorsPerModelWindow(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 5; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "flaky", Success: false})
	}
	for i := 0; i < 20; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "stable", Success: true})
	}

	patterns := d.DetectPatterns()
	require.Contains(t, anomalyTypes(patterns), "model_errors")
}

func TestAnomalyDetector_HighRequestRate(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 60; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true})
	}

	patterns := d.DetectPatterns()
	require.Contains(t, anomalyTypes(patterns), "high_request_rate")
}

func TestAnomalyDetector_WithThresholdsOverridesCostLimit(t *testing.T) {
	custom := DefaultThresholds
	custom.CostUSD = 5.00

	d := NewAnomalyDetector(WithThresholds(custom))
	anomalies := d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 0.60})
	assert.NotContains(t, anomalyTypes(anomalies), "high_cost",
		"raised threshold should tolerate a cost that trips the spec default")

	anomalies = d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 6.00})
	assert.Contains(t, anomalyTypes(anomalies), "high_cost")
}

func TestAnomalyDetector_HighCostRate(t *testing.T) {
	now := time.Now()
	d := NewAnomalyDetector(WithClock(func() time.Time { return now }))

	for i := 0; i < 5; i++ {
		d.DetectEventLocal(mpcgw.AIEvent{Model: "m", Success: true, CostUSD: 3})
	}

	patterns := d.DetectPatterns()
	require.Contains(t, anomalyTypes(patterns), "high_cost_rate")
}
