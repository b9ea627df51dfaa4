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

import "github.com/axonflow-gateway/mpc-gateway/mpcgw"

const (
	latencyThresholdMS  = 10000
	totalTokenThreshold  = 10000
	costThresholdUSD     = 1.00
)

// Processor enriches a raw AIEvent with PII/injection outcome and a
// derived risk_level, per spec.md §4.6's exact scoring formula. It is
// stateless: every call is a pure function of its arguments.
type Processor struct{}

// NewProcessor builds a Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Enrich copies raw, overlays the PII/injection outcome, and computes
// RiskLevel from the scoring rule: +3 !success, +4 injection_detected, +2
// has_pii, +1 latency_ms>10000, +1 tokens.total>10000, +2 cost_usd>1.00;
// score>=5 critical, >=3 high, >=1 medium, else low.
func (p *Processor) Enrich(raw mpcgw.AIEvent, pii mpcgw.PIIResult, injectionDetected bool) mpcgw.AIEvent {
	event := raw
	event.HasPII = pii.HasPII
	event.PIITypes = pii.Types
	event.InjectionDetected = injectionDetected

	score := 0
	if !event.Success {
		score += 3
	}
	if event.InjectionDetected {
		score += 4
	}
	if event.HasPII {
		score += 2
	}
	if event.LatencyMS > latencyThresholdMS {
		score += 1
	}
	if event.Tokens.Total > totalTokenThreshold {
		score += 1
	}
	if event.CostUSD > costThresholdUSD {
		score += 2
	}

	event.RiskLevel = riskLevelForScore(score)
	return event
}

func riskLevelForScore(score int) mpcgw.RiskLevel {
	switch {
	case score >= 5:
		return mpcgw.RiskCritical
	case score >= 3:
		return mpcgw.RiskHigh
	case score >= 1:
		return mpcgw.RiskMedium
	default:
		return mpcgw.RiskLow
	}
}
