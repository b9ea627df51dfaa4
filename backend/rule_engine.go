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

package backend

import (
	"context"
	"strings"
	"time"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Rule matches a prompt by substring and returns a canned response. Rules
// are evaluated in order; the first match wins.
type Rule struct {
	Match    string
	Response string
}

// RuleEngineBackend is the deterministic, zero-cost, always-healthy first
// hop of the cascade: a small table of literal-match rules answered
// without ever touching a model, generalized from the teacher's
// rule-engine-first-hop pattern in orchestrator/llm_router.go. Any prompt
// matching no rule fails with invalid_response so the cascade proceeds to
// the next backend.
type RuleEngineBackend struct {
	id    string
	rules []Rule
}

// NewRuleEngineBackend builds a rule engine backend with the given id and
// rule table, evaluated in order.
func NewRuleEngineBackend(id string, rules []Rule) *RuleEngineBackend {
	return &RuleEngineBackend{id: id, rules: rules}
}

func (b *RuleEngineBackend) Describe() mpcgw.Backend {
	return mpcgw.Backend{
		ID:   b.id,
		Type: mpcgw.BackendRuleEngine,
		Capabilities: map[mpcgw.Capability]bool{
			mpcgw.CapabilityClassification: true,
			mpcgw.CapabilityExtraction:     true,
		},
		CostPer1KTokens:     0,
		AvgLatencyMS:        1,
		MaxTokens:           4096,
		ConfidenceThreshold: 1.0,
		PIIAllowed:          true,
		SensitivityAllowed: map[mpcgw.Sensitivity]bool{
			mpcgw.SensitivityPublic:       true,
			mpcgw.SensitivityInternal:     true,
			mpcgw.SensitivityConfidential: true,
			mpcgw.SensitivityPII:          true,
		},
	}
}

func (b *RuleEngineBackend) Process(ctx context.Context, prompt string, params Params, deadline time.Time) (*Result, *Failure) {
	lower := strings.ToLower(prompt)
	for _, r := range b.rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return &Result{
				Response:   r.Response,
				Tokens:     mpcgw.TokenCounts{Prompt: len(prompt) / 4, Completion: len(r.Response) / 4, Total: len(prompt)/4 + len(r.Response)/4},
				CostUSD:    0,
				Confidence: 1.0,
				LatencyMS:  1,
			}, nil
		}
	}
	return nil, &Failure{Code: FailureInvalidResponse, Message: "no rule matched prompt"}
}

func (b *RuleEngineBackend) Health(ctx context.Context) HealthStatus {
	return HealthOK
}
