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

package router

import (
	"sort"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/pii"
	"github.com/axonflow-gateway/mpc-gateway/registry"
	"github.com/axonflow-gateway/mpc-gateway/shared/logger"
)

// Weights are the composite-score coefficients of spec.md §4.4 step 3.
type Weights struct {
	Cost       float64
	Latency    float64
	Confidence float64
}

// DefaultWeights matches spec.md §4.4's default w_c=0.5, w_l=0.3, w_q=0.2.
var DefaultWeights = Weights{Cost: 0.5, Latency: 0.3, Confidence: 0.2}

// DefaultCascadeSize is the default number of fallbacks (N) behind the
// primary, per spec.md §4.4 step 4.
const DefaultCascadeSize = 2

// hintBackendType maps a non-auto ProcessingHint to the BackendType it
// restricts candidates to.
var hintBackendType = map[mpcgw.ProcessingHint]mpcgw.BackendType{
	mpcgw.HintRuleEngine:   mpcgw.BackendRuleEngine,
	mpcgw.HintModelSmall:   mpcgw.BackendLLMSmall,
	mpcgw.HintModelLarge:   mpcgw.BackendLLMLarge,
	mpcgw.HintModelPrivate: mpcgw.BackendLLMPrivate,
	mpcgw.HintHybrid:       mpcgw.BackendHybrid,
}

// Input carries every signal the selection algorithm filters and scores
// on. MaxCostUSD and MaxLatencyMS are nil when the caller set no ceiling.
type Input struct {
	Capability      mpcgw.Capability
	Sensitivity     mpcgw.Sensitivity
	Hint            mpcgw.ProcessingHint
	MaxCostUSD      *float64
	MaxLatencyMS    *int64
	EstimatedTokens int
	HasPII          bool
	PriorFailures   map[string]bool
	UseCascade      bool
}

// Decision is the Router's output: an ordered list of backend IDs
// (primary first, then fallbacks) plus whether the hint was honored.
type Decision struct {
	BackendIDs  []string
	HintIgnored bool
}

// Option configures a Router at construction time, following the
// teacher's RouterOption pattern (orchestrator/llm/router.go).
type Option func(*Router)

// WithLogger attaches a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithWeights overrides the default composite-score weights.
func WithWeights(w Weights) Option {
	return func(r *Router) { r.weights = w }
}

// WithCascadeSize overrides the default fallback count N.
func WithCascadeSize(n int) Option {
	return func(r *Router) { r.cascadeSize = n }
}

// Router selects backend candidates from a Registry. It holds no
// per-request state; Route is safe to call concurrently.
type Router struct {
	registry    *registry.Registry
	logger      *logger.Logger
	weights     Weights
	cascadeSize int
}

// New builds a Router reading from reg, generalized from the teacher's
// NewRouter(opts ...RouterOption) constructor.
func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registry:    reg,
		weights:     DefaultWeights,
		cascadeSize: DefaultCascadeSize,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type scored struct {
	backend *mpcgw.Backend
	score   float64
}

// Route runs the four-step selection algorithm of spec.md §4.4 and
// returns the ordered candidate list. An empty BackendIDs slice means no
// candidate survived filtering.
func (r *Router) Route(in Input) Decision {
	all := r.registry.All()

	filtered := filterCandidates(all, in)
	if len(filtered) == 0 {
		return Decision{}
	}

	restricted, hintIgnored := applyHint(filtered, in.Hint)

	scoredCandidates := score(restricted, r.weights)
	sort.Slice(scoredCandidates, func(i, j int) bool {
		if scoredCandidates[i].score != scoredCandidates[j].score {
			return scoredCandidates[i].score < scoredCandidates[j].score
		}
		return scoredCandidates[i].backend.ID < scoredCandidates[j].backend.ID
	})

	ids := cascade(scoredCandidates, in.UseCascade, r.cascadeSize)

	if r.logger != nil {
		r.logger.Info("", "", "route decision", map[string]interface{}{
			"candidate_count": len(filtered),
			"hint_ignored":    hintIgnored,
			"primary":         firstOrEmpty(ids),
		})
	}

	return Decision{BackendIDs: ids, HintIgnored: hintIgnored}
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// filterCandidates implements spec.md §4.4 step 1.
func filterCandidates(all []*mpcgw.Backend, in Input) []*mpcgw.Backend {
	out := make([]*mpcgw.Backend, 0, len(all))
	for _, b := range all {
		if !b.HasCapability(in.Capability) {
			continue
		}
		if !b.AllowsSensitivity(in.Sensitivity) {
			continue
		}
		if !pii.RoutingCompatible(mpcgw.PIIResult{HasPII: in.HasPII}, b) {
			continue
		}
		if in.MaxCostUSD != nil {
			estCost := float64(in.EstimatedTokens) * b.CostPer1KTokens / 1000
			if estCost > *in.MaxCostUSD {
				continue
			}
		}
		if in.MaxLatencyMS != nil && b.AvgLatencyMS > *in.MaxLatencyMS {
			continue
		}
		if in.PriorFailures != nil && in.PriorFailures[b.ID] {
			continue
		}
		out = append(out, b)
	}
	return out
}

// applyHint implements spec.md §4.4 step 2: restrict to the hinted type,
// falling back to the full filtered set (and marking hint_ignored) if
// that restriction empties the candidate set.
func applyHint(filtered []*mpcgw.Backend, hint mpcgw.ProcessingHint) ([]*mpcgw.Backend, bool) {
	if hint == "" || hint == mpcgw.HintAuto {
		return filtered, false
	}
	wantType, ok := hintBackendType[hint]
	if !ok {
		return filtered, false
	}
	restricted := make([]*mpcgw.Backend, 0, len(filtered))
	for _, b := range filtered {
		if b.Type == wantType {
			restricted = append(restricted, b)
		}
	}
	if len(restricted) == 0 {
		return filtered, true
	}
	return restricted, false
}

// score implements spec.md §4.4 step 3: min-max normalized cost/latency
// combined with confidence_threshold into a composite score, lower is
// better. When every candidate is free (max cost == 0), the normalized
// cost term is 0 for all candidates so latency and confidence dominate.
func score(candidates []*mpcgw.Backend, w Weights) []scored {
	minCost, maxCost := minMaxCost(candidates)
	minLatency, maxLatency := minMaxLatency(candidates)

	out := make([]scored, 0, len(candidates))
	for _, b := range candidates {
		normCost := normalize(b.CostPer1KTokens, minCost, maxCost)
		normLatency := normalize(float64(b.AvgLatencyMS), minLatency, maxLatency)
		s := w.Cost*normCost + w.Latency*normLatency - w.Confidence*b.ConfidenceThreshold
		out = append(out, scored{backend: b, score: s})
	}
	return out
}

func normalize(v, min, max float64) float64 {
	if max-min <= 0 {
		return 0
	}
	return (v - min) / (max - min)
}

func minMaxCost(candidates []*mpcgw.Backend) (float64, float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	min, max := candidates[0].CostPer1KTokens, candidates[0].CostPer1KTokens
	for _, b := range candidates[1:] {
		if b.CostPer1KTokens < min {
			min = b.CostPer1KTokens
		}
		if b.CostPer1KTokens > max {
			max = b.CostPer1KTokens
		}
	}
	return min, max
}

func minMaxLatency(candidates []*mpcgw.Backend) (float64, float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	min, max := float64(candidates[0].AvgLatencyMS), float64(candidates[0].AvgLatencyMS)
	for _, b := range candidates[1:] {
		l := float64(b.AvgLatencyMS)
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	return min, max
}

// cascade implements spec.md §4.4 step 4: primary is the top-ranked
// candidate; fallbacks are the next up to cascadeSize whose
// confidence_threshold is non-decreasing relative to the last accepted
// entry, so each fallback is at least as capable as its predecessor.
func cascade(sc []scored, useCascade bool, cascadeSize int) []string {
	if len(sc) == 0 {
		return nil
	}
	ids := []string{sc[0].backend.ID}
	if !useCascade {
		return ids
	}

	lastConfidence := sc[0].backend.ConfidenceThreshold
	for _, c := range sc[1:] {
		if len(ids)-1 >= cascadeSize {
			break
		}
		if c.backend.ConfidenceThreshold < lastConfidence {
			continue
		}
		ids = append(ids, c.backend.ID)
		lastConfidence = c.backend.ConfidenceThreshold
	}
	return ids
}
