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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/registry"
)

func backendFixture(id string, backendType mpcgw.BackendType, cost float64, latency int64, confidence float64, piiAllowed bool) *mpcgw.Backend {
	sensitivity := map[mpcgw.Sensitivity]bool{
		mpcgw.SensitivityPublic:   true,
		mpcgw.SensitivityInternal: true,
	}
	if piiAllowed {
		sensitivity[mpcgw.SensitivityPII] = true
	}
	return &mpcgw.Backend{
		ID:                  id,
		Type:                backendType,
		Capabilities:        map[mpcgw.Capability]bool{mpcgw.CapabilityTextGeneration: true},
		CostPer1KTokens:     cost,
		AvgLatencyMS:        latency,
		MaxTokens:           4096,
		ConfidenceThreshold: confidence,
		PIIAllowed:          piiAllowed,
		SensitivityAllowed:  sensitivity,
	}
}

func setupTestRouter(t *testing.T, backends ...*mpcgw.Backend) *Router {
	t.Helper()
	reg := registry.New()
	for _, b := range backends {
		require.NoError(t, reg.Register(b))
	}
	return New(reg)
}

func TestRouter_FiltersByCapability(t *testing.T) {
	noCap := backendFixture("no-cap", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false)
	noCap.Capabilities = map[mpcgw.Capability]bool{mpcgw.CapabilityCodeGeneration: true}
	r := setupTestRouter(t, noCap)

	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_FiltersBySensitivity(t *testing.T) {
	r := setupTestRouter(t, backendFixture("b1", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false))
	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityConfidential})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_FiltersByPIIAllowed(t *testing.T) {
	r := setupTestRouter(t, backendFixture("b1", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false))
	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic, HasPII: true})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_FiltersByCostCeiling(t *testing.T) {
	r := setupTestRouter(t, backendFixture("expensive", mpcgw.BackendLLMLarge, 1.0, 100, 0.9, false))
	ceiling := 0.0001
	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		EstimatedTokens: 1000, MaxCostUSD: &ceiling,
	})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_FiltersByLatencyCeiling(t *testing.T) {
	r := setupTestRouter(t, backendFixture("slow", mpcgw.BackendLLMLarge, 0.001, 5000, 0.9, false))
	ceiling := int64(1000)
	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		MaxLatencyMS: &ceiling,
	})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_FiltersByPriorFailures(t *testing.T) {
	r := setupTestRouter(t, backendFixture("b1", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false))
	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		PriorFailures: map[string]bool{"b1": true},
	})
	assert.Empty(t, decision.BackendIDs)
}

func TestRouter_HintRestrictsToType(t *testing.T) {
	r := setupTestRouter(t,
		backendFixture("small", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false),
		backendFixture("large", mpcgw.BackendLLMLarge, 0.01, 300, 0.9, false),
	)
	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		Hint: mpcgw.HintModelLarge,
	})
	require.NotEmpty(t, decision.BackendIDs)
	assert.Equal(t, "large", decision.BackendIDs[0])
	assert.False(t, decision.HintIgnored)
}

func TestRouter_HintIgnoredWhenNoMatch(t *testing.T) {
	r := setupTestRouter(t, backendFixture("small", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false))
	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		Hint: mpcgw.HintModelLarge,
	})
	require.NotEmpty(t, decision.BackendIDs)
	assert.Equal(t, "small", decision.BackendIDs[0])
	assert.True(t, decision.HintIgnored)
}

func TestRouter_OrdersByCompositeScore(t *testing.T) {
	cheapFast := backendFixture("cheap-fast", mpcgw.BackendLLMSmall, 0.0001, 50, 0.7, false)
	expensiveSlow := backendFixture("expensive-slow", mpcgw.BackendLLMLarge, 0.02, 2000, 0.95, false)
	r := setupTestRouter(t, cheapFast, expensiveSlow)

	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	require.NotEmpty(t, decision.BackendIDs)
	assert.Equal(t, "cheap-fast", decision.BackendIDs[0])
}

func TestRouter_AllFreeCandidatesLatencyDominates(t *testing.T) {
	free1 := backendFixture("free-slow", mpcgw.BackendRuleEngine, 0, 500, 0.6, false)
	free2 := backendFixture("free-fast", mpcgw.BackendRuleEngine, 0, 10, 0.6, false)
	r := setupTestRouter(t, free1, free2)

	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	require.NotEmpty(t, decision.BackendIDs)
	assert.Equal(t, "free-fast", decision.BackendIDs[0])
}

func TestRouter_LexicographicTieBreak(t *testing.T) {
	a := backendFixture("alpha", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false)
	b := backendFixture("beta", mpcgw.BackendLLMSmall, 0.001, 100, 0.7, false)
	r := setupTestRouter(t, b, a)

	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	require.NotEmpty(t, decision.BackendIDs)
	assert.Equal(t, "alpha", decision.BackendIDs[0])
}

func TestRouter_CascadeNonDecreasingConfidence(t *testing.T) {
	primary := backendFixture("primary", mpcgw.BackendLLMSmall, 0.0001, 50, 0.6, false)
	weaker := backendFixture("weaker", mpcgw.BackendLLMSmall, 0.0002, 60, 0.5, false)
	stronger := backendFixture("stronger", mpcgw.BackendLLMLarge, 0.02, 2000, 0.9, false)
	r := setupTestRouter(t, primary, weaker, stronger)

	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		UseCascade: true,
	})
	require.Len(t, decision.BackendIDs, 2)
	assert.Equal(t, "primary", decision.BackendIDs[0])
	assert.Equal(t, "stronger", decision.BackendIDs[1])
}

func TestRouter_CascadeRespectsSize(t *testing.T) {
	backends := []*mpcgw.Backend{
		backendFixture("b1", mpcgw.BackendLLMSmall, 0.0001, 10, 0.5, false),
		backendFixture("b2", mpcgw.BackendLLMSmall, 0.0002, 20, 0.6, false),
		backendFixture("b3", mpcgw.BackendLLMSmall, 0.0003, 30, 0.7, false),
		backendFixture("b4", mpcgw.BackendLLMSmall, 0.0004, 40, 0.8, false),
	}
	reg := registry.New()
	for _, b := range backends {
		require.NoError(t, reg.Register(b))
	}
	r := New(reg, WithCascadeSize(1))

	decision := r.Route(Input{
		Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic,
		UseCascade: true,
	})
	assert.Len(t, decision.BackendIDs, 2)
}

func TestRouter_NoCascadeReturnsPrimaryOnly(t *testing.T) {
	r := setupTestRouter(t,
		backendFixture("primary", mpcgw.BackendLLMSmall, 0.0001, 10, 0.6, false),
		backendFixture("fallback", mpcgw.BackendLLMLarge, 0.02, 2000, 0.9, false),
	)
	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	assert.Len(t, decision.BackendIDs, 1)
}

func TestRouter_EmptyRegistryReturnsEmptyDecision(t *testing.T) {
	r := setupTestRouter(t)
	decision := r.Route(Input{Capability: mpcgw.CapabilityTextGeneration, Sensitivity: mpcgw.SensitivityPublic})
	assert.Empty(t, decision.BackendIDs)
	assert.False(t, decision.HintIgnored)
}
