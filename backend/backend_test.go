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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

func TestFailure_Retriable(t *testing.T) {
	assert.True(t, (&Failure{Code: FailureTimeout}).Retriable())
	assert.True(t, (&Failure{Code: FailureRateLimited}).Retriable())
	assert.True(t, (&Failure{Code: FailureUpstreamError}).Retriable(), "no status code set is treated as retriable")
	assert.True(t, (&Failure{Code: FailureUpstreamError, StatusCode: 503}).Retriable(), "5xx-class upstream_error is retriable")
	assert.False(t, (&Failure{Code: FailureUpstreamError, StatusCode: 400}).Retriable(), "4xx-class upstream_error is a client fault, not retriable")
	assert.False(t, (&Failure{Code: FailureInvalidResponse}).Retriable())
}

func TestRuleEngineBackend_MatchesRule(t *testing.T) {
	b := NewRuleEngineBackend("rules", []Rule{
		{Match: "ping", Response: "pong"},
	})

	res, fail := b.Process(context.Background(), "please PING the server", Params{}, time.Time{})
	require.Nil(t, fail)
	require.NotNil(t, res)
	assert.Equal(t, "pong", res.Response)
	assert.Equal(t, 0.0, res.CostUSD)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestRuleEngineBackend_NoMatchFails(t *testing.T) {
	b := NewRuleEngineBackend("rules", []Rule{{Match: "ping", Response: "pong"}})

	res, fail := b.Process(context.Background(), "hello there", Params{}, time.Time{})
	assert.Nil(t, res)
	require.NotNil(t, fail)
	assert.Equal(t, FailureInvalidResponse, fail.Code)
	assert.False(t, fail.Retriable())
}

func TestRuleEngineBackend_Describe(t *testing.T) {
	b := NewRuleEngineBackend("rules", nil)
	d := b.Describe()
	assert.Equal(t, mpcgw.BackendRuleEngine, d.Type)
	assert.True(t, d.PIIAllowed)
	assert.True(t, d.SensitivityAllowed[mpcgw.SensitivityPII])
	assert.Equal(t, HealthOK, b.Health(context.Background()))
}

func TestStubLLMBackend_SuccessfulProcess(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small",
		WithLatency(time.Millisecond), WithConfidence(0.9))

	res, fail := b.Process(context.Background(), "summarize this", Params{Model: "stub-small"}, time.Time{})
	require.Nil(t, fail)
	require.NotNil(t, res)
	assert.Equal(t, 0.9, res.Confidence)
	assert.GreaterOrEqual(t, res.CostUSD, 0.0)
	assert.Equal(t, int64(1), b.CallCount())
}

func TestStubLLMBackend_InjectedFailure(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small",
		WithLatency(time.Millisecond),
		WithFailure(&Failure{Code: FailureRateLimited, Message: "slow down"}))

	res, fail := b.Process(context.Background(), "hi", Params{}, time.Time{})
	assert.Nil(t, res)
	require.NotNil(t, fail)
	assert.Equal(t, FailureRateLimited, fail.Code)
	assert.True(t, fail.Retriable())
}

func TestStubLLMBackend_SetFailureAtRuntime(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small", WithLatency(time.Millisecond))

	_, fail := b.Process(context.Background(), "hi", Params{}, time.Time{})
	require.Nil(t, fail)

	b.SetFailure(&Failure{Code: FailureUpstreamError, Message: "broke"})
	_, fail = b.Process(context.Background(), "hi", Params{}, time.Time{})
	require.NotNil(t, fail)
	assert.Equal(t, FailureUpstreamError, fail.Code)
}

func TestStubLLMBackend_DeadlineShorterThanLatency(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small", WithLatency(100*time.Millisecond))

	res, fail := b.Process(context.Background(), "hi", Params{}, time.Now().Add(time.Millisecond))
	assert.Nil(t, res)
	require.NotNil(t, fail)
	assert.Equal(t, FailureTimeout, fail.Code)
}

func TestStubLLMBackend_ContextCanceled(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small", WithLatency(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, fail := b.Process(ctx, "hi", Params{}, time.Time{})
	assert.Nil(t, res)
	require.NotNil(t, fail)
	assert.Equal(t, FailureTimeout, fail.Code)
}

func TestStubLLMBackend_CustomResponder(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small",
		WithLatency(time.Millisecond),
		WithResponder(func(prompt string) string { return "echo:" + prompt }))

	res, fail := b.Process(context.Background(), "hi", Params{}, time.Time{})
	require.Nil(t, fail)
	assert.Equal(t, "echo:hi", res.Response)
}

func TestStubLLMBackend_HealthOverride(t *testing.T) {
	b := NewStubLLMBackend("small-1", mpcgw.BackendLLMSmall, "stub-small")
	assert.Equal(t, HealthOK, b.Health(context.Background()))
	b.SetHealth(HealthDegraded)
	assert.Equal(t, HealthDegraded, b.Health(context.Background()))
}

func TestEstimateCostUSD_UnknownModelFallsBackToWildcard(t *testing.T) {
	cost := EstimateCostUSD("unknown-model", 1000, 1000)
	assert.InDelta(t, 0.003+0.015, cost, 1e-9)
}

func TestEstimateCostUSD_KnownModel(t *testing.T) {
	cost := EstimateCostUSD("stub-private", 1000, 1000)
	assert.Equal(t, 0.0, cost)
}
