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
	"time"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// HealthStatus mirrors the three-state health contract of spec.md §6.
type HealthStatus string

const (
	HealthOK        HealthStatus = "ok"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// FailureCode is the retriable/non-retriable failure taxonomy of
// spec.md §4.5.
type FailureCode string

const (
	FailureTimeout        FailureCode = "timeout"
	FailureRateLimited    FailureCode = "rate_limited"
	FailureUpstreamError  FailureCode = "upstream_error"
	FailureInvalidResponse FailureCode = "invalid_response"
)

// Failure is returned by Process on an unsuccessful attempt.
type Failure struct {
	Code       FailureCode
	Message    string
	StatusCode int // upstream HTTP-equivalent status, when applicable
}

func (f *Failure) Error() string { return string(f.Code) + ": " + f.Message }

// NewUpstreamFailure builds a FailureUpstreamError carrying the upstream's
// HTTP-equivalent statusCode, so Retriable() can tell a transient 5xx
// apart from a client-side 4xx fault.
func NewUpstreamFailure(statusCode int, message string) *Failure {
	return &Failure{Code: FailureUpstreamError, Message: message, StatusCode: statusCode}
}

// Retriable reports whether f should trigger cascade, per spec.md §4.5:
// timeout and rate_limited are always retriable; upstream_error is
// retriable only when StatusCode is unset or 5xx-class (a 4xx-class
// upstream_error is a client-side fault that retrying won't fix);
// invalid_response is never retriable.
func (f *Failure) Retriable() bool {
	switch f.Code {
	case FailureTimeout, FailureRateLimited:
		return true
	case FailureUpstreamError:
		return f.StatusCode == 0 || f.StatusCode >= 500
	default:
		return false
	}
}

// Params carries the caller-supplied generation parameters. Kept as a
// small explicit struct rather than map[string]any: the gateway never
// needs to forward arbitrary payload fields to a Backend, only the ones
// named here (spec.md §9's "decode the opaque payload lazily" note covers
// this at the gateway boundary, not here).
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Result is the successful outcome of Process.
type Result struct {
	Response   string
	Tokens     mpcgw.TokenCounts
	CostUSD    float64
	Confidence float64
	LatencyMS  int64
}

// Backend is the uniform adapter contract of spec.md §6: every concrete
// processing engine (rule engine, small/large/private LLM, hybrid chain)
// implements this and nothing else.
type Backend interface {
	// Describe returns the immutable descriptor used for registration and
	// routing. It must be stable across calls.
	Describe() mpcgw.Backend
	// Process executes prompt against this backend, honoring deadline.
	// Exactly one of (*Result, nil) or (nil, *Failure) is returned.
	Process(ctx context.Context, prompt string, params Params, deadline time.Time) (*Result, *Failure)
	// Health reports the backend's current operating status.
	Health(ctx context.Context) HealthStatus
}
