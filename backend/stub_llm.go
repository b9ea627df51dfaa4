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
	"sync"
	"sync/atomic"
	"time"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// StubLLMBackend stands in for a real provider adapter in tests and local
// operation. Every knob that would otherwise be a network call is an
// injectable field, in the style of the teacher's llm.MockProvider: fixed
// latency, fixed confidence, an optional canned failure, and an optional
// response generator function.
type StubLLMBackend struct {
	id           string
	backendType  mpcgw.BackendType
	model        string
	capabilities map[mpcgw.Capability]bool
	sensitivity  map[mpcgw.Sensitivity]bool
	piiAllowed   bool
	maxTokens    int
	confidence   float64

	mu         sync.RWMutex
	latency    time.Duration
	failure    *Failure
	respondFn  func(prompt string) string
	health     HealthStatus
	callCount  int64
}

// StubLLMOption configures a StubLLMBackend at construction.
type StubLLMOption func(*StubLLMBackend)

// WithLatency fixes the simulated processing latency.
func WithLatency(d time.Duration) StubLLMOption {
	return func(s *StubLLMBackend) { s.latency = d }
}

// WithConfidence fixes the confidence score every successful Process call
// reports.
func WithConfidence(c float64) StubLLMOption {
	return func(s *StubLLMBackend) { s.confidence = c }
}

// WithFailure makes every Process call fail with f until cleared via
// SetFailure(nil).
func WithFailure(f *Failure) StubLLMOption {
	return func(s *StubLLMBackend) { s.failure = f }
}

// WithResponder overrides the canned "ok: <prompt>" response with fn.
func WithResponder(fn func(prompt string) string) StubLLMOption {
	return func(s *StubLLMBackend) { s.respondFn = fn }
}

// WithSensitivityAllowed overrides the default public/internal-only
// sensitivity set.
func WithSensitivityAllowed(allowed map[mpcgw.Sensitivity]bool) StubLLMOption {
	return func(s *StubLLMBackend) { s.sensitivity = allowed }
}

// WithPIIAllowed marks the stub as permitted to see PII-sensitivity
// traffic (requires SensitivityPII in the allowed set).
func WithPIIAllowed(v bool) StubLLMOption {
	return func(s *StubLLMBackend) { s.piiAllowed = v }
}

// NewStubLLMBackend builds a stub backend of backendType answering to
// model, with sensible small-model defaults overridable via opts.
func NewStubLLMBackend(id string, backendType mpcgw.BackendType, model string, opts ...StubLLMOption) *StubLLMBackend {
	s := &StubLLMBackend{
		id:          id,
		backendType: backendType,
		model:       model,
		capabilities: map[mpcgw.Capability]bool{
			mpcgw.CapabilityTextGeneration: true,
			mpcgw.CapabilitySummarization:  true,
		},
		sensitivity: map[mpcgw.Sensitivity]bool{
			mpcgw.SensitivityPublic:   true,
			mpcgw.SensitivityInternal: true,
		},
		maxTokens:  4096,
		confidence: 0.85,
		latency:    50 * time.Millisecond,
		health:     HealthOK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetFailure changes the injected failure at runtime (nil clears it), for
// tests that need a backend to fail mid-scenario.
func (s *StubLLMBackend) SetFailure(f *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = f
}

// SetHealth changes the health status reported by Health.
func (s *StubLLMBackend) SetHealth(h HealthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

// CallCount reports how many times Process has been invoked.
func (s *StubLLMBackend) CallCount() int64 {
	return atomic.LoadInt64(&s.callCount)
}

func (s *StubLLMBackend) Describe() mpcgw.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mpcgw.Backend{
		ID:                  s.id,
		Type:                s.backendType,
		Capabilities:        s.capabilities,
		CostPer1KTokens:     stubPricing[s.model].InputPer1K,
		AvgLatencyMS:        s.latency.Milliseconds(),
		MaxTokens:           s.maxTokens,
		ConfidenceThreshold: s.confidence,
		PIIAllowed:          s.piiAllowed,
		SensitivityAllowed:  s.sensitivity,
	}
}

func (s *StubLLMBackend) Process(ctx context.Context, prompt string, params Params, deadline time.Time) (*Result, *Failure) {
	atomic.AddInt64(&s.callCount, 1)

	s.mu.RLock()
	latency := s.latency
	failure := s.failure
	respondFn := s.respondFn
	confidence := s.confidence
	s.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, &Failure{Code: FailureTimeout, Message: "context canceled before dispatch"}
	default:
	}

	if !deadline.IsZero() && time.Until(deadline) < latency {
		return nil, &Failure{Code: FailureTimeout, Message: "deadline shorter than simulated latency"}
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, &Failure{Code: FailureTimeout, Message: "context canceled during processing"}
	case <-timer.C:
	}

	if failure != nil {
		return nil, failure
	}

	model := params.Model
	if model == "" {
		model = s.model
	}
	response := "ok: " + prompt
	if respondFn != nil {
		response = respondFn(prompt)
	}

	inputTokens := len(prompt) / 4
	outputTokens := len(response) / 4
	if params.MaxTokens > 0 && outputTokens > params.MaxTokens {
		outputTokens = params.MaxTokens
	}

	return &Result{
		Response:   response,
		Tokens:     mpcgw.TokenCounts{Prompt: inputTokens, Completion: outputTokens, Total: inputTokens + outputTokens},
		CostUSD:    EstimateCostUSD(model, inputTokens, outputTokens),
		Confidence: confidence,
		LatencyMS:  latency.Milliseconds(),
	}, nil
}

func (s *StubLLMBackend) Health(ctx context.Context) HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}
