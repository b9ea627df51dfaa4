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

package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/axonflow-gateway/mpc-gateway/audit"
	"github.com/axonflow-gateway/mpc-gateway/auth"
	"github.com/axonflow-gateway/mpc-gateway/backend"
	"github.com/axonflow-gateway/mpc-gateway/events"
	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/pii"
	"github.com/axonflow-gateway/mpc-gateway/registry"
	"github.com/axonflow-gateway/mpc-gateway/router"
	"github.com/axonflow-gateway/mpc-gateway/shared/logger"
)

// MinCascadeSlice is the minimum remaining deadline budget required to
// attempt another cascade candidate, per spec.md §5.
const MinCascadeSlice = 200 * time.Millisecond

// llmPayload is the typed view of the opaque request payload, decoded
// lazily per spec.md §9's "decode the payload lazily" design note.
type llmPayload struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// llmResult is the typed shape written into Response.Result on success.
type llmResult struct {
	Response string            `json:"response"`
	Tokens   mpcgw.TokenCounts `json:"tokens"`
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithAuthorizer overrides the default RBAC+ABAC Authorizer.
func WithAuthorizer(a *auth.Authorizer) Option {
	return func(g *Gateway) { g.authz = a }
}

// WithSignatureVerifier enables payload-signature verification: when set,
// a request that populates the optional Auth.Signature field (spec.md §3)
// has its payload checked against the verifier before authorization. A
// request with no signature is still accepted — the field is optional per
// spec.md §3 — this only rejects a signature that is present and wrong.
func WithSignatureVerifier(v *auth.SignatureVerifier) Option {
	return func(g *Gateway) { g.signatureVerifier = v }
}

// WithPIIDetector overrides the default PII Detector.
func WithPIIDetector(d *pii.Detector) Option {
	return func(g *Gateway) { g.piiDetector = d }
}

// WithInjectionDetector overrides the default InjectionDetector.
func WithInjectionDetector(d *pii.InjectionDetector) Option {
	return func(g *Gateway) { g.injectionDetector = d }
}

// WithRedactor overrides the default Redactor and redaction Strategy used
// when converting PII matches into wire-safe results.
func WithRedactor(r *pii.Redactor, strategy pii.Strategy) Option {
	return func(g *Gateway) { g.redactor = r; g.redactStrategy = strategy }
}

// WithRouter overrides the default Router.
func WithRouter(r *router.Router) Option {
	return func(g *Gateway) { g.router = r }
}

// WithIdempotencyCache overrides the default MemoryIdempotencyCache.
func WithIdempotencyCache(c IdempotencyCache) Option {
	return func(g *Gateway) { g.idempotency = c }
}

// WithIdempotencyTTL overrides the default 15 minute idempotency TTL.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.idempotencyTTL = ttl }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithDefaultCapability overrides the capability assumed for requests
// whose payload_schema does not otherwise imply one (spec.md §6's ingress
// schema carries no explicit capability field).
func WithDefaultCapability(c mpcgw.Capability) Option {
	return func(g *Gateway) { g.defaultCapability = c }
}

// Gateway is the request orchestrator of spec.md §4.5. Every collaborator
// is an explicit dependency, never a package-level global (spec.md §9).
type Gateway struct {
	validator         *mpcgw.Validator
	tokens            *auth.TokenService
	authz             *auth.Authorizer
	signatureVerifier *auth.SignatureVerifier
	piiDetector       *pii.Detector
	injectionDetector *pii.InjectionDetector
	redactor          *pii.Redactor
	redactStrategy    pii.Strategy
	router            *router.Router
	registry          *registry.Registry
	adapters          *adapterSet
	pipeline          *events.Pipeline
	auditSink         audit.Sink
	idempotency       IdempotencyCache
	idempotencyTTL    time.Duration
	logger            *logger.Logger
	now               func() time.Time
	defaultCapability mpcgw.Capability
}

// New builds a Gateway. reg is the Backend Registry backends are
// registered into via RegisterBackend; tokens verifies bearer tokens;
// pipeline receives every enriched AIEvent; auditSink receives every
// AuditRecord.
func New(reg *registry.Registry, tokens *auth.TokenService, pipeline *events.Pipeline, auditSink audit.Sink, opts ...Option) *Gateway {
	detector, _ := pii.NewDetector()
	injection, _ := pii.NewInjectionDetector()

	g := &Gateway{
		validator:         mpcgw.NewValidator(),
		tokens:            tokens,
		authz:             auth.NewAuthorizer(),
		piiDetector:       detector,
		injectionDetector: injection,
		redactor:          pii.NewRedactor(nil),
		redactStrategy:    pii.StrategyRedact,
		router:            router.New(reg),
		registry:          reg,
		adapters:          newAdapterSet(reg),
		pipeline:          pipeline,
		auditSink:         auditSink,
		idempotency:       NewMemoryIdempotencyCache(),
		idempotencyTTL:    DefaultIdempotencyTTL,
		now:               time.Now,
		defaultCapability: mpcgw.CapabilityTextGeneration,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// RegisterBackend adds b to the Router's catalog and the invocation
// table, keeping the two in lockstep.
func (g *Gateway) RegisterBackend(b backend.Backend) error {
	return g.adapters.register(b)
}

func hashPrincipal(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}

// estimateTokens is a coarse, provider-agnostic heuristic (~4 characters
// per token) used only where an exact count is unavailable yet: pre-route
// cost estimation and authorization.
func estimateTokens(text string) int {
	n := len(text)/4 + 1
	if n < 1 {
		return 1
	}
	return n
}

// worstCaseCostPer1K returns the highest cost_per_1k_tokens among every
// currently registered backend, used as a conservative pre-routing
// estimate for the authorization cost-ceiling check (the exact backend
// has not been chosen yet).
func (g *Gateway) worstCaseCostPer1K() float64 {
	var max float64
	for _, b := range g.registry.All() {
		if b.CostPer1KTokens > max {
			max = b.CostPer1KTokens
		}
	}
	return max
}

func (g *Gateway) newResponse(req *mpcgw.Request, status mpcgw.ResponseStatus) mpcgw.Response {
	return mpcgw.Response{
		MPCVersion: req.MPCVersion,
		RequestID:  req.RequestID,
		ResponseID: uuid.NewString(),
		Timestamp:  g.now(),
		Status:     status,
	}
}

// Handle drives a single request through the full state machine and
// returns the terminal Response. It never panics on malformed input;
// every failure path is mapped to a stable ErrorCode.
func (g *Gateway) Handle(ctx context.Context, raw []byte) *mpcgw.Response {
	// RECEIVED -> VALIDATED
	req, schemaErr := g.validator.Validate(raw)
	if schemaErr != nil {
		return g.rejectPreAuth(req, schemaErr.Code, schemaErr.Error())
	}

	deadline := g.requestDeadline(ctx, req)

	// VALIDATED -> AUTHENTICATED
	principal, authErr := g.tokens.Authenticate(req.Auth.Token)
	if authErr != nil {
		var ge *mpcgw.GatewayError
		if te, ok := authErr.(*auth.TokenError); ok {
			ge = te.AsGatewayError()
		} else {
			ge = mpcgw.NewError(mpcgw.ErrAuthInvalid, "invalid credentials")
		}
		return g.rejectAuthFailure(req, ge)
	}
	principalHash := hashPrincipal(principal.Subject)

	// Optional payload-signature check, distinct from token authentication:
	// the token proves who is calling, the signature (when present) proves
	// the payload bytes were not tampered with in transit.
	if req.Auth.Signature != "" && g.signatureVerifier != nil {
		if !g.signatureVerifier.Verify(req.Payload, req.Auth.Signature) {
			return g.rejectAuthFailure(req, mpcgw.NewError(mpcgw.ErrSignatureInvalid, "request signature verification failed"))
		}
	}

	// Idempotency short-circuit: a cached terminal response wins outright.
	if req.IdempotencyKey != "" {
		if cached, ok := g.idempotency.Get(principal.Subject, req.IdempotencyKey); ok {
			resp := *cached
			resp.ResponseID = uuid.NewString()
			resp.Timestamp = g.now()
			return &resp
		}
	}

	payload, payloadErr := decodePayload(req.Payload)
	if payloadErr != nil {
		return g.rejectPostAuth(req, principalHash, mpcgw.ErrSchemaInvalid, "invalid payload: "+payloadErr.Error(), RejectSchema)
	}

	estimatedTok := estimateTokens(payload.Prompt)
	estimatedCost := float64(estimatedTok) / 1000 * g.worstCaseCostPer1K()

	// AUTHENTICATED -> AUTHORIZED
	allowed, reason := g.authz.Authorize(principal, auth.AuthzInput{
		Action:           mpcgw.PermExecute,
		Sensitivity:      req.Config.Sensitivity,
		EstimatedCostUSD: estimatedCost,
	})
	if !allowed {
		g.auditSink.Write(mpcgw.AuditRecord{
			Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
			EventType: mpcgw.AuditAuthz, Outcome: "denied",
			Attrs: map[string]string{"reason": reason},
		})
		return g.finalizeFailure(req, principalHash, mpcgw.NewError(mpcgw.ErrAuthzDenied, reason), false, RejectAuthz)
	}

	// AUTHORIZED -> SCREENED
	var piiResult mpcgw.PIIResult
	if req.Config.EnablePIIDetection {
		matches := g.piiDetector.Detect(payload.Prompt)
		piiResult = pii.ToPIIResult(matches, g.redactor, g.redactStrategy)
	}
	injectionDetected := false
	if req.Config.EnableInjectionDetection {
		injectionDetected = g.injectionDetector.Detected(payload.Prompt)
	}

	if piiResult.HasPII {
		types := make([]string, 0, len(piiResult.Types))
		for _, t := range piiResult.Types {
			types = append(types, string(t))
		}
		g.auditSink.Write(mpcgw.AuditRecord{
			Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
			EventType: mpcgw.AuditPII, Outcome: "detected",
			Attrs: map[string]string{"types": joinStrings(types)},
		})
	}

	// SCREENED -> ROUTED
	routeInput := router.Input{
		Capability:      g.defaultCapability,
		Sensitivity:     req.Config.Sensitivity,
		Hint:            req.Config.ProcessingHint,
		MaxCostUSD:      costCeilingPtr(principal.CostCeiling),
		EstimatedTokens: estimatedTok,
		HasPII:          piiResult.HasPII,
		UseCascade:      true,
	}
	decision := g.router.Route(routeInput)
	if len(decision.BackendIDs) == 0 {
		// piiResult.HasPII alone doesn't tell us PII was the blocking
		// constraint: the filter in router.Route ANDs capability,
		// sensitivity, PII, cost, and latency, so any one of those could
		// have emptied the candidate set independently of PII. Re-run the
		// same routing input with HasPII forced false; if candidates
		// reappear, PII was indeed what excluded every backend.
		piiWasBlocker := false
		if piiResult.HasPII {
			withoutPII := routeInput
			withoutPII.HasPII = false
			piiWasBlocker = len(g.router.Route(withoutPII).BackendIDs) > 0
		}
		if piiWasBlocker {
			g.auditSink.Write(mpcgw.AuditRecord{
				Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
				EventType: mpcgw.AuditViolation, Outcome: "blocked",
				Attrs: map[string]string{"reason": "pii_routing_blocked", "types": joinStrings(piiTypeStrings(piiResult))},
			})
			return g.finalizeFailure(req, principalHash, mpcgw.NewError(mpcgw.ErrPIIRoutingBlocked, "no PII-capable backend available for this request"), piiResult.HasPII, RejectPIIBlocked)
		}
		return g.finalizeFailure(req, principalHash, mpcgw.NewError(mpcgw.ErrNoBackendAvailable, "no backend satisfies the routing constraints"), piiResult.HasPII, RejectNoBackend)
	}

	// ROUTED -> EXECUTING -> (RETRYING) -> COMPLETED
	return g.execute(ctx, req, principal.Subject, principalHash, payload, piiResult, injectionDetected, decision, deadline)
}

// requestDeadline computes min(config.timeout_ms, transport_deadline) per
// spec.md §5.
func (g *Gateway) requestDeadline(ctx context.Context, req *mpcgw.Request) time.Time {
	deadline := g.now().Add(time.Duration(req.Config.TimeoutMS) * time.Millisecond)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

func costCeilingPtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func piiTypeStrings(r mpcgw.PIIResult) []string {
	out := make([]string, 0, len(r.Types))
	for _, t := range r.Types {
		out = append(out, string(t))
	}
	return out
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func decodePayload(raw json.RawMessage) (llmPayload, error) {
	var p llmPayload
	if len(raw) == 0 {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}
