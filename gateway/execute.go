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

	"github.com/axonflow-gateway/mpc-gateway/backend"
	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/router"
)

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:12])
}

var failureCodeMap = map[backend.FailureCode]mpcgw.ErrorCode{
	backend.FailureTimeout:         mpcgw.ErrBackendTimeout,
	backend.FailureRateLimited:     mpcgw.ErrRateLimited,
	backend.FailureUpstreamError:   mpcgw.ErrBackendError,
	backend.FailureInvalidResponse: mpcgw.ErrBackendError,
}

func rejectReasonForCode(code mpcgw.ErrorCode) RejectReason {
	switch code {
	case mpcgw.ErrBackendTimeout:
		return RejectTimeout
	case mpcgw.ErrNoBackendAvailable:
		return RejectNoBackend
	default:
		return RejectBackendError
	}
}

// execute drives EXECUTING/RETRYING/COMPLETED: it walks decision's ordered
// backend list, invoking each with the shared absolute deadline, retrying
// on retriable failures while cascade budget remains.
func (g *Gateway) execute(
	ctx context.Context,
	req *mpcgw.Request,
	subject string,
	principalHash string,
	payload llmPayload,
	piiResult mpcgw.PIIResult,
	injectionDetected bool,
	decision router.Decision,
	deadline time.Time,
) *mpcgw.Response {
	var lastCode mpcgw.ErrorCode = mpcgw.ErrNoBackendAvailable
	lastMessage := "no backend attempted"

	for i, id := range decision.BackendIDs {
		if time.Until(deadline) < MinCascadeSlice {
			lastCode = mpcgw.ErrBackendTimeout
			lastMessage = "insufficient deadline remaining for another cascade attempt"
			break
		}

		desc, err := g.registry.Get(id)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn(req.RequestID, principalHash, "router returned unknown backend id", map[string]interface{}{"backend_id": id})
			}
			continue
		}
		adapter, err := g.adapters.get(id)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn(req.RequestID, principalHash, "no adapter registered for backend id", map[string]interface{}{"backend_id": id})
			}
			continue
		}

		result, failure := adapter.Process(ctx, payload.Prompt, backend.Params{
			Model:       payload.Model,
			MaxTokens:   payload.MaxTokens,
			Temperature: payload.Temperature,
		}, deadline)

		if failure != nil {
			g.auditSink.Write(mpcgw.AuditRecord{
				Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
				EventType: mpcgw.AuditProcessing, Outcome: "failed",
				Attrs: map[string]string{"backend_id": id, "failure_code": string(failure.Code)},
			})
			lastCode = failureCodeMap[failure.Code]
			lastMessage = failure.Message
			if failure.Retriable() && i < len(decision.BackendIDs)-1 {
				continue
			}
			break
		}

		if desc.Type == mpcgw.BackendHybrid && result.Confidence < desc.ConfidenceThreshold {
			g.auditSink.Write(mpcgw.AuditRecord{
				Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
				EventType: mpcgw.AuditProcessing, Outcome: "low_confidence",
				Attrs: map[string]string{"backend_id": id},
			})
			lastCode = mpcgw.ErrBackendError
			lastMessage = "confidence below threshold in hybrid mode"
			if i < len(decision.BackendIDs)-1 {
				continue
			}
			break
		}

		g.auditSink.Write(mpcgw.AuditRecord{
			Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
			EventType: mpcgw.AuditProcessing, Outcome: "success",
			Attrs: map[string]string{"backend_id": id},
		})

		return g.finalizeSuccess(req, subject, principalHash, payload, piiResult, injectionDetected, desc, id, result, i > 0)
	}

	return g.finalizeFailure(req, principalHash, mpcgw.NewError(lastCode, lastMessage), piiResult.HasPII, rejectReasonForCode(lastCode))
}

func (g *Gateway) finalizeSuccess(
	req *mpcgw.Request,
	subject string,
	principalHash string,
	payload llmPayload,
	piiResult mpcgw.PIIResult,
	injectionDetected bool,
	desc *mpcgw.Backend,
	backendID string,
	result *backend.Result,
	fallbackUsed bool,
) *mpcgw.Response {
	resp := g.newResponse(req, mpcgw.StatusOK)

	body, _ := json.Marshal(llmResult{Response: result.Response, Tokens: result.Tokens})
	resp.Result = body
	resp.Processing = mpcgw.ProcessingInfo{
		BackendID:    backendID,
		LatencyMS:    result.LatencyMS,
		CostUSD:      result.CostUSD,
		Confidence:   result.Confidence,
		FallbackUsed: fallbackUsed,
	}
	resp.SecurityFlags = mpcgw.SecurityFlags{HasPII: piiResult.HasPII, InjectionDetected: injectionDetected}

	metadata := map[string]string{}
	if result.Confidence < desc.ConfidenceThreshold {
		metadata["low_confidence"] = "true"
	}

	g.emitEvent(mpcgw.AIEvent{
		RequestID:           req.RequestID,
		Timestamp:           g.now(),
		PrincipalHash:       principalHash,
		Provider:            string(desc.Type),
		Model:               payload.Model,
		PromptFingerprint:   fingerprint(payload.Prompt),
		ResponseFingerprint: fingerprint(result.Response),
		LatencyMS:           result.LatencyMS,
		Tokens:              result.Tokens,
		CostUSD:             result.CostUSD,
		Success:             true,
		Metadata:            metadata,
	}, piiResult, injectionDetected)

	if req.IdempotencyKey != "" {
		g.idempotency.Set(subject, req.IdempotencyKey, resp, g.idempotencyTTL)
	}

	return &resp
}

func (g *Gateway) finalizeFailure(req *mpcgw.Request, principalHash string, gwErr *mpcgw.GatewayError, hasPII bool, reason RejectReason) *mpcgw.Response {
	resp := g.newResponse(req, mpcgw.StatusError)
	resp.Error = &mpcgw.ResponseError{Code: gwErr.Code, Message: gwErr.Message}
	resp.SecurityFlags = mpcgw.SecurityFlags{HasPII: hasPII}

	g.auditSink.Write(mpcgw.AuditRecord{
		Timestamp: g.now(), RequestID: req.RequestID, PrincipalHash: principalHash,
		EventType: mpcgw.AuditProcessing, Outcome: "rejected",
		Attrs: map[string]string{"reason": string(reason), "code": string(gwErr.Code)},
	})

	g.emitEvent(mpcgw.AIEvent{
		RequestID:     req.RequestID,
		Timestamp:     g.now(),
		PrincipalHash: principalHash,
		Success:       false,
		ErrorCode:     gwErr.Code,
		HasPII:        hasPII,
	}, mpcgw.PIIResult{HasPII: hasPII}, false)

	return &resp
}

// rejectPreAuth handles schema/clock-skew failures, which fail fast
// before authentication per spec.md §7. req may be nil when the body was
// not even valid JSON.
func (g *Gateway) rejectPreAuth(req *mpcgw.Request, code mpcgw.ErrorCode, message string) *mpcgw.Response {
	var placeholder mpcgw.Request
	if req != nil {
		placeholder = *req
	} else {
		placeholder = mpcgw.Request{MPCVersion: "1.0"}
	}
	resp := g.newResponse(&placeholder, mpcgw.StatusError)
	resp.Error = &mpcgw.ResponseError{Code: code, Message: message}

	g.auditSink.Write(mpcgw.AuditRecord{
		Timestamp: g.now(), RequestID: placeholder.RequestID,
		EventType: mpcgw.AuditProcessing, Outcome: "rejected",
		Attrs: map[string]string{"reason": string(RejectSchema), "code": string(code)},
	})
	g.emitEvent(mpcgw.AIEvent{
		RequestID: placeholder.RequestID, Timestamp: g.now(),
		Success: false, ErrorCode: code,
	}, mpcgw.PIIResult{}, false)

	return &resp
}

// rejectAuthFailure handles authentication failures. Per spec.md §7 the
// public message never reveals which field failed; per S6 it is still
// audited as an authz-category record with outcome denied.
func (g *Gateway) rejectAuthFailure(req *mpcgw.Request, gwErr *mpcgw.GatewayError) *mpcgw.Response {
	resp := g.newResponse(req, mpcgw.StatusError)
	resp.Error = &mpcgw.ResponseError{Code: gwErr.Code, Message: gwErr.Message}

	g.auditSink.Write(mpcgw.AuditRecord{
		Timestamp: g.now(), RequestID: req.RequestID,
		EventType: mpcgw.AuditAuthz, Outcome: "denied",
		Attrs: map[string]string{"code": string(gwErr.Code)},
	})
	g.emitEvent(mpcgw.AIEvent{
		RequestID: req.RequestID, Timestamp: g.now(),
		Success: false, ErrorCode: gwErr.Code,
	}, mpcgw.PIIResult{}, false)

	return &resp
}

// rejectPostAuth handles a failure discovered after authentication but
// before routing (for example an undecodable payload).
func (g *Gateway) rejectPostAuth(req *mpcgw.Request, principalHash string, code mpcgw.ErrorCode, message string, reason RejectReason) *mpcgw.Response {
	return g.finalizeFailure(req, principalHash, mpcgw.NewError(code, message), false, reason)
}

// emitEvent submits raw to the Event Pipeline for enrichment, anomaly
// detection, and persistence, satisfying the "exactly one AIEvent per
// terminal response" invariant.
func (g *Gateway) emitEvent(raw mpcgw.AIEvent, piiResult mpcgw.PIIResult, injectionDetected bool) {
	g.pipeline.Submit(raw, piiResult, injectionDetected)
}
