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

package mpcgw

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaError names the offending field and why it failed validation. Code
// is ErrSchemaInvalid for shape/enum/range failures and ErrClockSkew for a
// timestamp outside the permitted tolerance, per spec.md §6's error taxonomy.
type SchemaError struct {
	Field  string
	Reason string
	Code   ErrorCode
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AsGatewayError converts e into the generic GatewayError type used across
// package boundaries.
func (e *SchemaError) AsGatewayError() *GatewayError {
	return &GatewayError{Code: e.Code, Message: e.Error()}
}

// ValidatorOption configures a Validator at construction time.
type ValidatorOption func(*Validator)

// WithMaxSize overrides the default 5 MiB request size ceiling.
func WithMaxSize(bytes int) ValidatorOption {
	return func(v *Validator) { v.maxSize = bytes }
}

// WithClockSkew overrides the default ±5 minute timestamp tolerance.
func WithClockSkew(skew time.Duration) ValidatorOption {
	return func(v *Validator) { v.clockSkew = skew }
}

// WithRegisteredSchemas overrides the set of payload_schema values accepted.
func WithRegisteredSchemas(schemas ...string) ValidatorOption {
	return func(v *Validator) {
		v.schemas = make(map[string]bool, len(schemas))
		for _, s := range schemas {
			v.schemas[s] = true
		}
	}
}

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// Validator checks an incoming request for shape and temporal validity
// before any authentication/authorization decision is made.
type Validator struct {
	maxSize   int
	clockSkew time.Duration
	schemas   map[string]bool
	now       func() time.Time
}

// NewValidator builds a Validator with spec defaults (5 MiB ceiling, ±5
// minute clock skew, no schema restriction until WithRegisteredSchemas is
// supplied).
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		maxSize:   5 * 1024 * 1024,
		clockSkew: 5 * time.Minute,
		now:       time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate decodes and checks raw against the ingress schema of spec.md §6.
// It performs shape validation only; payload contents are never inspected
// here.
func (v *Validator) Validate(raw []byte) (*Request, *SchemaError) {
	if v.maxSize > 0 && len(raw) > v.maxSize {
		return nil, &SchemaError{Field: "(body)", Reason: "exceeds maximum request size", Code: ErrSchemaInvalid}
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &SchemaError{Field: "(body)", Reason: "not valid JSON: " + err.Error(), Code: ErrSchemaInvalid}
	}

	if req.RequestID == "" {
		return nil, &SchemaError{Field: "request_id", Reason: "must not be empty", Code: ErrSchemaInvalid}
	}
	if req.Type == "" {
		return nil, &SchemaError{Field: "type", Reason: "must not be empty", Code: ErrSchemaInvalid}
	}
	if req.PayloadSchema == "" {
		return nil, &SchemaError{Field: "payload_schema", Reason: "must not be empty", Code: ErrSchemaInvalid}
	}
	if len(v.schemas) > 0 && !v.schemas[req.PayloadSchema] {
		return nil, &SchemaError{Field: "payload_schema", Reason: "not a registered schema: " + req.PayloadSchema, Code: ErrSchemaInvalid}
	}
	if !req.Config.Sensitivity.Valid() {
		return nil, &SchemaError{Field: "config.sensitivity", Reason: "not a recognized sensitivity level", Code: ErrSchemaInvalid}
	}
	if req.Config.ProcessingHint == "" {
		req.Config.ProcessingHint = HintAuto
	}
	if !req.Config.ProcessingHint.Valid() {
		return nil, &SchemaError{Field: "config.processing_hint", Reason: "not a recognized processing hint", Code: ErrSchemaInvalid}
	}
	if req.Config.ReturnRoute == "" {
		req.Config.ReturnRoute = ReturnRouteSync
	}
	if req.Config.ReturnRoute != ReturnRouteSync && req.Config.ReturnRoute != ReturnRouteAsync {
		return nil, &SchemaError{Field: "config.return_route", Reason: "must be sync or async", Code: ErrSchemaInvalid}
	}
	if req.Config.TimeoutMS == 0 {
		return nil, &SchemaError{Field: "config.timeout_ms", Reason: "must be greater than zero", Code: ErrSchemaInvalid}
	}
	if req.Auth.Token == "" {
		return nil, &SchemaError{Field: "auth.token", Reason: "must not be empty", Code: ErrSchemaInvalid}
	}

	if req.Timestamp.IsZero() {
		return nil, &SchemaError{Field: "timestamp", Reason: "must be a valid RFC3339 timestamp", Code: ErrSchemaInvalid}
	}
	skew := v.now().Sub(req.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.clockSkew {
		return nil, &SchemaError{Field: "timestamp", Reason: "outside permitted clock skew", Code: ErrClockSkew}
	}

	return &req, nil
}
