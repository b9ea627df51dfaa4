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

// RequestState names a point in the per-request state machine. It is
// carried only for logging/observability; control flow itself is
// ordinary Go control flow in Handle.
type RequestState string

const (
	StateReceived      RequestState = "received"
	StateValidated     RequestState = "validated"
	StateAuthenticated RequestState = "authenticated"
	StateAuthorized    RequestState = "authorized"
	StateScreened      RequestState = "screened"
	StateRouted        RequestState = "routed"
	StateExecuting     RequestState = "executing"
	StateRetrying      RequestState = "retrying"
	StateCompleted     RequestState = "completed"
	StateEmitted       RequestState = "emitted"
	StateResponded     RequestState = "responded"
	StateRejected      RequestState = "rejected"
)

// RejectReason names why a request terminated in StateRejected.
type RejectReason string

const (
	RejectSchema       RejectReason = "schema"
	RejectAuthn        RejectReason = "authn"
	RejectAuthz        RejectReason = "authz"
	RejectPIIBlocked   RejectReason = "pii_blocked"
	RejectNoBackend    RejectReason = "no_backend"
	RejectBackendError RejectReason = "backend_error"
	RejectTimeout      RejectReason = "timeout"
)
