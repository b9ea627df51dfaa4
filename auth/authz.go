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

package auth

import (
	"fmt"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// wildcardPermission, generalized from agent/policy/permissions.go's
// "mcp:*"/"*" matching, lets an admin-style token grant every action
// without enumerating each one.
const wildcardPermission = mpcgw.Permission("*")

// AuthzInput is the resource side of an authorization decision: the action
// being attempted and the attributes of the resource it targets.
type AuthzInput struct {
	Action           mpcgw.Permission
	Sensitivity      mpcgw.Sensitivity
	EstimatedCostUSD float64
}

// Authorizer implements the RBAC+ABAC decision of spec.md §4.2: the
// principal must hold Action, and every attribute constraint for the
// resource's sensitivity and estimated cost must hold.
type Authorizer struct{}

// NewAuthorizer builds an Authorizer. It carries no state: every decision
// is a pure function of (Principal, AuthzInput).
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func hasPermission(perms map[mpcgw.Permission]bool, action mpcgw.Permission) bool {
	if perms[wildcardPermission] {
		return true
	}
	return perms[action]
}

// Authorize returns (true, "") when allowed, or (false, reason) when
// denied. reason is safe to log and to surface in ResponseError.Message;
// the Gateway still reports the coarse AUTHZ_DENIED code (spec.md §7).
func (a *Authorizer) Authorize(p *mpcgw.Principal, in AuthzInput) (bool, string) {
	if p == nil {
		return false, "no authenticated principal"
	}

	if !hasPermission(p.Permissions, in.Action) {
		return false, fmt.Sprintf("principal %q lacks permission %q", p.Subject, in.Action)
	}

	switch in.Sensitivity {
	case mpcgw.SensitivityPII:
		if !hasPermission(p.Permissions, mpcgw.PermPIIAccess) {
			return false, fmt.Sprintf("principal %q lacks pii_access for sensitivity %q", p.Subject, in.Sensitivity)
		}
	case mpcgw.SensitivitySensitive, mpcgw.SensitivityConfidential:
		if !hasPermission(p.Permissions, mpcgw.PermSensitiveAccess) {
			return false, fmt.Sprintf("principal %q lacks sensitive_access for sensitivity %q", p.Subject, in.Sensitivity)
		}
	}

	if p.CostCeiling > 0 && in.EstimatedCostUSD > p.CostCeiling {
		return false, fmt.Sprintf("estimated cost %.4f exceeds principal %q ceiling %.4f", in.EstimatedCostUSD, p.Subject, p.CostCeiling)
	}

	return true, ""
}
