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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

func principalWith(role mpcgw.Role, extra ...mpcgw.Permission) *mpcgw.Principal {
	perms := RoleDefaults(role)
	for _, p := range extra {
		perms[p] = true
	}
	return &mpcgw.Principal{Subject: "p", Role: role, Permissions: perms}
}

func TestAuthorize_Matrix(t *testing.T) {
	authZ := NewAuthorizer()

	cases := []struct {
		name   string
		p      *mpcgw.Principal
		in     AuthzInput
		expect bool
	}{
		{"admin can access pii", principalWith(mpcgw.RoleAdmin), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPII}, true},
		{"service denied pii without pii_access", principalWith(mpcgw.RoleService), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPII}, false},
		{"service allowed pii with pii_access", principalWith(mpcgw.RoleService, mpcgw.PermPIIAccess), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPII}, true},
		{"read_only denied execute", principalWith(mpcgw.RoleReadOnly), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPublic}, false},
		{"read_only allowed read", principalWith(mpcgw.RoleReadOnly), AuthzInput{Action: mpcgw.PermRead, Sensitivity: mpcgw.SensitivityPublic}, true},
		{"sensitive requires sensitive_access", principalWith(mpcgw.RoleService), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivitySensitive}, false},
		{"confidential denied without sensitive_access", principalWith(mpcgw.RoleService), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityConfidential}, false},
		{"confidential allowed with sensitive_access alone", principalWith(mpcgw.RoleService, mpcgw.PermSensitiveAccess), AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityConfidential}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, reason := authZ.Authorize(tc.p, tc.in)
			assert.Equal(t, tc.expect, allowed, "reason: %s", reason)
			if !tc.expect {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestAuthorize_CostCeiling(t *testing.T) {
	authZ := NewAuthorizer()
	p := principalWith(mpcgw.RoleService)
	p.CostCeiling = 1.00

	allowed, _ := authZ.Authorize(p, AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPublic, EstimatedCostUSD: 0.50})
	assert.True(t, allowed)

	allowed, reason := authZ.Authorize(p, AuthzInput{Action: mpcgw.PermExecute, Sensitivity: mpcgw.SensitivityPublic, EstimatedCostUSD: 5.00})
	assert.False(t, allowed)
	assert.Contains(t, reason, "exceeds")
}

func TestAuthorize_WildcardPermission(t *testing.T) {
	authZ := NewAuthorizer()
	p := &mpcgw.Principal{Subject: "root", Role: mpcgw.RoleAdmin, Permissions: map[mpcgw.Permission]bool{"*": true}}

	allowed, _ := authZ.Authorize(p, AuthzInput{Action: mpcgw.PermAdmin, Sensitivity: mpcgw.SensitivityConfidential})
	assert.True(t, allowed)
}

func TestAuthorize_NilPrincipal(t *testing.T) {
	authZ := NewAuthorizer()
	allowed, reason := authZ.Authorize(nil, AuthzInput{Action: mpcgw.PermRead})
	assert.False(t, allowed)
	assert.NotEmpty(t, reason)
}
