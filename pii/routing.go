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

package pii

import "github.com/axonflow-gateway/mpc-gateway/mpcgw"

// RoutingCompatible reports whether backend may receive a prompt with the
// given PII screening result. It blocks only when PII was found and the
// backend does not allow it; a clean prompt is always compatible, per
// spec.md §4.3.
func RoutingCompatible(result mpcgw.PIIResult, backend *mpcgw.Backend) bool {
	if !result.HasPII {
		return true
	}
	return backend != nil && backend.PIIAllowed
}
