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

// Package auth turns a bearer token into an mpcgw.Principal (TokenService)
// and decides whether that Principal may perform a given action against a
// given resource (Authorizer). Token verification never leaks which claim
// failed; authorization failures carry a human-readable reason alongside
// the coarse AUTHZ_DENIED code.
package auth
