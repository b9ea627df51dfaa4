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

// Package mpcgw defines the core request-path types shared by the gateway:
// the ingress/egress wire contract, the authenticated Principal, the Backend
// descriptor, PII/event/anomaly/audit records, and the stable error-code
// taxonomy. Nothing in this package talks to the network or a database; it
// is the vocabulary every other package (pii, auth, registry, router,
// backend, gateway, events, audit) is built from.
package mpcgw
