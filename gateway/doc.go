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

// Package gateway wires the Validator, TokenService, Authorizer, PII
// engine, Router, Backend Registry, Event Pipeline, and Audit Sink into
// the single request state machine: RECEIVED -> VALIDATED ->
// AUTHENTICATED -> AUTHORIZED -> SCREENED -> ROUTED -> EXECUTING ->
// (RETRYING) -> COMPLETED -> EMITTED -> RESPONDED, with REJECTED as the
// terminal failure state from any phase.
//
// A Gateway takes every collaborator as an explicit constructor
// dependency; none are package-level globals.
package gateway
