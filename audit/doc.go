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

// Package audit persists mpcgw.AuditRecord entries: append-only,
// newline-per-record in spirit, narrowed to event_type ∈ {authz, pii,
// processing, violation} and never carrying raw prompt/response text.
// Adapted from the teacher's AuditLogger/BatchWriter
// (orchestrator/audit_logger.go): a bounded queue drained by a background
// worker that batches writes and flushes on a ticker or at shutdown.
package audit
