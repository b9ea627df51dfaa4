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

// Package events is the asynchronous Event Pipeline of spec.md §4.6: a
// Processor enriches each raw AIEvent with risk scoring, an
// AnomalyDetector flags event-local and pattern-level deviations, a
// Storage implementation persists both, and an AlertEmitter notifies a
// sink for anomalies at or above high severity.
package events
