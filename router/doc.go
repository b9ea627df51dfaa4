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

// Package router is the pure selection function of spec.md §4.4: given a
// request's capability, sensitivity, hint, and cost/latency ceilings, it
// filters the Backend Registry down to compatible candidates, orders them
// by a composite cost/latency/confidence score, and builds a primary-plus-
// fallback cascade. It never invokes a backend itself; that is the
// Gateway's job.
package router
