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

// Package pii scans prompt text for personally identifiable information,
// redacts or tokenizes it, and checks whether a backend is permitted to
// receive it. Detection is pattern-plus-validator: a regexp narrows
// candidates, a per-type validator assigns a confidence and rules out
// false positives using the surrounding context.
package pii
