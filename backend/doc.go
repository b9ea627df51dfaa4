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

// Package backend defines the uniform adapter contract every processing
// engine implements (describe/process/health, spec.md §6) and ships the
// two adapters this repo needs for tests and local operation: a
// zero-cost rule engine and a configurable stub standing in for a real
// LLM provider. A concrete OpenAI/Anthropic/Bedrock adapter is out of
// scope (spec.md §1) but drops in against the same Backend interface.
package backend
