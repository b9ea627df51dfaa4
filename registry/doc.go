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

// Package registry holds the in-memory catalog of mpcgw.Backend
// descriptors the Router selects from. It is read-mostly: reads never
// block behind a mutex, and reloads happen by swapping an entire
// immutable snapshot atomically, never by mutating one in place.
package registry
