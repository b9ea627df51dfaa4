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

import "fmt"

// ConfigError reports a problem building a Detector or Redactor.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// ErrUnknownType builds the ConfigError raised when WithEnabledTypes names
// a type that has no registered pattern.
func ErrUnknownType(t Type) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf("pii: unknown type %q", string(t))}
}
