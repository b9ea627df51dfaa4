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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_Strategies(t *testing.T) {
	r := NewRedactor(nil)

	masked := r.RedactValue("john@example.com", StrategyMask)
	assert.NotEqual(t, "john@example.com", masked)
	assert.Contains(t, masked, "*")

	redacted := r.RedactValue("john@example.com", StrategyRedact)
	assert.Equal(t, len("john@example.com"), len(redacted))
	assert.NotContains(t, redacted, "@")

	hashed := r.RedactValue("john@example.com", StrategyHash)
	assert.Contains(t, hashed, "sha256:")
	assert.NotContains(t, hashed, "john")
}

func TestRedactor_TokenizeDetokenizeRoundTrip(t *testing.T) {
	r := NewRedactor(nil)
	value := "john@example.com"

	token := r.RedactValue(value, StrategyTokenize)
	assert.NotEqual(t, value, token)

	restored, ok := r.Detokenize(token)
	require.True(t, ok)
	assert.Equal(t, value, restored)
}

func TestRedactor_Detokenize_UnknownTokenMisses(t *testing.T) {
	r := NewRedactor(nil)
	_, ok := r.Detokenize("tok_does_not_exist")
	assert.False(t, ok)
}

func TestRedactor_Redact_AppliesAllMatches(t *testing.T) {
	r := NewRedactor(nil)
	text := "Email jane@example.com or call 555-000-1111"
	matches := []Match{
		{Type: Email, Start: 6, End: 22, Raw: "jane@example.com"},
		{Type: Phone, Start: 31, End: 43, Raw: "555-000-1111"},
	}
	out := r.Redact(text, matches, StrategyRedact)
	assert.NotContains(t, out, "jane@example.com")
	assert.NotContains(t, out, "555-000-1111")
}
