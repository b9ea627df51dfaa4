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

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureVerifier_VerifiesItsOwnSignature(t *testing.T) {
	v := NewSignatureVerifier("shared-secret")
	payload := []byte(`{"model":"gpt","prompt":"hi"}`)

	sig := v.Sign(payload)
	assert.True(t, v.Verify(payload, sig))
}

func TestSignatureVerifier_RejectsTamperedPayload(t *testing.T) {
	v := NewSignatureVerifier("shared-secret")
	sig := v.Sign([]byte(`{"model":"gpt","prompt":"hi"}`))

	assert.False(t, v.Verify([]byte(`{"model":"gpt","prompt":"bye"}`), sig))
}

func TestSignatureVerifier_RejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"model":"gpt","prompt":"hi"}`)
	sig := NewSignatureVerifier("secret-a").Sign(payload)

	assert.False(t, NewSignatureVerifier("secret-b").Verify(payload, sig))
}

func TestSignatureVerifier_RejectsMalformedSignature(t *testing.T) {
	v := NewSignatureVerifier("shared-secret")
	assert.False(t, v.Verify([]byte(`{"model":"gpt"}`), "not-hex-and-wrong-length"))
}
