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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks the optional HMAC-SHA256 payload signature
// carried in Request.Auth.Signature, generalized from the original
// mpc_server's SignatureVerifier (poc/security/auth.py). It is a distinct
// integrity check from token authentication: the token proves who is
// calling, the signature proves the payload bytes reaching the gateway
// are exactly what the caller sent.
//
// The signing secret is independent of the token-signing secret and held
// only as an unexported field, matching TokenService.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier builds a SignatureVerifier over the given shared
// secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of payload, the counterpart a
// caller uses to populate Request.Auth.Signature.
func (v *SignatureVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the correct HMAC-SHA256 of payload
// under this verifier's secret, using a constant-time comparison.
func (v *SignatureVerifier) Verify(payload []byte, signature string) bool {
	expected := v.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
