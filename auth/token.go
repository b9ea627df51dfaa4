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
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// TokenError is returned by Authenticate. Code is always ErrAuthInvalid or
// ErrAuthExpired; Reason is never surfaced to the caller (spec.md §7:
// authentication failures never leak which field failed) but is safe to
// log internally.
type TokenError struct {
	Code   mpcgw.ErrorCode
	Reason string
}

func (e *TokenError) Error() string { return e.Reason }

// AsGatewayError converts e to the generic cross-package error type,
// replacing Reason with the fixed public message spec.md §7 requires.
func (e *TokenError) AsGatewayError() *mpcgw.GatewayError {
	msg := "invalid credentials"
	if e.Code == mpcgw.ErrAuthExpired {
		msg = "token expired"
	}
	return &mpcgw.GatewayError{Code: e.Code, Message: msg}
}

// TokenServiceOption configures a TokenService at construction time.
type TokenServiceOption func(*TokenService)

// WithClock overrides the wall-clock source, for deterministic tests of
// token expiry.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

// TokenService verifies bearer tokens and derives an mpcgw.Principal from
// their claims. The signing secret is held only as an unexported field and
// is never passed to the logger.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService builds a TokenService using HS256 with secret as the
// shared signing key, per spec.md §6.
func NewTokenService(secret string, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// roleDefaults are the minimum permission closures of spec.md §4.2; a
// token's explicit "permissions" claim is unioned with these, never
// replaces them.
var roleDefaults = map[mpcgw.Role][]mpcgw.Permission{
	mpcgw.RoleAdmin: {
		mpcgw.PermRead, mpcgw.PermWrite, mpcgw.PermExecute, mpcgw.PermAdmin,
		mpcgw.PermPIIAccess, mpcgw.PermSensitiveAccess,
	},
	mpcgw.RoleService:  {mpcgw.PermRead, mpcgw.PermExecute},
	mpcgw.RoleReadOnly: {mpcgw.PermRead},
}

// RoleDefaults returns the default permission set for role, per spec.md
// §4.2's role→permission closure table.
func RoleDefaults(role mpcgw.Role) map[mpcgw.Permission]bool {
	out := make(map[mpcgw.Permission]bool)
	for _, p := range roleDefaults[role] {
		out[p] = true
	}
	return out
}

// Authenticate verifies tokenString's HS256 signature and expiry and
// returns the derived Principal. Any failure collapses to ErrAuthInvalid
// except an expired-but-otherwise-valid token, which is ErrAuthExpired —
// the only two codes spec.md §7 permits here.
func (s *TokenService) Authenticate(tokenString string) (*mpcgw.Principal, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &TokenError{Code: mpcgw.ErrAuthExpired, Reason: err.Error()}
		}
		return nil, &TokenError{Code: mpcgw.ErrAuthInvalid, Reason: err.Error()}
	}
	if !token.Valid {
		return nil, &TokenError{Code: mpcgw.ErrAuthInvalid, Reason: "token failed validation"}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &TokenError{Code: mpcgw.ErrAuthInvalid, Reason: "missing sub claim"}
	}

	role := mpcgw.Role(claimString(claims, "role"))
	switch role {
	case mpcgw.RoleAdmin, mpcgw.RoleService, mpcgw.RoleReadOnly:
	default:
		return nil, &TokenError{Code: mpcgw.ErrAuthInvalid, Reason: "unrecognized role claim"}
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return nil, &TokenError{Code: mpcgw.ErrAuthInvalid, Reason: "missing exp claim"}
	}
	expiresAt := time.Unix(int64(expFloat), 0).UTC()
	if !expiresAt.After(s.now()) {
		return nil, &TokenError{Code: mpcgw.ErrAuthExpired, Reason: "token expired"}
	}

	perms := RoleDefaults(role)
	for _, p := range claimStringArray(claims, "permissions") {
		perms[mpcgw.Permission(p)] = true
	}

	costCeiling := 0.0
	if v, ok := claims["cost_ceiling"].(float64); ok {
		costCeiling = v
	}

	return &mpcgw.Principal{
		Subject:     sub,
		Role:        role,
		Permissions: perms,
		ExpiresAt:   expiresAt,
		CostCeiling: costCeiling,
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func claimStringArray(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
