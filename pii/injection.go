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

import "regexp"

// InjectionDetector flags prompts that attempt to override the system's
// instructions. It has no teacher equivalent; built in the same
// regex-table idiom as the PII pattern table above.
type InjectionDetector struct {
	patterns []*regexp.Regexp
}

// defaultInjectionPatterns covers the families named in spec.md §4.3:
// instruction override, prior-context dismissal, and role-token injection.
var defaultInjectionPatterns = []string{
	`(?i)ignore\s+(?:all\s+|the\s+)?previous\s+instructions`,
	`(?i)disregard\s+(?:all\s+|the\s+)?prior\s+(?:instructions|context)`,
	`(?i)new\s+instructions\s*:`,
	`(?i)forget\s+(?:everything|all)\s+(?:you\s+)?(?:were\s+told|above)`,
	`(?i)\bsystem\s*:\s*you\s+are\s+now\b`,
	`(?i)\[\s*(?:system|assistant)\s*\]`,
	`(?i)<\|?(?:system|assistant|im_start)\|?>`,
	`(?i)override\s+(?:your\s+)?(?:system\s+)?prompt`,
	`(?i)reveal\s+(?:your\s+)?(?:system\s+)?prompt`,
	`(?i)dump\s+(?:all\s+)?secrets`,
}

// NewInjectionDetector builds a detector over defaultInjectionPatterns.
// extra patterns, if given, are compiled and checked in addition.
func NewInjectionDetector(extra ...string) (*InjectionDetector, error) {
	all := make([]string, 0, len(defaultInjectionPatterns)+len(extra))
	all = append(all, defaultInjectionPatterns...)
	all = append(all, extra...)

	d := &InjectionDetector{}
	for _, p := range all {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &ConfigError{Message: "pii: invalid injection pattern " + p + ": " + err.Error()}
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// Detected reports whether text matches any injection pattern. One hit is
// sufficient; spec.md §4.3 does not require enumerating every match.
func (d *InjectionDetector) Detected(text string) bool {
	for _, p := range d.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
