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
	"sort"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Match is one detected PII span. Raw carries the literal matched
// substring and exists only for the lifetime of a single detect/redact
// call; callers must never persist it (see Redactor, which converts a
// Match into an mpcgw.PIIMatch holding only the redacted form).
type Match struct {
	Type       Type
	Start      int
	End        int
	Raw        string
	Confidence float64
	Severity   Severity
}

// DetectorOption configures a Detector at construction time.
type DetectorOption func(*detectorConfig)

type detectorConfig struct {
	contextWindow    int
	minConfidence    float64
	enableValidation bool
	enabledTypes     []Type
}

// WithEnabledTypes restricts detection to the given types. Every name must
// correspond to a registered pattern or construction fails with the
// *ConfigError built by ErrUnknownType.
func WithEnabledTypes(types ...Type) DetectorOption {
	return func(c *detectorConfig) { c.enabledTypes = types }
}

// WithContextWindow overrides the number of characters of surrounding text
// passed to validators (default 50).
func WithContextWindow(n int) DetectorOption {
	return func(c *detectorConfig) { c.contextWindow = n }
}

// WithMinConfidence overrides the minimum validator confidence required to
// keep a match (default 0.5).
func WithMinConfidence(min float64) DetectorOption {
	return func(c *detectorConfig) { c.minConfidence = min }
}

// WithValidation toggles validator-based confidence scoring. Disabling it
// treats every regex hit as confidence 1.0 — useful for conformance tests
// against the raw pattern table.
func WithValidation(enabled bool) DetectorOption {
	return func(c *detectorConfig) { c.enableValidation = enabled }
}

// Detector finds PII in text using the pattern+validator table of
// patterns.go, narrowed to the Detector's enabled types.
type Detector struct {
	patterns         []*pattern
	contextWindow    int
	minConfidence    float64
	enableValidation bool
}

// NewDetector builds a Detector. With no options it recognizes the minimum
// set required by spec.md §4.3 (email, phone, ssn, credit_card,
// ip_address); the teacher's wider pattern table (iban, passport,
// bank_account, date_of_birth, driver_license) is available but opt-in via
// WithEnabledTypes, never enabled unconditionally.
func NewDetector(opts ...DetectorOption) (*Detector, error) {
	cfg := detectorConfig{
		contextWindow:    50,
		minConfidence:    0.5,
		enableValidation: true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	enabled := cfg.enabledTypes
	if enabled == nil {
		enabled = defaultTypes
	}
	for _, t := range enabled {
		if !knownType(t) {
			return nil, ErrUnknownType(t)
		}
	}

	enabledSet := make(map[Type]bool, len(enabled))
	for _, t := range enabled {
		enabledSet[t] = true
	}

	d := &Detector{
		contextWindow:    cfg.contextWindow,
		minConfidence:    cfg.minConfidence,
		enableValidation: cfg.enableValidation,
	}
	for _, p := range allPatterns {
		if enabledSet[p.Type] {
			d.patterns = append(d.patterns, p)
		}
	}
	return d, nil
}

func (d *Detector) extractContext(text string, start, end int) string {
	cs := start - d.contextWindow
	if cs < 0 {
		cs = 0
	}
	ce := end + d.contextWindow
	if ce > len(text) {
		ce = len(text)
	}
	return text[cs:ce]
}

// candidates runs every enabled pattern over text and returns every raw
// hit, overlaps included; Detect narrows this down to the non-overlapping
// set spec.md §4.3 requires.
func (d *Detector) candidates(text string) []Match {
	var out []Match
	for _, p := range d.patterns {
		idxs := p.Regexp.FindAllStringIndex(text, -1)
		for _, span := range idxs {
			start, end := span[0], span[1]
			raw := text[start:end]
			if len(raw) < p.MinLength || len(raw) > p.MaxLength {
				continue
			}

			confidence := 1.0
			if d.enableValidation && p.Validate != nil {
				ctx := d.extractContext(text, start, end)
				ok, c := p.Validate(raw, ctx)
				if !ok {
					continue
				}
				confidence = c
			}
			if confidence < d.minConfidence {
				continue
			}

			out = append(out, Match{
				Type:       p.Type,
				Start:      start,
				End:        end,
				Raw:        raw,
				Confidence: confidence,
				Severity:   p.Severity,
			})
		}
	}
	return out
}

// Detect returns all non-overlapping PII matches in text: earliest start
// wins, ties broken by longest match. This is the spec-required ordering
// and differs from the teacher's DetectAll, which returns every pattern
// hit including overlaps.
func (d *Detector) Detect(text string) []Match {
	candidates := d.candidates(text)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		li := candidates[i].End - candidates[i].Start
		lj := candidates[j].End - candidates[j].Start
		if li != lj {
			return li > lj
		}
		return candidates[i].Type < candidates[j].Type
	})

	var kept []Match
	lastEnd := -1
	for _, m := range candidates {
		if m.Start < lastEnd {
			continue
		}
		kept = append(kept, m)
		lastEnd = m.End
	}
	return kept
}

// HasPII is a cheap existence check equivalent to len(Detect(text)) > 0.
func (d *Detector) HasPII(text string) bool {
	for _, p := range d.patterns {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			if len(raw) < p.MinLength || len(raw) > p.MaxLength {
				continue
			}
			if !d.enableValidation || p.Validate == nil {
				return true
			}
			ctx := d.extractContext(text, loc[0], loc[1])
			if ok, c := p.Validate(raw, ctx); ok && c >= d.minConfidence {
				return true
			}
		}
	}
	return false
}

// ToPIIResult converts matches into the wire-safe mpcgw.PIIResult, with
// every value redacted by strategy (never the raw substring).
func ToPIIResult(matches []Match, redactor *Redactor, strategy Strategy) mpcgw.PIIResult {
	result := mpcgw.PIIResult{HasPII: len(matches) > 0}

	seen := make(map[Type]bool)
	for _, m := range matches {
		if !seen[m.Type] {
			seen[m.Type] = true
			result.Types = append(result.Types, m.Type)
		}
		redacted := m.Raw
		if redactor != nil {
			redacted = redactor.RedactValue(m.Raw, strategy)
		}
		result.Matches = append(result.Matches, mpcgw.PIIMatch{
			Type:          m.Type,
			Start:         m.Start,
			End:           m.End,
			ValueRedacted: redacted,
		})
	}
	return result
}
