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

package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// BackendSeed is the YAML shape of one entry in a registry seed file,
// generalized from the teacher's ConnectorFileConfig/LLMProviderFileConfig
// (connectors/config/file_loader.go): a flat, declarative description of a
// static catalog entry rather than a programmatic Backend literal.
type BackendSeed struct {
	ID                  string   `yaml:"id"`
	Type                string   `yaml:"type"`
	Capabilities        []string `yaml:"capabilities"`
	CostPer1KTokens     float64  `yaml:"cost_per_1k_tokens"`
	AvgLatencyMS        int64    `yaml:"avg_latency_ms"`
	MaxTokens           int      `yaml:"max_tokens"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	PIIAllowed          bool     `yaml:"pii_allowed"`
	ConfidentialAllowed bool     `yaml:"confidential_allowed,omitempty"`
	SensitivityAllowed  []string `yaml:"sensitivity_allowed"`
}

// RegistrySeedFile is the root document of a registry seed YAML file.
type RegistrySeedFile struct {
	Version  string        `yaml:"version"`
	Backends []BackendSeed `yaml:"backends"`
}

// LoadRegistrySeedYAML reads and decodes a registry seed file at path. It
// only decodes the catalog shape; registering the resulting descriptors
// into a Registry (and pairing each with a concrete backend.Backend
// adapter) is the caller's job, since a descriptor alone cannot be routed
// to without an adapter behind it.
func LoadRegistrySeedYAML(path string) (*RegistrySeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to read registry seed %s: %w", path, err)
	}
	var doc RegistrySeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse registry seed %s: %w", path, err)
	}
	return &doc, nil
}

// ToBackend converts a decoded BackendSeed into the mpcgw.Backend shape the
// Registry and Router operate on. Unrecognized enum strings are dropped
// rather than rejected wholesale: a seed file is operator-authored
// configuration, not a wire contract, so one typo'd capability name should
// not prevent the rest of a valid entry from loading.
func (s BackendSeed) ToBackend() *mpcgw.Backend {
	caps := make(map[mpcgw.Capability]bool, len(s.Capabilities))
	for _, c := range s.Capabilities {
		caps[mpcgw.Capability(c)] = true
	}
	sens := make(map[mpcgw.Sensitivity]bool, len(s.SensitivityAllowed))
	for _, sv := range s.SensitivityAllowed {
		sens[mpcgw.Sensitivity(sv)] = true
	}
	return &mpcgw.Backend{
		ID:                  s.ID,
		Type:                mpcgw.BackendType(s.Type),
		Capabilities:        caps,
		CostPer1KTokens:     s.CostPer1KTokens,
		AvgLatencyMS:        s.AvgLatencyMS,
		MaxTokens:           s.MaxTokens,
		ConfidenceThreshold: s.ConfidenceThreshold,
		PIIAllowed:          s.PIIAllowed,
		ConfidentialAllowed: s.ConfidentialAllowed,
		SensitivityAllowed:  sens,
	}
}
