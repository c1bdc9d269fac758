// Package registry provides read-only access to the candidate and
// capability registries. Both are external collaborators: the router never
// writes to them, it only consumes descriptions and declared capabilities.
package registry

import (
	"context"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Candidate is a routable handler as declared by the external registry.
type Candidate struct {
	ID           string   `yaml:"id" json:"id"`
	Description  string   `yaml:"description" json:"description"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
}

// Capability is a canonical capability definition. Aliases cover naming
// variants that must resolve to the same canonical ID during graph builds.
type Capability struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description" json:"description"`
	Aliases     []string `yaml:"aliases" json:"aliases"`
}

// CandidateRegistry supplies the routable candidate pool.
type CandidateRegistry interface {
	ListCandidates(ctx context.Context) ([]*Candidate, error)
}

// CapabilityRegistry supplies canonical capability definitions.
type CapabilityRegistry interface {
	ListCapabilities(ctx context.Context) ([]*Capability, error)
}

// Static is an in-memory registry, used for file-backed deployments and
// as the test fake. Listings are returned in stable ID order.
type Static struct {
	candidates   []*Candidate
	capabilities []*Capability
}

// NewStatic creates a static registry from the given definitions.
func NewStatic(candidates []*Candidate, capabilities []*Capability) *Static {
	s := &Static{
		candidates:   append([]*Candidate(nil), candidates...),
		capabilities: append([]*Capability(nil), capabilities...),
	}
	sort.Slice(s.candidates, func(i, j int) bool { return s.candidates[i].ID < s.candidates[j].ID })
	sort.Slice(s.capabilities, func(i, j int) bool { return s.capabilities[i].ID < s.capabilities[j].ID })
	return s
}

func (s *Static) ListCandidates(_ context.Context) ([]*Candidate, error) {
	return s.candidates, nil
}

func (s *Static) ListCapabilities(_ context.Context) ([]*Capability, error) {
	return s.capabilities, nil
}

// registryFile is the YAML document shape for file-backed registries.
type registryFile struct {
	Candidates   []*Candidate  `yaml:"candidates"`
	Capabilities []*Capability `yaml:"capabilities"`
}

// LoadFromFile reads a registry definition file.
func LoadFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read registry file %q", path)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parse registry file %q", path)
	}

	seen := make(map[string]bool)
	for _, c := range file.Candidates {
		if c.ID == "" {
			return nil, errors.Errorf("registry file %q: candidate with empty id", path)
		}
		if seen[c.ID] {
			return nil, errors.Errorf("registry file %q: duplicate candidate id %q", path, c.ID)
		}
		seen[c.ID] = true
	}

	return NewStatic(file.Candidates, file.Capabilities), nil
}
