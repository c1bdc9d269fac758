package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistryOrdering(t *testing.T) {
	s := NewStatic([]*Candidate{
		{ID: "qa", Description: "test execution"},
		{ID: "developer", Description: "code implementation"},
	}, nil)

	candidates, err := s.ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "developer", candidates[0].ID)
	assert.Equal(t, "qa", candidates[1].ID)
}

func TestLoadFromFile(t *testing.T) {
	content := `
candidates:
  - id: developer
    description: code implementation and feature development
    capabilities: [write_code, run_tests]
  - id: qa
    description: quality assurance and test execution
    capabilities: ["Run Tests"]
capabilities:
  - id: run_tests
    description: execute automated test suites
    aliases: ["Run Tests", "run-tests"]
`
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadFromFile(path)
	require.NoError(t, err)

	candidates, err := s.ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, []string{"write_code", "run_tests"}, candidates[0].Capabilities)

	capabilities, err := s.ListCapabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, capabilities, 1)
	assert.Equal(t, "run_tests", capabilities[0].ID)
}

func TestLoadFromFileRejectsDuplicates(t *testing.T) {
	content := `
candidates:
  - id: developer
    description: a
  - id: developer
    description: b
`
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
