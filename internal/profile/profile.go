package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where agentroute stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Registry is the path to the candidate/capability registry file
	Registry string

	// Embedding configuration. When disabled the router falls back to the
	// lexical token-overlap similarity strategy.
	EmbeddingEnabled  bool   // AGENTROUTE_EMBEDDING_ENABLED
	EmbeddingProvider string // AGENTROUTE_EMBEDDING_PROVIDER (default: openai)
	EmbeddingAPIKey   string // AGENTROUTE_EMBEDDING_API_KEY
	EmbeddingBaseURL  string // AGENTROUTE_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingModel    string // AGENTROUTE_EMBEDDING_MODEL (default: text-embedding-3-small)
	// EmbeddingDim is the feature-vector dimensionality, fixed per deployment.
	EmbeddingDim int // AGENTROUTE_EMBEDDING_DIM (default: 1536)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding provider is usable.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingEnabled && (p.EmbeddingAPIKey != "" || p.EmbeddingBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from AGENTROUTE_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("AGENTROUTE_MODE", p.Mode)
	p.Addr = getEnvOrDefault("AGENTROUTE_ADDR", p.Addr)
	if port := os.Getenv("AGENTROUTE_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			p.Port = v
		}
	}
	p.Data = getEnvOrDefault("AGENTROUTE_DATA", p.Data)
	p.DSN = getEnvOrDefault("AGENTROUTE_DSN", p.DSN)
	p.Driver = getEnvOrDefault("AGENTROUTE_DRIVER", p.Driver)
	p.Registry = getEnvOrDefault("AGENTROUTE_REGISTRY", p.Registry)

	p.EmbeddingEnabled = getEnvOrDefault("AGENTROUTE_EMBEDDING_ENABLED", "") == "true" || p.EmbeddingEnabled
	p.EmbeddingProvider = getEnvOrDefault("AGENTROUTE_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingAPIKey = getEnvOrDefault("AGENTROUTE_EMBEDDING_API_KEY", p.EmbeddingAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("AGENTROUTE_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("AGENTROUTE_EMBEDDING_MODEL", "text-embedding-3-small")
	if dim := os.Getenv("AGENTROUTE_EMBEDDING_DIM"); dim != "" {
		if v, err := strconv.Atoi(dim); err == nil && v > 0 {
			p.EmbeddingDim = v
		}
	}
}

// Validate normalizes and validates the profile.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" && p.Mode != "demo" {
		p.Mode = "dev"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/agentroute"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return errors.Wrapf(err, "invalid data directory %q", p.Data)
	}
	p.Data = dataDir

	switch p.Driver {
	case "sqlite", "":
		p.Driver = "sqlite"
		if p.DSN == "" {
			p.DSN = filepath.Join(p.Data, fmt.Sprintf("agentroute_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}

	if p.EmbeddingDim <= 0 {
		p.EmbeddingDim = 1536
	}
	if p.Port <= 0 {
		p.Port = 8230
	}
	return nil
}

func checkDataDir(dataDir string) (string, error) {
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return "", errors.Wrap(err, "get absolute path")
	}
	if _, err := os.Stat(dataDir); err != nil {
		if !os.IsNotExist(err) {
			return "", errors.Wrap(err, "stat data directory")
		}
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return "", errors.Wrap(err, "create data directory")
		}
	}
	return dataDir, nil
}
