// Package config provides configuration loading for the docuflow service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool             `yaml:"debug"`
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Storage     StorageConfig    `yaml:"storage"`
	Audit       AuditConfig      `yaml:"audit"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Vector      VectorConfig     `yaml:"vector"`
	Search      SearchConfig     `yaml:"search"`
	Workflow    WorkflowConfig   `yaml:"workflow"`
	Security    SecurityConfig   `yaml:"security"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Watch       WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the locations of the vector store artifacts and the document registry.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	IndexFile    string `yaml:"index_file"`
	MetadataFile string `yaml:"metadata_file"`
	DatabasePath string `yaml:"database_path"`
}

// IndexPath is the path of the vector index artifact.
func (s *StorageConfig) IndexPath() string { return filepath.Join(s.DataDir, s.IndexFile) }

// MetadataPath is the path of the metadata ledger artifact.
func (s *StorageConfig) MetadataPath() string { return filepath.Join(s.DataDir, s.MetadataFile) }

// AuditConfig holds the audit log location.
type AuditConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// Path is the path of the audit log file.
func (a *AuditConfig) Path() string { return filepath.Join(a.Dir, a.File) }

// EmbeddingConfig selects and configures the embedding provider.
// Provider is one of "hash", "onnx" or "openai".
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	ModelPath         string  `yaml:"model_path"`
	Dimensions        int     `yaml:"dimensions"`
	MaxTokens         int     `yaml:"max_tokens"`
	CacheSize         int     `yaml:"cache_size"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// VectorConfig selects the vector index implementation ("memory" or "faiss").
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// SearchConfig holds retrieval and chunking settings.
type SearchConfig struct {
	TopK            int `yaml:"top_k"`
	MaxChunksPerDoc int `yaml:"max_chunks_per_doc"`
	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
}

// WorkflowConfig points at the routing rule source (.yaml, .yml or .toml).
type WorkflowConfig struct {
	RulesPath string `yaml:"rules_path"`
}

// SecurityConfig points at the role mapping source. An empty RolesPath uses the built-in mapping.
type SecurityConfig struct {
	RolesPath   string `yaml:"roles_path"`
	DefaultRole string `yaml:"default_role"`
}

// ClassifierConfig holds the keyword label table, tried in order.
type ClassifierConfig struct {
	Labels   []LabelRule `yaml:"labels"`
	Fallback LabelRule   `yaml:"fallback"`
}

// LabelRule assigns Label with Confidence when Keyword appears in the text.
type LabelRule struct {
	Keyword    string  `yaml:"keyword"`
	Label      string  `yaml:"label"`
	Confidence float64 `yaml:"confidence"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides and
// defaults, then expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg, os.LookupEnv)
	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the configuration used when no config file exists: built-in
// defaults plus environment overrides, with paths relative to the working directory.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg, os.LookupEnv)
	ApplyDefaults(&cfg)
	cfg.expandPaths(".")
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DataDir = expandPath(c.Storage.DataDir, configDir)
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(c.Storage.DataDir, defaultDatabaseFile)
	} else {
		c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	}
	c.Audit.Dir = expandPath(c.Audit.Dir, configDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	c.Workflow.RulesPath = expandPath(c.Workflow.RulesPath, configDir)
	c.Security.RolesPath = expandPath(c.Security.RolesPath, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// expandPath resolves path. Paths starting with "./" are relative to configDir and
// paths starting with "~/" are relative to the home directory. Other paths are kept.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
