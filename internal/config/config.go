package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the codelens configuration schema: a compiled-in set of
// defaults, layered with an optional user config and an authoritative
// project config, then narrowed by two named environment overrides.
type Config struct {
	Version             int      `yaml:"version" json:"version"`
	EmbeddingProvider   string   `yaml:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel      string   `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int      `yaml:"embedding_dimensions" json:"embedding_dimensions"`
	Extensions          []string `yaml:"extensions" json:"extensions"`
	ExcludePatterns     []string `yaml:"exclude_patterns" json:"exclude_patterns"`
	ChunkMaxSize        int      `yaml:"chunk_max_size" json:"chunk_max_size"`
	ChunkOverlap        int      `yaml:"chunk_overlap" json:"chunk_overlap"`
	WatchDebounceMs     int      `yaml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// defaultExcludePatterns are always excluded from a scan, regardless of
// project-level overrides.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.codelens/**",
}

// NewConfig returns the compiled-in default configuration: ollama embeddings,
// Python sources only, and the reserved chunking/watch knobs at their
// documented defaults.
func NewConfig() *Config {
	return &Config{
		Version:             1,
		EmbeddingProvider:   defaultProvider,
		EmbeddingModel:      defaultModelForProvider(defaultProvider),
		EmbeddingDimensions: defaultDimensionsForProvider(defaultProvider),
		Extensions:          []string{".py"},
		ExcludePatterns:     append([]string(nil), defaultExcludePatterns...),
		ChunkMaxSize:        1500,
		ChunkOverlap:        200,
		WatchDebounceMs:     500,
	}
}

const defaultProvider = "ollama"

// validProviders mirrors internal/embed's embedder factory: codelens ships
// exactly two embedding backends, an HTTP-based Ollama provider and a
// deterministic local one for offline use.
var validProviders = map[string]bool{
	"ollama": true,
	"local":  true,
}

func defaultModelForProvider(provider string) string {
	switch provider {
	case "local":
		return "static"
	default:
		return "nomic-embed-text"
	}
}

// defaultDimensionsForProvider returns each provider's default dimension
// count. Ollama uses 0 as a sentinel meaning "probe the model for its
// embedding width"; local uses its fixed 256-dim static embedder.
func defaultDimensionsForProvider(provider string) int {
	switch provider {
	case "local":
		return 256
	default:
		return 0
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codelens/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codelens/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codelens", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codelens", "config.yaml")
	}
	return filepath.Join(home, ".config", "codelens", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the path to a project's authoritative config
// file, rooted at <project>/.codelens/config.json.
func ProjectConfigPath(projectDir string) string {
	return filepath.Join(projectDir, ".codelens", "config.json")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse user config %s: %w", path, err)
	}
	return &parsed, nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for a project directory, applying sources in
// order of increasing precedence:
//  1. Compiled-in defaults
//  2. User config (~/.config/codelens/config.yaml)
//  3. Project config (<dir>/.codelens/config.json) - authoritative
//  4. Environment variables (CODELENS_EMBEDDING_PROVIDER, CODELENS_EMBEDDING_MODEL)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadProjectConfig(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadProjectConfig reads <dir>/.codelens/config.json if present. A missing
// file is not an error - defaults (possibly overridden by user config) stand.
func (c *Config) loadProjectConfig(dir string) error {
	path := ProjectConfigPath(dir)
	if !fileExists(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project config %s: %w", path, err)
	}

	var parsed Config
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse project config %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. A provider change
// resets the model and dimensions to that provider's defaults unless other
// also carries an explicit model, mirroring how switching embedding backends
// invalidates whatever model/dimensions were tuned for the old one.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.EmbeddingProvider != "" && other.EmbeddingProvider != c.EmbeddingProvider {
		c.EmbeddingProvider = other.EmbeddingProvider
		c.EmbeddingModel = defaultModelForProvider(other.EmbeddingProvider)
		c.EmbeddingDimensions = defaultDimensionsForProvider(other.EmbeddingProvider)
	}
	if other.EmbeddingModel != "" {
		c.EmbeddingModel = other.EmbeddingModel
	}
	if other.EmbeddingDimensions != 0 {
		c.EmbeddingDimensions = other.EmbeddingDimensions
	}

	if len(other.Extensions) > 0 {
		c.Extensions = other.Extensions
	}
	if len(other.ExcludePatterns) > 0 {
		c.ExcludePatterns = append(c.ExcludePatterns, other.ExcludePatterns...)
	}

	if other.ChunkMaxSize != 0 {
		c.ChunkMaxSize = other.ChunkMaxSize
	}
	if other.ChunkOverlap != 0 {
		c.ChunkOverlap = other.ChunkOverlap
	}
	if other.WatchDebounceMs != 0 {
		c.WatchDebounceMs = other.WatchDebounceMs
	}
}

// applyEnvOverrides applies the two named CODELENS_EMBEDDING_* environment
// overrides, the highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODELENS_EMBEDDING_PROVIDER"); v != "" {
		if v != c.EmbeddingProvider {
			c.EmbeddingProvider = v
			if os.Getenv("CODELENS_EMBEDDING_MODEL") == "" {
				c.EmbeddingModel = defaultModelForProvider(v)
				c.EmbeddingDimensions = defaultDimensionsForProvider(v)
			}
		}
	}
	if v := os.Getenv("CODELENS_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
}

// Validate validates the configuration and returns an error describing the
// first violation found.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("version must be 1, got %d", c.Version)
	}

	if !validProviders[strings.ToLower(c.EmbeddingProvider)] {
		return fmt.Errorf("embedding_provider must be one of ollama, local, got %q", c.EmbeddingProvider)
	}

	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("embedding_dimensions must be non-negative, got %d", c.EmbeddingDimensions)
	}
	if c.EmbeddingDimensions == 0 && c.EmbeddingProvider != "ollama" {
		return fmt.Errorf("embedding_dimensions must be >= 1 for provider %q", c.EmbeddingProvider)
	}

	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extensions entries must start with '.', got %q", ext)
		}
	}

	if c.ChunkMaxSize < 100 {
		return fmt.Errorf("chunk_max_size must be >= 100, got %d", c.ChunkMaxSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.ChunkOverlap)
	}
	if c.WatchDebounceMs < 100 {
		return fmt.Errorf("watch_debounce_ms must be >= 100, got %d", c.WatchDebounceMs)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file (used for the user
// config at GetUserConfigPath).
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteJSON writes the configuration to a JSON file (used for the project
// config at ProjectConfigPath).
func (c *Config) WriteJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot finds the project root by walking up from startDir looking
// for a .git directory or an existing .codelens state directory.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if dirExists(filepath.Join(currentDir, ".codelens")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
