package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/wikiscore/config.yaml"

// Config holds all wikiscore configuration.
type Config struct {
	Sites   map[string]SiteConfig `yaml:"sites"`
	Contest ContestConfig         `yaml:"contest"`
	Cache   CacheConfig           `yaml:"cache"`
	Logging LoggingConfig         `yaml:"logging"`
}

// SiteConfig describes one wiki site the bot talks to.
type SiteConfig struct {
	APIURL string `yaml:"api_url"`
	// PageLimit is the maximum number of titles/ids per API request.
	// Logged-in bot accounts typically get 500, anonymous clients 50.
	PageLimit int `yaml:"page_limit"`
}

// ContestConfig describes one scoring competition: its time window, its
// participants, and the ordered filter and rule specifications.
type ContestConfig struct {
	Start        time.Time    `yaml:"start"`
	End          time.Time    `yaml:"end"`
	Namespace    int          `yaml:"namespace"`
	Participants []string     `yaml:"participants"`
	FetchText    bool         `yaml:"fetch_text"`
	Filters      []FilterSpec `yaml:"filters"`
	Rules        []RuleSpec   `yaml:"rules"`
	// IgnoreCategories holds regex patterns; matching categories are
	// dropped during category graph traversal and never expanded.
	IgnoreCategories []string `yaml:"ignore_categories"`
}

// FilterSpec is one entry of the ordered filter chain, as a named kind
// plus its parameters. Validated when the chain is built, before any
// contributions are fetched.
type FilterSpec struct {
	Kind        string   `yaml:"kind"`
	Bytes       int64    `yaml:"bytes"`
	Categories  []string `yaml:"categories"`
	MaxDepth    int      `yaml:"max_depth"`
	StubPattern string   `yaml:"stub_pattern"`
}

// RuleSpec is one entry of the ordered scoring rule chain.
type RuleSpec struct {
	Kind      string  `yaml:"kind"`
	Points    float64 `yaml:"points"`
	MaxPoints float64 `yaml:"max_points"`
	Low       int64   `yaml:"low"`
	High      int64   `yaml:"high"`
}

// CacheConfig describes the local contribution cache.
type CacheConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

// LoggingConfig describes logger construction.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// DatabasePath returns the expanded path of the SQLite cache file.
func (c *Config) DatabasePath() (string, error) {
	dir, err := expandPath(c.Cache.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Cache.SQLiteFile), nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
