// Package config loads the docfixtures configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	BackendSQLite        = "sqlite"
	BackendMongoDB       = "mongodb"
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Config describes which store the fixtures are applied to.
type Config struct {
	Backend       string              `yaml:"backend" toml:"backend"`
	LogLevel      string              `yaml:"log_level" toml:"log_level"`
	MongoDB       MongoDBConfig       `yaml:"mongodb" toml:"mongodb"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" toml:"elasticsearch"`
	SQLite        SQLiteConfig        `yaml:"sqlite" toml:"sqlite"`
	Fixtures      FixturesConfig      `yaml:"fixtures" toml:"fixtures"`
}

// MongoDBConfig holds the MongoDB connection settings.
type MongoDBConfig struct {
	URI      string `yaml:"uri" toml:"uri"`
	Database string `yaml:"database" toml:"database"`
}

// ElasticsearchConfig holds the Elasticsearch connection settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses" toml:"addresses"`
}

// SQLiteConfig holds the embedded store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// FixturesConfig locates fixture files.
type FixturesConfig struct {
	// Directory is the base for relative fixture paths.
	Directory string `yaml:"directory" toml:"directory"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Backend:  BackendSQLite,
		LogLevel: "info",
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "test",
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
		},
		SQLite: SQLiteConfig{
			Path: "fixtures.db",
		},
	}
}

// Load reads the configuration file at path, choosing the format by extension.
// Values missing from the file keep their defaults. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg, nil
}

// Validate checks that the configuration selects a usable backend.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path cannot be empty")
		}
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("mongodb.uri cannot be empty")
		}
		if c.MongoDB.Database == "" {
			return errors.New("mongodb.database cannot be empty")
		}
	case BackendElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 {
			return errors.New("elasticsearch.addresses cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q, must be one of: sqlite, mongodb, elasticsearch, memory", c.Backend)
	}

	return nil
}
