// Package config provides configuration loading and management for semres.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	semconfig "github.com/c360studio/semstreams/config"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendRedis  = "redis"
)

// Config represents the complete semres configuration
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Redis     RedisConfig     `yaml:"redis"`
	Resources ResourcesConfig `yaml:"resources"`
	Ontology  OntologyConfig  `yaml:"ontology"`
	Graph     GraphConfig     `yaml:"graph"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects the triple store backend
type StoreConfig struct {
	// Backend is one of memory, nats or redis
	Backend string `yaml:"backend"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// StoreDir is the JetStream directory of the embedded server (empty = temp dir)
	StoreDir string `yaml:"store_dir"`
	// Bucket is the KV bucket statements are stored in
	Bucket string `yaml:"bucket"`
	// ConnectTimeout bounds the connection retries at startup
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RedisConfig configures the redis store
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Prefix    string `yaml:"prefix"`
	MaxActive int    `yaml:"max_active"`
}

// ResourcesConfig configures the resource manager
type ResourcesConfig struct {
	// URIPrefix is prepended to minted resource URIs
	URIPrefix string `yaml:"uri_prefix"`
	// Graph is the named graph resources are written to
	Graph string `yaml:"graph"`
	// AutoSync keeps released dirty resources and flushes them periodically
	AutoSync bool `yaml:"auto_sync"`
	// SyncInterval is the auto-sync period
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// OntologyConfig configures the class hierarchy source
type OntologyConfig struct {
	// File is a YAML class hierarchy (empty = built-in NAO classes only)
	File string `yaml:"file"`
	// Watch reloads File when it changes
	Watch bool `yaml:"watch"`
}

// GraphConfig configures publishing synced resources to the knowledge graph
type GraphConfig struct {
	Publish bool   `yaml:"publish"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// HTTPConfig configures the HTTP API
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendNATS,
		},
		NATS: NATSConfig{
			URL:            "",
			Embedded:       true,
			Bucket:         "SEMRES_STATEMENTS",
			ConnectTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Prefix:    "semres",
			MaxActive: 16,
		},
		Resources: ResourcesConfig{
			URIPrefix:    "nepomuk:/res/",
			Graph:        "main",
			AutoSync:     true,
			SyncInterval: 5 * time.Second,
		},
		Ontology: OntologyConfig{
			Watch: true,
		},
		Graph: GraphConfig{
			Publish: true,
			Subject: "graph.ingest.entity",
			Stream:  "GRAPH",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendNATS, BackendRedis:
	default:
		return fmt.Errorf("store.backend must be one of memory, nats, redis (got %q)", c.Store.Backend)
	}
	if c.Store.Backend == BackendNATS && c.NATS.Bucket == "" {
		return fmt.Errorf("nats.bucket is required for the nats backend")
	}
	if c.Store.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis backend")
	}
	if !c.NATS.Embedded && c.NATS.URL == "" && c.NeedsNATS() {
		return fmt.Errorf("nats.url is required when nats.embedded is false")
	}
	if c.Resources.URIPrefix == "" {
		return fmt.Errorf("resources.uri_prefix is required")
	}
	if c.Resources.AutoSync && c.Resources.SyncInterval <= 0 {
		return fmt.Errorf("resources.sync_interval must be positive when auto_sync is enabled")
	}
	if c.Graph.Publish && c.Graph.Subject == "" {
		return fmt.Errorf("graph.subject is required when graph.publish is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// NeedsNATS reports whether any component uses a NATS connection.
func (c *Config) NeedsNATS() bool {
	return c.Store.Backend == BackendNATS || c.Graph.Publish
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile decodes the file over config; keys absent from the file keep
// their current value. ${VAR:-default} references are expanded first.
func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := semconfig.ExpandEnvWithDefaults(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Booleans cannot be unset through Merge.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}
	if other.NATS.ConnectTimeout != 0 {
		c.NATS.ConnectTimeout = other.NATS.ConnectTimeout
	}

	// Redis
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Prefix != "" {
		c.Redis.Prefix = other.Redis.Prefix
	}
	if other.Redis.MaxActive != 0 {
		c.Redis.MaxActive = other.Redis.MaxActive
	}

	// Resources
	if other.Resources.URIPrefix != "" {
		c.Resources.URIPrefix = other.Resources.URIPrefix
	}
	if other.Resources.Graph != "" {
		c.Resources.Graph = other.Resources.Graph
	}
	if other.Resources.AutoSync {
		c.Resources.AutoSync = true
	}
	if other.Resources.SyncInterval != 0 {
		c.Resources.SyncInterval = other.Resources.SyncInterval
	}

	// Ontology
	if other.Ontology.File != "" {
		c.Ontology.File = other.Ontology.File
	}
	if other.Ontology.Watch {
		c.Ontology.Watch = true
	}

	// Graph
	if other.Graph.Publish {
		c.Graph.Publish = true
	}
	if other.Graph.Subject != "" {
		c.Graph.Subject = other.Graph.Subject
	}
	if other.Graph.Stream != "" {
		c.Graph.Stream = other.Graph.Stream
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
