// Package config loads agentsdb.yaml, an optional on-disk file of
// defaults that would otherwise have to be repeated on every call: the
// embedder backend/dim used when a path has no layer files yet, the
// local cache directory FetchToLocal downloads remote base layers into,
// and connection settings for the object store a remote layer set lives
// in.
//
// config is strictly a convenience default-provider. rollup's per-layer
// options roll-up always takes precedence; a value here is only consulted
// when every open layer's options chunk is silent on it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the parsed contents of agentsdb.yaml.
type Config struct {
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	CacheDir    string            `yaml:"cache_dir"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

// EmbeddingConfig names the default embedder backend for a layer created
// with no explicit Profile, mirroring embed.Config's fields a backend
// constructor needs.
type EmbeddingConfig struct {
	Backend  string `yaml:"backend"`
	Model    string `yaml:"model"`
	Revision string `yaml:"revision"`
	Dim      int    `yaml:"dim"`
}

// ObjectStoreConfig names which blobstore backend and bucket/endpoint a
// remote layer set is fetched from. Kind selects among "s3", "minio", or
// "" (local filesystem, the default used by every scenario that never
// sets this section).
type ObjectStoreConfig struct {
	Kind     string `yaml:"kind"`
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	UseSSL   *bool  `yaml:"use_ssl"`
}

// UseSSLOrDefault returns whether the object store endpoint should be
// contacted over TLS; defaults to true when unset.
func (o *ObjectStoreConfig) UseSSLOrDefault() bool {
	if o.UseSSL != nil {
		return *o.UseSSL
	}
	return true
}

// Load reads and parses the config file at path. A missing file is not
// an error: it returns a zero Config, since every field here has a
// sensible "unset" meaning to its caller (no default backend, no cache
// dir override, no object store).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.CacheDir != "" && !filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDir = filepath.Join(filepath.Dir(path), cfg.CacheDir)
	}

	return &cfg, nil
}

// DefaultPath returns the conventional agentsdb.yaml location next to dir,
// the directory a Store's layer files live in.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "agentsdb.yaml")
}
