// Package config loads runtime settings from the embedded defaults, an
// optional YAML file and PHOTODUP_* environment variables, in that order.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Search SearchConfig `yaml:"search"`
	Scan   ScanConfig   `yaml:"scan"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
}

// SearchConfig holds the search parameters. A non-empty SimilarityLevel
// takes precedence over the numeric threshold.
type SearchConfig struct {
	finder.Parameters `yaml:",inline"`
	SimilarityLevel   string `yaml:"similarity_level"`
}

type ScanConfig struct {
	Recursive  bool     `yaml:"recursive"`
	MinSize    int64    `yaml:"min_size"`
	AutoOrient bool     `yaml:"auto_orient"`
	Exclude    []string `yaml:"exclude"`
}

type CacheConfig struct {
	Path         string        `yaml:"path"` // empty uses the user cache directory
	MemoryShards int           `yaml:"memory_shards"`
	MemoryTTL    time.Duration `yaml:"memory_ttl"`
}

type ServerConfig struct {
	Port          int `yaml:"port"`
	MaxFiles      int `yaml:"max_files"`
	ThumbnailSize int `yaml:"thumbnail_size"`
}

// Load reads the configuration. PHOTODUP_CONFIG may name a YAML file whose
// values replace the defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path := os.Getenv("PHOTODUP_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.resolveLevel(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	s := &c.Search
	if v := os.Getenv("PHOTODUP_ALGORITHM"); v != "" {
		alg, err := imageprocessing.ParseAlgorithm(v)
		if err != nil {
			return errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		s.Algorithm = alg
	}
	if v := os.Getenv("PHOTODUP_FILTER"); v != "" {
		f, err := imageprocessing.ParseFilter(v)
		if err != nil {
			return errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		s.Filter = f
	}
	if v := os.Getenv("PHOTODUP_INVARIANCE"); v != "" {
		inv, err := imageprocessing.ParseInvariance(v)
		if err != nil {
			return errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		s.Invariance = inv
	}
	if v := os.Getenv("PHOTODUP_THRESHOLD"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrapf(finder.ErrInvalidParameters, "PHOTODUP_THRESHOLD=%q", v)
		}
		s.SimilarityThreshold = uint32(n)
		s.SimilarityLevel = ""
	}
	if v := os.Getenv("PHOTODUP_SIMILARITY_LEVEL"); v != "" {
		s.SimilarityLevel = v
	}
	s.HashSize = envInt("PHOTODUP_HASH_SIZE", s.HashSize)
	s.Workers = envInt("PHOTODUP_WORKERS", s.Workers)
	s.ExcludeSameSize = envBool("PHOTODUP_EXCLUDE_SAME_SIZE", s.ExcludeSameSize)
	s.UseCache = envBool("PHOTODUP_USE_CACHE", s.UseCache)

	c.Scan.MinSize = int64(envInt("PHOTODUP_MIN_SIZE", int(c.Scan.MinSize)))
	c.Scan.AutoOrient = envBool("PHOTODUP_AUTO_ORIENT", c.Scan.AutoOrient)
	if v := os.Getenv("PHOTODUP_EXCLUDE"); v != "" {
		c.Scan.Exclude = splitList(v)
	}

	if v := os.Getenv("PHOTODUP_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	c.Server.Port = envInt("PHOTODUP_PORT", c.Server.Port)
	c.Server.ThumbnailSize = envInt("PHOTODUP_THUMBNAIL_SIZE", c.Server.ThumbnailSize)
	return nil
}

func (c *Config) resolveLevel() error {
	level := c.Search.SimilarityLevel
	if level == "" {
		return nil
	}
	threshold, ok := imageprocessing.ThresholdForLevel(imageprocessing.SimilarityLevel(level), c.Search.HashSize)
	if !ok {
		return errors.Wrapf(finder.ErrInvalidParameters,
			"unknown similarity level %q for hash size %d", level, c.Search.HashSize)
	}
	c.Search.SimilarityThreshold = threshold
	return nil
}

// CachePath returns the hash database location, defaulting to
// <user cache dir>/photodup/hashes.db.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "no user cache directory, set PHOTODUP_CACHE_PATH")
	}
	return filepath.Join(dir, "photodup", "hashes.db"), nil
}

// envInt reads an environment variable and parses it as a non-negative
// integer. Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
