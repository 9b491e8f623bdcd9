// Package config loads the kpm configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/paths"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/xref"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "kpm.yaml"

// DefaultCacheDir holds the caches and the last validation report.
const DefaultCacheDir = paths.BaseDir + "/.kpm"

// PathList accepts either a single string using the path-list grammar
// (";" or newline separated) or a YAML sequence.
type PathList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PathList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*p = nil
			return nil
		}
		*p = paths.SplitList(node.Value)
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*p = paths.SplitList(items...)
	default:
		return fmt.Errorf("line %d: expected a path or a list of paths", node.Line)
	}
	return nil
}

// Config is the on-disk configuration.
type Config struct {
	// PathRoot substitutes ${BASE_DIR}. Empty means autodetect.
	PathRoot       string         `yaml:"path_root"`
	SymbolPaths    PathList       `yaml:"symbol_paths"`
	FootprintPaths PathList       `yaml:"footprint_paths"`
	CacheDir       string         `yaml:"cache_dir"`
	MaxWorkers     int            `yaml:"max_workers"`
	RulesFile      string         `yaml:"rules_file"`
	Projects       xref.Registry  `yaml:"projects"`
	Log            logging.Config `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() *Config {
	return &Config{
		CacheDir:   DefaultCacheDir,
		MaxWorkers: runtime.NumCPU(),
		Projects:   xref.Registry{},
		Log:        logging.DefaultConfig(),
	}
}

// Load reads path over the defaults and validates the result. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fills in unset values and rejects unusable ones.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		c.MaxWorkers = 1
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Projects == nil {
		c.Projects = xref.Registry{}
	}
	if c.Log.Level == "" {
		c.Log.Level = logging.DefaultConfig().Level
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = logging.DefaultConfig().Format
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Samples returns the configured paths used to score path-root candidates.
func (c *Config) Samples() []string {
	var out []string
	out = append(out, c.SymbolPaths...)
	out = append(out, c.FootprintPaths...)
	if c.RulesFile != "" {
		out = append(out, c.RulesFile)
	}
	return out
}

// Portable returns a copy with every path rewritten relative to the root
// of r where possible.
func (c *Config) Portable(r *paths.Resolver) *Config {
	out := *c
	out.SymbolPaths = relativizeAll(r, c.SymbolPaths)
	out.FootprintPaths = relativizeAll(r, c.FootprintPaths)
	if c.RulesFile != "" {
		out.RulesFile = r.Relativize(r.Resolve(c.RulesFile))
	}
	out.CacheDir = r.Relativize(r.Resolve(c.CacheDir))
	out.Projects = make(xref.Registry, len(c.Projects))
	for id, p := range c.Projects {
		if p.Metadata.Location != "" {
			p.Metadata.Location = r.Relativize(r.Resolve(p.Metadata.Location))
		}
		out.Projects[id] = p
	}
	return &out
}

func relativizeAll(r *paths.Resolver, list []string) PathList {
	if list == nil {
		return nil
	}
	out := make(PathList, 0, len(list))
	for _, p := range list {
		out = append(out, r.Relativize(r.Resolve(p)))
	}
	return out
}

// Save writes c as YAML to path.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
