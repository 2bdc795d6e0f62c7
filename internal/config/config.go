// internal/config/config.go
//
// Configuration is resolved once at process start, in priority order:
// CLI flags, environment (PUBGATE_*), the project file (.pubgate.yaml at
// the repository root), defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up at the repository root.
const FileName = ".pubgate.yaml"

type Config struct {
	// PublishedDirs are top-level directories whose contents are write-once.
	PublishedDirs []string `yaml:"published_dirs" json:"published_dirs"`

	// VersionPattern must match the basename of new non-markdown
	// files under a published directory.
	VersionPattern string `yaml:"version_pattern" json:"version_pattern"`

	// MarkdownExt files are exempt from the version tag requirement.
	MarkdownExt string `yaml:"markdown_ext" json:"markdown_ext"`

	// IndexScript is run between the two status captures, relative to Root.
	IndexScript      string `yaml:"index_script" json:"index_script"`
	IndexInterpreter string `yaml:"index_interpreter" json:"index_interpreter"`

	Remote    string `yaml:"remote" json:"remote"`
	LogLevel  string `yaml:"log_level" json:"log_level"`   // debug, info, warn, error
	LogFormat string `yaml:"log_format" json:"log_format"` // console, json

	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`
	Watch  WatchConfig  `yaml:"watch" json:"watch"`

	// Root is the repository root. Not read from file.
	Root string `yaml:"-" json:"root"`
}

type LedgerConfig struct {
	// Path is relative to Root. Kept under .git so the ledger never
	// shows up in the status snapshot.
	Path      string `yaml:"path" json:"path"`
	Disabled  bool   `yaml:"disabled" json:"disabled"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

func Default() *Config {
	return &Config{
		PublishedDirs:    []string{"decks", "diagrams", "frameworks", "references", "lexicon"},
		VersionPattern:   `(?i)-v\d+(\.\d+)?\b`,
		MarkdownExt:      ".md",
		IndexScript:      filepath.Join("tools", "update-index.py"),
		IndexInterpreter: "python3",
		LogLevel:         "warn",
		LogFormat:        "console",
		Ledger: LedgerConfig{
			Path:      filepath.Join(".git", "pubgate"),
			CacheSize: 128,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load resolves configuration for the repository at root. An explicit
// path must exist; the implicit project file is optional.
func Load(root, path string) (*Config, error) {
	cfg := Default()
	cfg.Root = root

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	fileCfg, err := loadFromPath(path)
	switch {
	case err == nil:
		merge(cfg, fileCfg)
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PUBGATE_PUBLISHED_DIRS"); v != "" {
		cfg.PublishedDirs = splitList(v)
	}
	if v := os.Getenv("PUBGATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PUBGATE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PUBGATE_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("PUBGATE_LEDGER_DISABLED"); v == "true" || v == "1" {
		cfg.Ledger.Disabled = true
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func merge(dst, src *Config) {
	if len(src.PublishedDirs) > 0 {
		dst.PublishedDirs = src.PublishedDirs
	}
	mergeStr(&dst.VersionPattern, src.VersionPattern)
	mergeStr(&dst.MarkdownExt, src.MarkdownExt)
	mergeStr(&dst.IndexScript, src.IndexScript)
	mergeStr(&dst.IndexInterpreter, src.IndexInterpreter)
	mergeStr(&dst.Remote, src.Remote)
	mergeStr(&dst.LogLevel, src.LogLevel)
	mergeStr(&dst.LogFormat, src.LogFormat)
	mergeStr(&dst.Ledger.Path, src.Ledger.Path)
	if src.Ledger.Disabled {
		dst.Ledger.Disabled = true
	}
	if src.Ledger.CacheSize > 0 {
		dst.Ledger.CacheSize = src.Ledger.CacheSize
	}
	if src.Watch.Debounce > 0 {
		dst.Watch.Debounce = src.Watch.Debounce
	}
}

func (c *Config) Validate() error {
	if len(c.PublishedDirs) == 0 {
		return fmt.Errorf("published_dirs must not be empty")
	}
	for _, d := range c.PublishedDirs {
		if d == "" || strings.Contains(d, "/") {
			return fmt.Errorf("published dir %q must be a single top-level name", d)
		}
	}
	if _, err := regexp.Compile(c.VersionPattern); err != nil {
		return fmt.Errorf("version_pattern: %w", err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be console or json", c.LogFormat)
	}
	if !strings.HasPrefix(c.MarkdownExt, ".") {
		return fmt.Errorf("markdown_ext %q must start with a dot", c.MarkdownExt)
	}
	return nil
}

// Published builds the membership set for PublishedDirs.
func (c *Config) Published() PublishedSet {
	return NewPublishedSet(c.PublishedDirs...)
}

// LedgerDir returns the absolute ledger directory.
func (c *Config) LedgerDir() string {
	if filepath.IsAbs(c.Ledger.Path) {
		return c.Ledger.Path
	}
	return filepath.Join(c.Root, c.Ledger.Path)
}

// PublishedSet is the fixed set of published top-level directory names.
type PublishedSet map[string]struct{}

func NewPublishedSet(dirs ...string) PublishedSet {
	s := make(PublishedSet, len(dirs))
	for _, d := range dirs {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether the first segment of a repository-relative,
// slash-separated path is a published directory.
func (s PublishedSet) Contains(path string) bool {
	if path == "" {
		return false
	}
	first, _, _ := strings.Cut(path, "/")
	_, ok := s[first]
	return ok
}
