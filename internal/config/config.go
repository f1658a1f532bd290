package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kvy1/kvy-xmls/internal/fileutil"
	"github.com/kvy1/kvy-xmls/internal/logger"
)

// Wrap modes select the final transformation applied to each compiled document.
const (
	WrapNone        = "none"
	WrapPlaceholder = "placeholder"
	WrapDocument    = "document"
)

// DefaultMaxIncludeDepth bounds include nesting unless configured otherwise.
const DefaultMaxIncludeDepth = 64

// HistoryConfig represents compile history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the history database path, relative to the root directory
	DBPath string `yaml:"db_path"`
}

// WatchConfig represents watch mode configuration
type WatchConfig struct {
	// Debounce is the quiet period after a change before recompiling
	Debounce time.Duration `yaml:"debounce"`
}

// Config represents xmlc configuration options
type Config struct {
	// MaxConcurrency is the number of files compiled in parallel (0 = one per CPU)
	MaxConcurrency int `yaml:"max_concurrency"`

	// LogFile is the processing log path, relative to the working directory
	LogFile string `yaml:"log_file"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// OutputDir receives compiled documents, relative to the root directory
	OutputDir string `yaml:"output_dir"`

	// FilePattern selects root documents by file name
	FilePattern string `yaml:"file_pattern"`

	// MaxIncludeDepth limits include nesting (0 = unlimited)
	MaxIncludeDepth int `yaml:"max_include_depth"`

	// DetectCycles turns include cycles into inline error markers
	DetectCycles bool `yaml:"detect_cycles"`

	// WrapMode is one of none, placeholder, document
	WrapMode string `yaml:"wrap_mode"`

	// CollisionCheck keeps only the first of several sources sharing an output name
	CollisionCheck bool `yaml:"collision_check"`

	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:  0,
		LogFile:         logger.DefaultLogFile,
		LogLevel:        "info",
		OutputDir:       "compiled",
		FilePattern:     fileutil.CandidatePattern,
		MaxIncludeDepth: DefaultMaxIncludeDepth,
		DetectCycles:    true,
		WrapMode:        WrapNone,
		CollisionCheck:  false,
		History: HistoryConfig{
			Enabled: false,
			DBPath:  filepath.Join(".xmlc", "history.db"),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings; presence of booleans is detected through
	// pointers so an explicit false overrides a true default.
	type yamlConfig struct {
		MaxConcurrency  *int   `yaml:"max_concurrency"`
		LogFile         string `yaml:"log_file"`
		LogLevel        string `yaml:"log_level"`
		OutputDir       string `yaml:"output_dir"`
		FilePattern     string `yaml:"file_pattern"`
		MaxIncludeDepth *int   `yaml:"max_include_depth"`
		DetectCycles    *bool  `yaml:"detect_cycles"`
		WrapMode        string `yaml:"wrap_mode"`
		CollisionCheck  *bool  `yaml:"collision_check"`
		History         *struct {
			Enabled *bool  `yaml:"enabled"`
			DBPath  string `yaml:"db_path"`
		} `yaml:"history"`
		Watch *struct {
			Debounce string `yaml:"debounce"`
		} `yaml:"watch"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxConcurrency != nil {
		cfg.MaxConcurrency = *yamlCfg.MaxConcurrency
	}
	if yamlCfg.LogFile != "" {
		cfg.LogFile = yamlCfg.LogFile
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.FilePattern != "" {
		cfg.FilePattern = yamlCfg.FilePattern
	}
	if yamlCfg.MaxIncludeDepth != nil {
		cfg.MaxIncludeDepth = *yamlCfg.MaxIncludeDepth
	}
	if yamlCfg.DetectCycles != nil {
		cfg.DetectCycles = *yamlCfg.DetectCycles
	}
	if yamlCfg.WrapMode != "" {
		cfg.WrapMode = yamlCfg.WrapMode
	}
	if yamlCfg.CollisionCheck != nil {
		cfg.CollisionCheck = *yamlCfg.CollisionCheck
	}

	if h := yamlCfg.History; h != nil {
		if h.Enabled != nil {
			cfg.History.Enabled = *h.Enabled
		}
		if h.DBPath != "" {
			cfg.History.DBPath = h.DBPath
		}
	}

	if w := yamlCfg.Watch; w != nil && w.Debounce != "" {
		debounce, err := time.ParseDuration(w.Debounce)
		if err != nil {
			return nil, fmt.Errorf("invalid watch.debounce format %q: %w", w.Debounce, err)
		}
		cfg.Watch.Debounce = debounce
	}

	return cfg, nil
}

// ConfigPath returns the location of the per-root configuration file.
func ConfigPath(root string) string {
	return filepath.Join(root, ".xmlc", "config.yaml")
}

// LoadConfigFromDir loads configuration from .xmlc/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(ConfigPath(dir))
}

// Flags carries command-line overrides. Nil fields were not given.
type Flags struct {
	MaxConcurrency  *int
	LogFile         *string
	LogLevel        *string
	OutputDir       *string
	FilePattern     *string
	MaxIncludeDepth *int
	DetectCycles    *bool
	WrapMode        *string
	CollisionCheck  *bool
	History         *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f Flags) {
	if f.MaxConcurrency != nil {
		c.MaxConcurrency = *f.MaxConcurrency
	}
	if f.LogFile != nil {
		c.LogFile = *f.LogFile
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.OutputDir != nil {
		c.OutputDir = *f.OutputDir
	}
	if f.FilePattern != nil {
		c.FilePattern = *f.FilePattern
	}
	if f.MaxIncludeDepth != nil {
		c.MaxIncludeDepth = *f.MaxIncludeDepth
	}
	if f.DetectCycles != nil {
		c.DetectCycles = *f.DetectCycles
	}
	if f.WrapMode != nil {
		c.WrapMode = *f.WrapMode
	}
	if f.CollisionCheck != nil {
		c.CollisionCheck = *f.CollisionCheck
	}
	if f.History != nil {
		c.History.Enabled = *f.History
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.LogFile == "" {
		return fmt.Errorf("log_file cannot be empty")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if _, err := regexp.Compile(c.FilePattern); err != nil {
		return fmt.Errorf("invalid file_pattern %q: %w", c.FilePattern, err)
	}

	if c.MaxIncludeDepth < 0 {
		return fmt.Errorf("max_include_depth must be >= 0, got %d", c.MaxIncludeDepth)
	}

	switch c.WrapMode {
	case WrapNone, WrapPlaceholder, WrapDocument:
	default:
		return fmt.Errorf("invalid wrap_mode %q, must be one of: none, placeholder, document", c.WrapMode)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %v", c.Watch.Debounce)
	}

	return nil
}

// EffectiveConcurrency returns the worker count for a run.
func (c *Config) EffectiveConcurrency() int {
	if c.MaxConcurrency > 0 {
		return c.MaxConcurrency
	}
	return runtime.NumCPU()
}

// ResolveOutputDir returns the absolute output directory for root.
func (c *Config) ResolveOutputDir(root string) string {
	return resolveUnder(root, c.OutputDir)
}

// ResolveHistoryDB returns the absolute history database path for root.
func (c *Config) ResolveHistoryDB(root string) string {
	return resolveUnder(root, c.History.DBPath)
}

func resolveUnder(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}
