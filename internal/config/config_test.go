package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0, cfg.MaxConcurrency)
	assert.Equal(t, "processing.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "compiled", cfg.OutputDir)
	assert.Equal(t, `^\d_.*\.xml$`, cfg.FilePattern)
	assert.Equal(t, 64, cfg.MaxIncludeDepth)
	assert.True(t, cfg.DetectCycles)
	assert.Equal(t, WrapNone, cfg.WrapMode)
	assert.False(t, cfg.CollisionCheck)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(".xmlc", "history.db"), cfg.History.DBPath)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.NoError(t, cfg.Validate())
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `max_concurrency: 4
log_file: logs/run.log
log_level: debug
output_dir: out
file_pattern: '^main_.*\.xml$'
max_include_depth: 8
detect_cycles: false
wrap_mode: placeholder
collision_check: true
history:
  enabled: true
  db_path: hist.db
watch:
  debounce: 2s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, "logs/run.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, `^main_.*\.xml$`, cfg.FilePattern)
	assert.Equal(t, 8, cfg.MaxIncludeDepth)
	assert.False(t, cfg.DetectCycles)
	assert.Equal(t, WrapPlaceholder, cfg.WrapMode)
	assert.True(t, cfg.CollisionCheck)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "hist.db", cfg.History.DBPath)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestLoadConfigPartial verifies unspecified keys keep their defaults
func TestLoadConfigPartial(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log_level: warn\nmax_include_depth: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 0, cfg.MaxIncludeDepth)
	assert.Equal(t, "compiled", cfg.OutputDir)
	assert.True(t, cfg.DetectCycles)
	assert.Equal(t, filepath.Join(".xmlc", "history.db"), cfg.History.DBPath)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "max_concurrency: [unclosed\n"},
		{"wrong type", "max_concurrency: lots\n"},
		{"bad debounce", "watch:\n  debounce: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".xmlc"), 0755))
	require.NoError(t, os.WriteFile(ConfigPath(root), []byte("output_dir: build\n"), 0644))

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.OutputDir)

	cfg, err = LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "compiled", cfg.OutputDir)
}

// TestMergeWithFlags verifies flags take precedence and nil flags are ignored
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	concurrency := 2
	level := "error"
	depth := 5
	detect := false
	wrap := WrapDocument
	history := true

	cfg.MergeWithFlags(Flags{
		MaxConcurrency:  &concurrency,
		LogLevel:        &level,
		MaxIncludeDepth: &depth,
		DetectCycles:    &detect,
		WrapMode:        &wrap,
		History:         &history,
	})

	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 5, cfg.MaxIncludeDepth)
	assert.False(t, cfg.DetectCycles)
	assert.Equal(t, WrapDocument, cfg.WrapMode)
	assert.True(t, cfg.History.Enabled)

	assert.Equal(t, "compiled", cfg.OutputDir)
	assert.Equal(t, "processing.log", cfg.LogFile)
	assert.False(t, cfg.CollisionCheck)
}

// TestValidate verifies invalid values are rejected
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -1 }, true},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"uppercase level", func(c *Config) { c.LogLevel = "DEBUG" }, false},
		{"empty log file", func(c *Config) { c.LogFile = "" }, true},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"bad pattern", func(c *Config) { c.FilePattern = "([" }, true},
		{"negative depth", func(c *Config) { c.MaxIncludeDepth = -3 }, true},
		{"unlimited depth", func(c *Config) { c.MaxIncludeDepth = 0 }, false},
		{"unknown wrap mode", func(c *Config) { c.WrapMode = "cdata" }, true},
		{"document wrap mode", func(c *Config) { c.WrapMode = WrapDocument }, false},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.DBPath = "" }, true},
		{"history disabled without path", func(c *Config) { c.History.DBPath = "" }, false},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEffectiveConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.EffectiveConcurrency())

	cfg.MaxConcurrency = 3
	assert.Equal(t, 3, cfg.EffectiveConcurrency())
}

func TestResolvePaths(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "xml")
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join(root, "compiled"), cfg.ResolveOutputDir(root))
	assert.Equal(t, filepath.Join(root, ".xmlc", "history.db"), cfg.ResolveHistoryDB(root))

	abs := filepath.Join(string(filepath.Separator), "tmp", "out")
	cfg.OutputDir = abs
	assert.Equal(t, abs, cfg.ResolveOutputDir(root))
}
