package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kvy1/kvy-xmls/internal/config"
	"github.com/kvy1/kvy-xmls/internal/executor"
	"github.com/kvy1/kvy-xmls/internal/logger"
	"github.com/kvy1/kvy-xmls/internal/models"
)

// addConfigFlags registers the flags that override configuration file keys.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: <root>/.xmlc/config.yaml)")
	cmd.Flags().Int("max-concurrency", 0, "Maximum number of files compiled at once (0 = number of CPUs)")
	cmd.Flags().String("log-file", "", "Log file, truncated at start (default: processing.log)")
	cmd.Flags().String("log-level", "", "Console and log file level: trace, debug, info, warn, error")
	cmd.Flags().BoolP("verbose", "v", false, "Shorthand for --log-level debug")
	cmd.Flags().StringP("output-dir", "o", "", "Output directory, relative to the root (default: compiled)")
	cmd.Flags().String("pattern", "", "Regular expression matched against root document file names")
	cmd.Flags().String("wrap-mode", "", "Post-processing of root output: none, placeholder, document")
	cmd.Flags().Bool("collision-check", false, "Compile only the first source when several share an output name")
	cmd.Flags().Int("max-depth", 0, "Maximum include nesting depth (0 = unlimited)")
	cmd.Flags().Bool("no-cycle-check", false, "Do not detect include cycles")
	cmd.Flags().Bool("history", false, "Record the run in the history database")
}

// flagOverrides collects the flags given on the command line. Flags left at
// their defaults do not override the configuration file.
func flagOverrides(cmd *cobra.Command) config.Flags {
	fs := cmd.Flags()
	var f config.Flags

	intFlag := func(name string) *int {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetInt(name)
		return &v
	}
	stringFlag := func(name string) *string {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		return &v
	}
	boolFlag := func(name string) *bool {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetBool(name)
		return &v
	}

	f.MaxConcurrency = intFlag("max-concurrency")
	f.LogFile = stringFlag("log-file")
	f.LogLevel = stringFlag("log-level")
	f.OutputDir = stringFlag("output-dir")
	f.FilePattern = stringFlag("pattern")
	f.WrapMode = stringFlag("wrap-mode")
	f.CollisionCheck = boolFlag("collision-check")
	f.MaxIncludeDepth = intFlag("max-depth")
	f.History = boolFlag("history")

	if noCycle := boolFlag("no-cycle-check"); noCycle != nil {
		detect := !*noCycle
		f.DetectCycles = &detect
	}
	if verbose := boolFlag("verbose"); verbose != nil && *verbose && f.LogLevel == nil {
		level := "debug"
		f.LogLevel = &level
	}

	return f
}

// resolveRoot returns the absolute root directory named by args, or the
// working directory when none is given.
func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("specified directory does not exist: %s", root)
	}
	return abs, nil
}

// loadConfig loads the configuration for root, applies flag overrides and
// validates the result.
func loadConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg.MergeWithFlags(flagOverrides(cmd))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session is the state shared by commands that compile: the root, its
// configuration and the console and file log sinks.
type session struct {
	root    string
	cfg     *config.Config
	out     io.Writer
	errOut  io.Writer
	console *logger.ConsoleLogger
	file    *logger.FileLogger
	log     *multiLogger
}

// newSession resolves the root and configuration and opens the log file.
func newSession(cmd *cobra.Command, args []string) (*session, error) {
	root, err := resolveRoot(args)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return nil, err
	}

	fileLog, err := logger.NewFileLoggerWithLevel(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	console := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)

	return &session{
		root:    root,
		cfg:     cfg,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		console: console,
		file:    fileLog,
		log:     &multiLogger{sinks: []executor.Logger{console, fileLog}},
	}, nil
}

func (s *session) Close() error {
	return s.file.Close()
}

func (s *session) outputDir() string {
	return s.cfg.ResolveOutputDir(s.root)
}

func (s *session) newBatch() *executor.Batch {
	return executor.NewBatch(executor.OptionsFromConfig(s.cfg, s.root), s.log)
}

// multiLogger fans every entry out to several sinks.
type multiLogger struct {
	sinks []executor.Logger
}

func (m *multiLogger) LogSection(title string) {
	for _, s := range m.sinks {
		s.LogSection(title)
	}
}

func (m *multiLogger) LogDebug(message string) {
	for _, s := range m.sinks {
		s.LogDebug(message)
	}
}

func (m *multiLogger) LogInfo(message string) {
	for _, s := range m.sinks {
		s.LogInfo(message)
	}
}

func (m *multiLogger) LogWarn(message string) {
	for _, s := range m.sinks {
		s.LogWarn(message)
	}
}

func (m *multiLogger) LogError(message string) {
	for _, s := range m.sinks {
		s.LogError(message)
	}
}

func (m *multiLogger) LogProgress(completed, total int) {
	for _, s := range m.sinks {
		s.LogProgress(completed, total)
	}
}

func (m *multiLogger) LogSummary(result *models.BatchResult) {
	for _, s := range m.sinks {
		s.LogSummary(result)
	}
}
