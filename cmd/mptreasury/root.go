package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mptreasury/internal/config"
	"mptreasury/internal/logger"
	"mptreasury/internal/pipeline"
)

// commandContext carries the persistent flags and lazily loaded state shared
// by subcommands.
type commandContext struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *logger.Logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "mptreasury",
		Short:         "Identify local albums against music catalogs and file them into a library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Show detailed output")

	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newAlbumsCommand(ctx))
	rootCmd.AddCommand(newSongsCommand(ctx))
	rootCmd.AddCommand(newInitConfigCommand(ctx))

	return rootCmd
}

// loadConfig loads the configuration once. Priority: flags > env > file >
// defaults. Catalog settings are only validated when validate is set.
func (c *commandContext) loadConfig(validate bool) (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.LoadConfigFile(c.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if c.verbose {
		cfg.Verbose = true
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("configuration error: %w", err)
		}
	}
	c.cfg = &cfg
	return cfg, nil
}

// log returns the program logger. Non-verbose runs also keep a debug log on
// disk.
func (c *commandContext) log(cfg config.Config) *logger.Logger {
	if c.logger != nil {
		return c.logger
	}
	log := logger.New(cfg.Verbose)
	c.logger = log

	if cfg.Verbose {
		if path := c.resolvedConfigPath(); path != "" {
			log.Debug("Loaded configuration from: %s", path)
		}
		return log
	}

	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		return log
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("mptreasury_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	if err := log.SetFileLog(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
	} else {
		log.Debug("Logging to file: %s", logFile)
	}
	return log
}

func (c *commandContext) resolvedConfigPath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return config.FindConfigFile()
}

// openPipeline loads config and builds the pipeline. The caller closes both
// the pipeline and the logger through the returned func.
func (c *commandContext) openPipeline(validate bool) (*pipeline.Pipeline, *logger.Logger, func(), error) {
	cfg, err := c.loadConfig(validate)
	if err != nil {
		return nil, nil, nil, err
	}
	log := c.log(cfg)
	p, err := pipeline.New(cfg, log)
	if err != nil {
		log.Close()
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := p.Close(); err != nil {
			log.Warn("Failed to close database: %v", err)
		}
		log.Close()
	}
	return p, log, closeFn, nil
}
