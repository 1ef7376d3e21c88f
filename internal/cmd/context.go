package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/config"
	"github.com/felixgeelhaar/hdlplay/internal/log"
)

// CommandContext holds the flags and configuration a command runs with.
// Commands build one in RunE instead of reading package globals:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		// Use cc.Config, cc.Logger
//	}
type CommandContext struct {
	ConfigPath string
	Config     *config.Config
	Logger     *log.Logger
}

// NewCommandContext reads the persistent flags, loads the configuration
// and builds the logger. Flags override configured log settings.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	return newCommandContext(cmd, nil)
}

// newCommandContext is NewCommandContext with logs sent to w instead of
// stderr when w is non-nil.
func newCommandContext(cmd *cobra.Command, w io.Writer) (*CommandContext, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if format != "" {
		cfg.Log.Format = format
	}

	logCfg, err := log.ParseConfig(cfg.Log.Level, cfg.Log.Format, w)
	if err != nil {
		return nil, err
	}
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	return &CommandContext{
		ConfigPath: path,
		Config:     cfg,
		Logger:     logger,
	}, nil
}
