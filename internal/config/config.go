// Package config loads hdlplay settings from ~/.hdlplay/config.yaml, an
// optional .env file and HDLPLAY_* environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
)

// Executor modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config is the complete hdlplay configuration.
type Config struct {
	Log      LogConfig            `yaml:"log"`
	Executor ExecutorConfig       `yaml:"executor"`
	Project  ProjectConfig        `yaml:"project"`
	Trace    TraceConfig          `yaml:"trace"`
	Tools    map[string]tool.Spec `yaml:"tools,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type ExecutorConfig struct {
	Mode    string `yaml:"mode"`               // local or remote
	Address string `yaml:"address,omitempty"`  // ws:// URL used in remote mode
	Listen  string `yaml:"listen"`             // address served by 'hdlplay serve'
	WorkDir string `yaml:"work_dir,omitempty"` // parent of tool scratch directories
}

// ProjectConfig names the files on disk that seed the working tree.
type ProjectConfig struct {
	Source      string `yaml:"source"`
	Manifest    string `yaml:"manifest"`
	Constraints string `yaml:"constraints,omitempty"`
}

type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Executor: ExecutorConfig{
			Mode:   ModeLocal,
			Listen: "127.0.0.1:7420",
		},
		Project: ProjectConfig{
			Source:   "src/playground.spade",
			Manifest: "swim.toml",
		},
	}
}

// DefaultPath returns ~/.hdlplay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".hdlplay", "config.yaml"), nil
}

// Load reads the configuration at path over the defaults. An empty path
// means DefaultPath, which may be absent; an explicit path must exist.
// Environment overrides are applied and the result validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to parse "+path, err)
		}
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, errors.New(errors.ErrCodeConfigNotFound, "configuration file not found: "+path).
			WithSuggestion("Run 'hdlplay config path' to see the default location")
	default:
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+path, err)
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to load .env", err)
	}
	return nil
}

// Save writes cfg to path, creating the directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create config directory", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write "+path, err)
	}
	return nil
}

// envKeys maps environment variables to configuration keys.
var envKeys = map[string]string{
	"HDLPLAY_LOG_LEVEL":        "log.level",
	"HDLPLAY_LOG_FORMAT":       "log.format",
	"HDLPLAY_EXECUTOR_MODE":    "executor.mode",
	"HDLPLAY_EXECUTOR_ADDRESS": "executor.address",
	"HDLPLAY_EXECUTOR_LISTEN":  "executor.listen",
	"HDLPLAY_EXECUTOR_WORKDIR": "executor.work_dir",
	"HDLPLAY_TRACE_ENABLED":    "trace.enabled",
	"HDLPLAY_TRACE_DIR":        "trace.dir",
}

// ApplyEnv overrides fields from HDLPLAY_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for env, key := range envKeys {
		if v, ok := lookup(env); ok && v != "" {
			if err := c.Set(key, v); err != nil {
				return errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", env, err))
			}
		}
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	switch c.Executor.Mode {
	case ModeLocal:
	case ModeRemote:
		if !strings.HasPrefix(c.Executor.Address, "ws://") && !strings.HasPrefix(c.Executor.Address, "wss://") {
			return errors.NewConfigInvalidError("executor.address must be a ws:// or wss:// URL in remote mode")
		}
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown executor mode %q", c.Executor.Mode))
	}
	if c.Project.Source == "" || c.Project.Manifest == "" {
		return errors.NewConfigInvalidError("project.source and project.manifest are required")
	}
	for name, spec := range c.Tools {
		if err := spec.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// ToolSpecs returns the default tool specs overlaid with configured ones.
func (c *Config) ToolSpecs() map[string]tool.Spec {
	specs := tool.DefaultSpecs()
	for name, spec := range c.Tools {
		specs[name] = spec
	}
	return specs
}

// ProcessOptions returns the options for external tool processes. Scratch
// directories go to the system temp dir unless executor.work_dir is set.
func (c *Config) ProcessOptions() []tool.ProcessOption {
	if c.Executor.WorkDir == "" {
		return nil
	}
	return []tool.ProcessOption{tool.WithTempDir(c.Executor.WorkDir)}
}

// LoggerConfig converts the log section into a logger configuration.
func (c *Config) LoggerConfig() (log.Config, error) {
	return log.ParseConfig(c.Log.Level, c.Log.Format, nil)
}

// Get returns the value of a dotted key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "log.level":
		return c.Log.Level, nil
	case "log.format":
		return c.Log.Format, nil
	case "executor.mode":
		return c.Executor.Mode, nil
	case "executor.address":
		return c.Executor.Address, nil
	case "executor.listen":
		return c.Executor.Listen, nil
	case "executor.work_dir":
		return c.Executor.WorkDir, nil
	case "project.source":
		return c.Project.Source, nil
	case "project.manifest":
		return c.Project.Manifest, nil
	case "project.constraints":
		return c.Project.Constraints, nil
	case "trace.enabled":
		return strconv.FormatBool(c.Trace.Enabled), nil
	case "trace.dir":
		return c.Trace.Dir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// Set assigns the value of a dotted key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "executor.mode":
		c.Executor.Mode = value
	case "executor.address":
		c.Executor.Address = value
	case "executor.listen":
		c.Executor.Listen = value
	case "executor.work_dir":
		c.Executor.WorkDir = value
	case "project.source":
		c.Project.Source = value
	case "project.manifest":
		c.Project.Manifest = value
	case "project.constraints":
		c.Project.Constraints = value
	case "trace.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("trace.enabled: %w", err)
		}
		c.Trace.Enabled = b
	case "trace.dir":
		c.Trace.Dir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
