package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
executor:
  mode: remote
  address: ws://127.0.0.1:7420/
tools:
  yosys:
    runner: docker
    image: hdl/yosys:0.40
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ModeRemote, cfg.Executor.Mode)
	assert.Equal(t, "swim.toml", cfg.Project.Manifest, "unset fields keep defaults")

	specs := cfg.ToolSpecs()
	assert.Equal(t, tool.RunnerDocker, specs[tool.Yosys].Runner)
	assert.Equal(t, "spade", specs[tool.Spade].Binary)

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, log.FormatJSON, lc.Format)
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  mode: remote\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HDLPLAY_LOG_LEVEL":        "warn",
		"HDLPLAY_TRACE_ENABLED":    "true",
		"HDLPLAY_EXECUTOR_WORKDIR": "/var/tmp/hdlplay",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Trace.Enabled)
	assert.Equal(t, "/var/tmp/hdlplay", cfg.Executor.WorkDir)
	assert.Len(t, cfg.ProcessOptions(), 1)

	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "HDLPLAY_TRACE_ENABLED" {
			return "maybe", true
		}
		return "", false
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad mode", func(c *Config) { c.Executor.Mode = "cloud" }},
		{"remote without address", func(c *Config) { c.Executor.Mode = ModeRemote }},
		{"no source", func(c *Config) { c.Project.Source = "" }},
		{"docker without image", func(c *Config) {
			c.Tools = map[string]tool.Spec{"yosys": {Runner: tool.RunnerDocker}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.ProcessOptions())
	for _, key := range []string{"log.level", "executor.listen", "executor.work_dir", "project.source", "trace.dir"} {
		require.NoError(t, cfg.Set(key, "x"))
		got, err := cfg.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	}
	assert.Error(t, cfg.Set("unknown.key", "x"))
	_, err := cfg.Get("unknown.key")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Trace.Enabled = true
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Trace, loaded.Trace)
}
