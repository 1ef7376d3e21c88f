package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/config"
	"github.com/felixgeelhaar/hdlplay/internal/depcache"
	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/pipeline"
	"github.com/felixgeelhaar/hdlplay/internal/playground"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
	"github.com/felixgeelhaar/hdlplay/internal/trace"
	"github.com/felixgeelhaar/hdlplay/internal/worker"
)

// projectFlags selects the project a command works on.
type projectFlags struct {
	dir  string
	demo bool
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "C", ".", "project directory")
	cmd.Flags().BoolVar(&f.demo, "demo", false, "use the built-in demo project instead of files on disk")
}

// app wires a session to an executor.
type app struct {
	client   *worker.Client
	runner   *pipeline.Runner
	session  *playground.Session
	recorder *trace.Recorder
}

// newApp connects to the configured executor and creates a session whose
// log goes to out. views may be nil.
func newApp(ctx context.Context, cc *CommandContext, out pipeline.LogSink, views pipeline.ViewSwitcher) (*app, error) {
	client, err := newClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	rec, err := trace.NewRecorder(trace.Config{
		Enabled: cc.Config.Trace.Enabled,
		Dir:     cc.Config.Trace.Dir,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(cc.Logger),
		pipeline.WithTrace(rec),
	}
	if views != nil {
		opts = append(opts, pipeline.WithViews(views))
	}
	runner := pipeline.NewRunner(client, out, opts...)

	if err := client.LoadPackages(ctx, tool.KnownNames()...); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &app{
		client:   client,
		runner:   runner,
		session:  playground.NewSession(runner),
		recorder: rec,
	}, nil
}

// newClient returns a client for an in-process executor, or for the
// remote executor at executor.address in remote mode.
func newClient(ctx context.Context, cc *CommandContext) (*worker.Client, error) {
	if cc.Config.Executor.Mode == config.ModeRemote {
		cc.Logger.Debug("dialing executor", "address", cc.Config.Executor.Address)
		return worker.Dial(ctx, cc.Config.Executor.Address)
	}
	exec, err := newExecutor(cc)
	if err != nil {
		return nil, err
	}
	return worker.NewLocal(exec), nil
}

func newExecutor(cc *CommandContext) (*worker.Executor, error) {
	if dir := cc.Config.Executor.WorkDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create "+dir, err)
		}
	}
	registry, err := tool.NewRegistry(cc.Config.ToolSpecs(), cc.Config.ProcessOptions()...)
	if err != nil {
		return nil, err
	}
	return worker.NewExecutor(registry,
		worker.WithLogger(cc.Logger),
		worker.WithCache(depcache.New()),
	), nil
}

// load fills the session from the project files named in the
// configuration, relative to dir. The constraints file is optional.
func (a *app) load(cfg config.ProjectConfig, f projectFlags) error {
	if f.demo {
		return nil
	}
	source, err := readProjectFile(f.dir, cfg.Source)
	if err != nil {
		return err
	}
	manifest, err := readProjectFile(f.dir, cfg.Manifest)
	if err != nil {
		return err
	}
	a.session.SetSource(source)
	a.session.SetManifest(manifest)

	if cfg.Constraints != "" {
		constraints, err := readProjectFile(f.dir, cfg.Constraints)
		if err != nil && !errors.HasCode(err, errors.ErrCodeFileNotFound) {
			return err
		}
		a.session.SetConstraints(constraints)
	}
	return nil
}

func (a *app) Close() error {
	err := a.session.Close()
	if cerr := a.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func readProjectFile(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", errors.NewFileNotFoundError(path).
			WithSuggestion("Pass --demo to run the built-in demo project")
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+path, err)
	}
	return string(data), nil
}
