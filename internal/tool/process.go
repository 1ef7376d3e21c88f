package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// Process runs an external binary over a scratch directory materialised
// from the input tree.
type Process struct {
	name    string
	spec    Spec
	tempDir string
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithTempDir sets the parent directory for scratch directories.
func WithTempDir(dir string) ProcessOption {
	return func(p *Process) { p.tempDir = dir }
}

// NewProcess creates a process tool named name.
func NewProcess(name string, spec Spec, opts ...ProcessOption) *Process {
	p := &Process{name: name, spec: spec}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the tool identifier.
func (p *Process) Name() string {
	return p.name
}

// Run writes in to a scratch directory, runs the binary there with stdout
// and stderr connected to io, and returns the directory contents.
func (p *Process) Run(ctx context.Context, args []string, in tree.Tree, io IO) (tree.Tree, error) {
	workdir, err := os.MkdirTemp(p.tempDir, "hdlplay-"+p.name+"-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTreeIO, "create scratch directory", err)
	}
	defer os.RemoveAll(workdir)

	if err := tree.WriteDir(in, workdir); err != nil {
		return nil, err
	}

	bin, argv := p.command(workdir, args)
	cmd := exec.CommandContext(ctx, bin, argv...)
	cmd.Dir = workdir
	cmd.Stdout = io.Stdout
	cmd.Stderr = io.Stderr
	if p.runner() == RunnerLocal && len(p.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(p.spec.Env)...)
	}

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, errors.NewToolExecutionError(p.name,
				fmt.Errorf("exit status %d", exitErr.ExitCode()))
		}
		return nil, errors.NewToolExecutionError(p.name, err).
			WithSuggestion(fmt.Sprintf("Check that %s is installed or configure a docker image for it", bin))
	}

	return tree.ReadDir(workdir)
}

func (p *Process) runner() Runner {
	if p.spec.Runner == "" {
		return RunnerLocal
	}
	return p.spec.Runner
}

func (p *Process) binary() string {
	if p.spec.Binary != "" {
		return p.spec.Binary
	}
	return p.name
}

// command returns the executable and its arguments for one invocation.
func (p *Process) command(workdir string, args []string) (string, []string) {
	toolArgs := append(append([]string(nil), p.spec.Args...), args...)
	if p.runner() != RunnerDocker {
		return p.binary(), toolArgs
	}
	return "docker", buildDockerArgs(p.spec, workdir, append([]string{p.binary()}, toolArgs...))
}

// buildDockerArgs constructs the docker run arguments. The scratch
// directory is the only writable mount.
func buildDockerArgs(spec Spec, workdir string, command []string) []string {
	args := []string{
		"run",
		"--rm",
	}

	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	if spec.CPU != "" {
		args = append(args, "--cpus", spec.CPU)
	}
	if spec.Mem != "" {
		args = append(args, "--memory", spec.Mem)
	}

	args = append(args,
		"--read-only",
		"--pids-limit", "256",
		"--cap-drop", "ALL",
	)

	if workdir != "" {
		args = append(args,
			"-v", fmt.Sprintf("%s:/workspace", workdir),
			"-w", "/workspace",
		)
	}

	for _, kv := range envList(spec.Env) {
		args = append(args, "-e", kv)
	}

	args = append(args, spec.Image)
	return append(args, command...)
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func splitPath(p string) []string {
	return tree.Split(strings.TrimSpace(p))
}
