package tool

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

func echoTool(out string) Tool {
	return Func(func(_ context.Context, _ []string, in tree.Tree, io IO) (tree.Tree, error) {
		_, _ = io.Stdout.Write([]byte(out))
		return in, nil
	})
}

func TestRegistry(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(Swim, echoTool("swim")))
	require.NoError(t, r.Register(Spade, echoTool("spade")))

	err := r.Register(Swim, echoTool("again"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeToolDuplicate))

	assert.Error(t, r.Register("", echoTool("x")))
	assert.Error(t, r.Register("nil", nil))

	got, ok := r.Lookup(Spade)
	require.True(t, ok)
	var buf bytes.Buffer
	_, err = got.Run(context.Background(), nil, nil, IO{Stdout: &buf, Stderr: &buf})
	require.NoError(t, err)
	assert.Equal(t, "spade", buf.String())

	_, ok = r.Lookup("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, []string{Spade, Swim}, r.Names())
}

func TestRequires(t *testing.T) {
	called := false
	inner := Func(func(_ context.Context, _ []string, in tree.Tree, _ IO) (tree.Tree, error) {
		called = true
		return in, nil
	})
	wrapped := Requires(inner, []string{"build", "spade.sv"})

	_, err := wrapped.Run(context.Background(), nil, tree.Tree{}, Discard)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePathNotFound))
	assert.False(t, called)

	in := tree.Tree{"build": tree.Tree{"spade.sv": tree.File("module top;")}}
	out, err := wrapped.Run(context.Background(), nil, in, Discard)
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, tree.Equal(in, out))
}

func TestBuildDockerArgs(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		workdir string
		want    []string
	}{
		{
			name:    "basic",
			spec:    Spec{Image: "hdl/yosys:latest"},
			workdir: "/tmp/w",
			want: []string{
				"run", "--rm",
				"--read-only", "--pids-limit", "256", "--cap-drop", "ALL",
				"-v", "/tmp/w:/workspace", "-w", "/workspace",
				"hdl/yosys:latest", "yosys", "-q",
			},
		},
		{
			name: "limits and env",
			spec: Spec{
				Image:   "hdl/yosys:latest",
				Network: "none",
				CPU:     "2",
				Mem:     "1g",
				Env:     map[string]string{"B": "2", "A": "1"},
			},
			want: []string{
				"run", "--rm",
				"--network", "none", "--cpus", "2", "--memory", "1g",
				"--read-only", "--pids-limit", "256", "--cap-drop", "ALL",
				"-e", "A=1", "-e", "B=2",
				"hdl/yosys:latest", "yosys", "-q",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildDockerArgs(tt.spec, tt.workdir, []string{"yosys", "-q"})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessCommand(t *testing.T) {
	local := NewProcess(Swim, Spec{Args: []string{"--verbose"}})
	bin, args := local.command("/w", []string{"build"})
	assert.Equal(t, "swim", bin)
	assert.Equal(t, []string{"--verbose", "build"}, args)

	docker := NewProcess(Ecppack, Spec{Runner: RunnerDocker, Image: "trellis"})
	bin, args = docker.command("/w", []string{"a", "b"})
	assert.Equal(t, "docker", bin)
	assert.Equal(t, []string{"trellis", "ecppack", "a", "b"}, args[len(args)-4:])
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, Spec{}.Validate("swim"))
	assert.NoError(t, Spec{Runner: RunnerDocker, Image: "img"}.Validate("swim"))

	err := Spec{Runner: RunnerDocker}.Validate("swim")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	assert.Error(t, Spec{Runner: "podman"}.Validate("swim"))
	assert.Error(t, Spec{Requires: []string{""}}.Validate("swim"))
}

func TestNewRegistryDefaults(t *testing.T) {
	r, err := NewRegistry(DefaultSpecs())
	require.NoError(t, err)
	assert.ElementsMatch(t, KnownNames(), r.Names())

	verilator, ok := r.Lookup(Verilator)
	require.True(t, ok)
	_, err = verilator.Run(context.Background(), nil, tree.Tree{}, Discard)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePathNotFound), "missing build/spade.sv must fail before exec")

	_, err = NewRegistry(map[string]Spec{"bad": {Runner: RunnerDocker}})
	assert.Error(t, err)
}

func TestProcessRunsInScratchDir(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	p := NewProcess("copy", Spec{Binary: "sh", Args: []string{"-c"}}, WithTempDir(t.TempDir()))
	in := tree.Tree{"src": tree.Tree{"a.spade": tree.File("entity")}}

	var stdout, stderr bytes.Buffer
	out, err := p.Run(context.Background(),
		[]string{"mkdir build && cp src/a.spade build/a.sv && echo copied && echo warn >&2"},
		in, IO{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)

	got, err := tree.GetString(out, []string{"build", "a.sv"})
	require.NoError(t, err)
	assert.Equal(t, "entity", got)
	assert.Equal(t, "copied\n", stdout.String())
	assert.Equal(t, "warn\n", stderr.String())

	src, err := tree.GetString(out, []string{"src", "a.spade"})
	require.NoError(t, err)
	assert.Equal(t, "entity", src)
}

func TestProcessNonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	p := NewProcess("fail", Spec{Binary: "sh", Args: []string{"-c"}}, WithTempDir(t.TempDir()))
	_, err := p.Run(context.Background(), []string{"exit 3"}, tree.Tree{}, Discard)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeToolExecution))
	assert.Equal(t, "fail failed: exit status 3", errors.MessageOf(err))
}
