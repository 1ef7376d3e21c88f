package playground

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/pipeline"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
	"github.com/felixgeelhaar/hdlplay/internal/worker"
)

const modelHeader = `class Vtop final : public VerilatedModel {
  public:
    VL_IN8(&a,7,0);
    VL_IN8(&b,7,0);
    VL_OUT16(&output__024,8,0);
};
`

func writes(path, content string) tool.Func {
	return func(_ context.Context, _ []string, in tree.Tree, io tool.IO) (tree.Tree, error) {
		_, _ = fmt.Fprintf(io.Stdout, "wrote %s\n", path)
		return tree.Set(in, tree.Split(path), []byte(content))
	}
}

type fixture struct {
	session *Session
	log     *pipeline.Buffer
	calls   map[string]int
}

func newFixture(t *testing.T, override map[string]tool.Func) *fixture {
	t.Helper()
	f := &fixture{calls: map[string]int{}}
	tools := map[string]tool.Func{
		tool.SwimPrepare: writes("build/deps.lock", "locked"),
		tool.Swim:        writes("build/commands.json", "[]"),
		tool.Spade: func(ctx context.Context, args []string, in tree.Tree, io tool.IO) (tree.Tree, error) {
			src, err := tree.GetString(in, PathSource)
			if err != nil {
				return nil, err
			}
			return tree.Set(in, PathVerilog, []byte("// from "+strings.TrimSpace(strings.Split(src, "\n")[0])))
		},
		tool.Yosys:       writes("hardware.json", `{"modules":{}}`),
		tool.Verilator:   writes("obj_dir/Vtop.h", modelHeader),
		tool.NextpnrECP5: writes("hardware.config", ".device LFE5UM5G-85F"),
		tool.Ecppack:     writes("hardware.bit", "\x00\xff"),
	}
	for k, v := range override {
		tools[k] = v
	}

	registry := tool.NewEmptyRegistry()
	for name, fn := range tools {
		name, fn := name, fn
		require.NoError(t, registry.Register(name, tool.Func(func(ctx context.Context, args []string, in tree.Tree, io tool.IO) (tree.Tree, error) {
			f.calls[name]++
			return fn(ctx, args, in, io)
		})))
	}

	client := worker.NewLocal(worker.NewExecutor(registry, worker.WithLogger(log.Nop())))
	t.Cleanup(func() { _ = client.Close() })

	f.log = pipeline.NewBuffer(nil)
	f.session = NewSession(pipeline.NewRunner(client, f.log, pipeline.WithLogger(log.Nop())))
	return f
}

func names(cmds []pipeline.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Tool)
	}
	return out
}

func TestActionCommands(t *testing.T) {
	s := NewSession(nil)
	tests := []struct {
		action Action
		tools  []string
	}{
		{ActionBuild, []string{tool.SwimPrepare, tool.Swim}},
		{ActionRun, []string{tool.SwimPrepare, tool.Swim, tool.Spade}},
		{ActionSynth, []string{tool.SwimPrepare, tool.Swim, tool.Spade, tool.Yosys}},
		{ActionSimulate, []string{tool.SwimPrepare, tool.Swim, tool.Spade, tool.Verilator}},
		{ActionPNR, []string{tool.SwimPrepare, tool.Swim, tool.Spade, tool.Yosys, tool.NextpnrECP5, tool.Ecppack}},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			cmds, err := s.Commands(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.tools, names(cmds))
			require.NoError(t, pipeline.Validate(cmds))
			assert.NotEmpty(t, tt.action.Describe())
		})
	}

	_, err := s.Commands("flash")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownAction))
}

func TestSpadeArguments(t *testing.T) {
	cmds, err := NewSession(nil).Commands(ActionRun)
	require.NoError(t, err)
	spade := cmds[2]
	assert.Equal(t, []string{"--command-file", "build/commands.json", "-o", "build/spade.sv", "dummy_file", "--no-color"}, spade.Args)
	assert.Equal(t, ViewVerilog, spade.Product.View)
	assert.Equal(t, "build/spade.sv", spade.Product.PathString())
}

func TestSeedTree(t *testing.T) {
	s := NewSession(nil)
	seed := s.SeedTree()

	src, err := tree.GetString(seed, PathSource)
	require.NoError(t, err)
	assert.Equal(t, DemoSource, src)
	manifest, err := tree.GetString(seed, PathManifest)
	require.NoError(t, err)
	assert.Equal(t, DemoManifest, manifest)
	_, err = tree.Get(seed, PathConstraints)
	assert.Error(t, err)

	s.SetConstraints("LOCATE COMP \"clk\" SITE \"P3\";")
	_, err = tree.Get(s.SeedTree(), PathConstraints)
	assert.NoError(t, err)
}

func TestSynthPublishesProducts(t *testing.T) {
	f := newFixture(t, nil)
	completed := false

	res, err := f.session.Run(context.Background(), ActionSynth, func(*pipeline.Result) { completed = true })
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, 4, res.Completed)

	verilog, ok := f.session.Product(ViewVerilog)
	require.True(t, ok)
	assert.Equal(t, "// from fn top(a: int<8>, b: int<8>) -> int<9> {", verilog)
	netlist, ok := f.session.Product(ViewNetlist)
	require.True(t, ok)
	assert.Equal(t, `{"modules":{}}`, netlist)
	assert.Equal(t, []string{ViewNetlist, ViewVerilog}, f.session.Views())

	assert.Contains(t, f.log.String(), "[Playground] running yosys\nwrote hardware.json\n[Playground] yosys done\n")
}

func TestSecondRunUsesDependencyCache(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.session.Run(context.Background(), ActionBuild, nil)
	require.NoError(t, err)
	f.session.SetSource("fn top() {}\n")
	_, err = f.session.Run(context.Background(), ActionRun, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls[tool.SwimPrepare])
	assert.Equal(t, 2, f.calls[tool.Swim])
	assert.Contains(t, f.log.String(), "[INFO]")

	verilog, _ := f.session.Product(ViewVerilog)
	assert.Equal(t, "// from fn top() {}", verilog, "the cached tree must not hide the new source")

	f.session.SetManifest("name = \"other\"\n")
	_, err = f.session.Run(context.Background(), ActionBuild, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls[tool.SwimPrepare])
}

func TestSimulationLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.session.Run(context.Background(), ActionSimulate, nil)
	require.NoError(t, err)
	first := f.session.Simulation()
	require.NotNil(t, first)
	assert.Equal(t, "top(in a[8], in b[8], out output__024[9])", first.String())

	_, err = f.session.Run(context.Background(), ActionSimulate, nil)
	require.NoError(t, err)
	assert.True(t, first.Closed(), "a new run releases the previous simulation")
	second := f.session.Simulation()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	require.NoError(t, f.session.Close())
	assert.True(t, second.Closed())
	assert.Nil(t, f.session.Simulation())
}

func TestFailureStopsPipeline(t *testing.T) {
	f := newFixture(t, map[string]tool.Func{
		tool.Swim: func(context.Context, []string, tree.Tree, tool.IO) (tree.Tree, error) {
			return nil, fmt.Errorf("manifest invalid")
		},
	})
	completed := false

	res, err := f.session.Run(context.Background(), ActionSynth, func(*pipeline.Result) { completed = true })
	require.Error(t, err)
	assert.False(t, completed)
	assert.Equal(t, "swim build", res.Failed)
	assert.Zero(t, f.calls[tool.Spade])
	assert.True(t, strings.HasSuffix(f.log.String(), "manifest invalid\n"))
	_, ok := f.session.Product(ViewVerilog)
	assert.False(t, ok)
}

func TestProductsOutOfDate(t *testing.T) {
	f := newFixture(t, nil)
	f.session.SetSource("fn a() {}\n")
	assert.False(t, f.session.ProductsOutOfDate(), "nothing built yet")

	_, err := f.session.Run(context.Background(), ActionRun, nil)
	require.NoError(t, err)
	assert.False(t, f.session.ProductsOutOfDate())

	f.session.SetSource("fn b() {}\n")
	assert.True(t, f.session.ProductsOutOfDate())

	_, err = f.session.Run(context.Background(), ActionRun, nil)
	require.NoError(t, err)
	assert.False(t, f.session.ProductsOutOfDate())
}

func TestPNRRequiresConstraints(t *testing.T) {
	f := newFixture(t, map[string]tool.Func{
		tool.NextpnrECP5: func(ctx context.Context, args []string, in tree.Tree, io tool.IO) (tree.Tree, error) {
			if _, err := tree.Get(in, PathConstraints); err != nil {
				return nil, err
			}
			return writes("hardware.config", "cfg")(ctx, args, in, io)
		},
	})

	_, err := f.session.Run(context.Background(), ActionPNR, nil)
	require.Error(t, err)
	assert.Contains(t, errors.MessageOf(err), "board.lpf")

	f.session.SetConstraints("LOCATE COMP \"clk\" SITE \"P3\";")
	_, err = f.session.Run(context.Background(), ActionPNR, nil)
	require.NoError(t, err)
	bit, ok := f.session.Product(ViewBitstream)
	require.True(t, ok)
	assert.Equal(t, "\x00\xff", bit)
}

func TestParseModel(t *testing.T) {
	sim, err := ParseModel("top", modelHeader)
	require.NoError(t, err)
	assert.Equal(t, []Port{
		{Name: "a", Dir: "in", Width: 8},
		{Name: "b", Dir: "in", Width: 8},
		{Name: "output__024", Dir: "out", Width: 9},
	}, sim.Ports)

	_, err = ParseModel("top", "// empty")
	assert.Error(t, err)
}

func TestOnProduct(t *testing.T) {
	f := newFixture(t, nil)
	var views []string
	f.session.OnProduct(func(view, _ string) { views = append(views, view) })

	_, err := f.session.Run(context.Background(), ActionSynth, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ViewVerilog, ViewNetlist}, views)
}
