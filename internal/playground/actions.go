package playground

import (
	"github.com/felixgeelhaar/hdlplay/internal/pipeline"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
)

// Action is a user-triggered pipeline.
type Action string

const (
	ActionBuild    Action = "build"
	ActionRun      Action = "run"
	ActionSynth    Action = "synth"
	ActionSimulate Action = "simulate"
	ActionPNR      Action = "pnr"
)

// Actions lists the supported actions from cheapest to most expensive.
func Actions() []Action {
	return []Action{ActionBuild, ActionRun, ActionSynth, ActionSimulate, ActionPNR}
}

// Describe returns a one-line description of a.
func (a Action) Describe() string {
	switch a {
	case ActionBuild:
		return "Resolve dependencies and build the swim project"
	case ActionRun:
		return "Compile to SystemVerilog"
	case ActionSynth:
		return "Synthesise for ECP5 with yosys"
	case ActionSimulate:
		return "Build a verilator model"
	case ActionPNR:
		return "Place, route and pack an ECP5 bitstream"
	default:
		return ""
	}
}

// Views showing products.
const (
	ViewVerilog    = "verilog-product"
	ViewNetlist    = "hardware-json"
	ViewSimulation = "simulation"
	ViewBitstream  = "bitstream"
)

// Product paths in the working tree.
var (
	PathVerilog   = []string{"build", "spade.sv"}
	PathNetlist   = []string{"hardware.json"}
	PathModel     = []string{"obj_dir", "Vtop.h"}
	PathBitstream = []string{"hardware.bit"}
)

// Seed tree layout.
var (
	PathSource      = []string{"src", "playground.spade"}
	PathManifest    = []string{"swim.toml"}
	PathConstraints = []string{"board.lpf"}
)

var (
	spadeArgs = []string{"--command-file", "build/commands.json", "-o", "build/spade.sv", "dummy_file", "--no-color"}
	yosysArgs = []string{"-p", "read_verilog -sv build/spade.sv; synth_ecp5 -top top -json hardware.json"}

	verilatorArgs = []string{
		"--cc", "-O3", "-Wall", "-Wno-EOFNEWLINE", "-Wno-DECLFILENAME",
		"--x-assign", "fast", "--debug-check", "-Ibuild/",
		"--top-module", "top", "build/spade.sv",
	}
	nextpnrArgs = []string{"--85k", "--package", "CABGA381", "--json", "hardware.json", "--lpf", "board.lpf", "--textcfg", "hardware.config"}
	ecppackArgs = []string{"hardware.config", "hardware.bit", "--idcode", "0x81112043"}
)

// buildCommands is shared by every action.
func buildCommands() []pipeline.Command {
	return []pipeline.Command{
		{Name: "swim prepare", Tool: tool.SwimPrepare},
		{Name: "swim build", Tool: tool.Swim, Args: []string{"build"}},
	}
}

func (s *Session) commands(a Action) []pipeline.Command {
	build := buildCommands()
	run := append(clone(build), pipeline.Command{
		Name:    "spade",
		Tool:    tool.Spade,
		Args:    spadeArgs,
		Product: s.product(PathVerilog, ViewVerilog, nil),
	})
	synth := append(clone(run), pipeline.Command{
		Name:    "yosys",
		Tool:    tool.Yosys,
		Args:    yosysArgs,
		Product: s.product(PathNetlist, ViewNetlist, nil),
	})

	switch a {
	case ActionBuild:
		return build
	case ActionRun:
		return run
	case ActionSynth:
		return synth
	case ActionSimulate:
		return append(clone(run), pipeline.Command{
			Name:    "verilator",
			Tool:    tool.Verilator,
			Args:    verilatorArgs,
			Product: s.product(PathModel, ViewSimulation, s.deriveSimulation),
		})
	case ActionPNR:
		return append(clone(synth),
			pipeline.Command{Name: "nextpnr", Tool: tool.NextpnrECP5, Args: nextpnrArgs},
			pipeline.Command{
				Name:    "ecppack",
				Tool:    tool.Ecppack,
				Args:    ecppackArgs,
				Product: s.product(PathBitstream, ViewBitstream, nil),
			})
	default:
		return nil
	}
}

func clone(cmds []pipeline.Command) []pipeline.Command {
	return append([]pipeline.Command(nil), cmds...)
}
