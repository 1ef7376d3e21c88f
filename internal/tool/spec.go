package tool

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// Runner selects how a process tool is started.
type Runner string

const (
	// RunnerLocal executes a binary found on PATH.
	RunnerLocal Runner = "local"
	// RunnerDocker executes the binary inside a container.
	RunnerDocker Runner = "docker"
)

// Spec configures one process-backed tool.
type Spec struct {
	// Binary is the executable name or path. Defaults to the tool name.
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty"`
	// Args are prepended to the arguments of every invocation.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
	// Runner is "local" (default) or "docker".
	Runner Runner `yaml:"runner,omitempty" json:"runner,omitempty"`
	// Image is the container image, required for the docker runner.
	Image string `yaml:"image,omitempty" json:"image,omitempty"`
	// Env is passed to the process.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	// Network, CPU and Mem constrain the docker runner.
	Network string `yaml:"network,omitempty" json:"network,omitempty"`
	CPU     string `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Mem     string `yaml:"mem,omitempty" json:"mem,omitempty"`
	// Requires lists slash separated paths that must exist in the input tree.
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty"`
}

// Validate checks the spec of the tool called name.
func (s Spec) Validate(name string) error {
	switch s.Runner {
	case "", RunnerLocal:
	case RunnerDocker:
		if s.Image == "" {
			return errors.NewConfigInvalidError(fmt.Sprintf("tool %s: docker runner requires an image", name))
		}
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("tool %s: unknown runner %q", name, s.Runner))
	}
	for _, p := range s.Requires {
		if p == "" {
			return errors.NewConfigInvalidError(fmt.Sprintf("tool %s: empty required path", name))
		}
	}
	return nil
}

// DefaultSpecs returns local specs for the known toolchain. The back-end
// tools need the outputs of earlier stages before they can run.
func DefaultSpecs() map[string]Spec {
	return map[string]Spec{
		SwimPrepare: {Binary: "swim", Args: []string{"update"}},
		Swim:        {Binary: "swim"},
		Spade:       {Binary: "spade"},
		Yosys:       {Binary: "yosys"},
		Verilator:   {Binary: "verilator", Requires: []string{"build/spade.sv"}},
		NextpnrECP5: {Binary: "nextpnr-ecp5", Requires: []string{"hardware.json", "board.lpf"}},
		Ecppack:     {Binary: "ecppack", Requires: []string{"hardware.config"}},
	}
}

// NewRegistry builds a registry holding one process tool per spec.
func NewRegistry(specs map[string]Spec, opts ...ProcessOption) (*Registry, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	r := NewEmptyRegistry()
	for _, name := range names {
		spec := specs[name]
		if err := spec.Validate(name); err != nil {
			return nil, err
		}
		var t Tool = NewProcess(name, spec, opts...)
		if len(spec.Requires) > 0 {
			paths := make([][]string, 0, len(spec.Requires))
			for _, p := range spec.Requires {
				paths = append(paths, splitPath(p))
			}
			t = Requires(t, paths...)
		}
		if err := r.Register(name, t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
