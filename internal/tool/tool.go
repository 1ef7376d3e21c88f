// Package tool defines the uniform contract every toolchain stage follows
// and the registry the executor dispatches on.
package tool

import (
	"context"
	"io"

	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// Well-known tool identifiers.
const (
	SwimPrepare = "swimPrepare"
	Swim        = "swim"
	Spade       = "spade"
	Yosys       = "yosys"
	Verilator   = "verilator"
	NextpnrECP5 = "nextpnr-ecp5"
	Ecppack     = "ecppack"
)

// KnownNames lists the identifiers of the supported toolchain in pipeline
// order.
func KnownNames() []string {
	return []string{SwimPrepare, Swim, Spade, Yosys, Verilator, NextpnrECP5, Ecppack}
}

// IO carries the output streams of one invocation. Each Write is one chunk.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Discard is an IO that drops all output.
var Discard = IO{Stdout: io.Discard, Stderr: io.Discard}

// Tool runs one toolchain stage.
//
// Run may write any number of chunks to io before returning. It returns a
// complete replacement tree, typically the input plus new or modified
// files. A hard failure is reported as an error; the returned tree is then
// ignored.
type Tool interface {
	Run(ctx context.Context, args []string, in tree.Tree, io IO) (tree.Tree, error)
}

// Func adapts a function to the Tool interface.
type Func func(ctx context.Context, args []string, in tree.Tree, io IO) (tree.Tree, error)

// Run calls f.
func (f Func) Run(ctx context.Context, args []string, in tree.Tree, io IO) (tree.Tree, error) {
	return f(ctx, args, in, io)
}
