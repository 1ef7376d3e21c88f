// Package pipeline runs ordered toolchain commands against an evolving
// file tree and publishes their products as soon as they exist.
package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// Command is one step of a pipeline.
type Command struct {
	// Name identifies the step in the log.
	Name string
	// Tool is the registered tool identifier.
	Tool string
	// Args are passed to the tool.
	Args []string
	// Product, if set, is published after the command succeeds.
	Product *Product
}

// Product declares a user-visible artifact in the tree produced by a
// command.
type Product struct {
	// Path must name a file in the output tree.
	Path []string
	// View is the UI view that displays the product.
	View string
	// Sink receives the product content.
	Sink func(content string)
	// Derive optionally builds a resource from the content, for example a
	// simulation instance. The runner owns the result and closes it before
	// the next run or when a newer one replaces it.
	Derive func(content string) (io.Closer, error)
}

// PathString returns the product path joined with slashes.
func (p *Product) PathString() string {
	return strings.Join(p.Path, "/")
}

// Validate checks that every command can be run.
func Validate(commands []Command) error {
	for i, c := range commands {
		if c.Name == "" {
			return errors.New(errors.ErrCodeProduct, fmt.Sprintf("command %d has no name", i))
		}
		if c.Tool == "" {
			return errors.New(errors.ErrCodeProduct, fmt.Sprintf("command %s has no tool", c.Name))
		}
		if c.Product != nil && len(c.Product.Path) == 0 {
			return errors.New(errors.ErrCodeProduct, fmt.Sprintf("command %s declares a product without a path", c.Name))
		}
	}
	return nil
}
