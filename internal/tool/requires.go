package tool

import (
	"context"

	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// Requires wraps t so that every path in paths must resolve to a file in
// the input tree before t runs. A missing path fails the invocation with
// the tree accessor's error.
func Requires(t Tool, paths ...[]string) Tool {
	return Func(func(ctx context.Context, args []string, in tree.Tree, io IO) (tree.Tree, error) {
		for _, p := range paths {
			if _, err := tree.Get(in, p); err != nil {
				return nil, err
			}
		}
		return t.Run(ctx, args, in, io)
	})
}
