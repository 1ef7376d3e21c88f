package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hdlplay",
	Short: "Hardware description playground",
	Long: `hdlplay compiles a Spade project through the open hardware toolchain
(swim, spade, yosys, verilator, nextpnr, ecppack) and shows what each
stage produces.

Every tool works on a virtual file tree: the project's source and
manifest go in, and each stage's output tree becomes the next stage's
input. Tools run on this machine or on a remote executor started with
'hdlplay serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.hdlplay/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
}
