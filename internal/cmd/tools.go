package cmd

import (
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/tool"
	"github.com/felixgeelhaar/hdlplay/internal/tui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the configured toolchain",
	Long: `List every tool the executor registers with the binary or container
image it runs. With --check, report whether each one can be found on
this machine.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

var toolsCheck bool

func init() {
	toolsCmd.Flags().BoolVar(&toolsCheck, "check", false, "check that each tool's binary or docker is on PATH")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	missing := printTools(cmd.OutOrStdout(), cc.Config.ToolSpecs(), toolsCheck, exec.LookPath)
	if missing > 0 {
		return fmt.Errorf("%d tool(s) not found on PATH", missing)
	}
	return nil
}

// printTools writes one row per spec and returns how many failed the
// lookup when check is set.
func printTools(w io.Writer, specs map[string]tool.Spec, check bool, lookPath func(string) (string, error)) int {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	styles := tui.DefaultStyles()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tRUNNER\tCOMMAND\tREQUIRES")

	missing := 0
	for _, name := range names {
		spec := specs[name]
		runner := spec.Runner
		if runner == "" {
			runner = tool.RunnerLocal
		}
		command := strings.TrimSpace(spec.Binary + " " + strings.Join(spec.Args, " "))
		if runner == tool.RunnerDocker {
			command = spec.Image + " " + command
		}
		requires := strings.Join(spec.Requires, ",")
		if requires == "" {
			requires = "-"
		}
		row := fmt.Sprintf("%s\t%s\t%s\t%s", name, runner, command, requires)

		if check {
			bin := spec.Binary
			if bin == "" {
				bin = name
			}
			if runner == tool.RunnerDocker {
				bin = "docker"
			}
			if _, err := lookPath(bin); err != nil {
				missing++
				row += "\t" + styles.Error.Render("missing")
			} else {
				row += "\t" + styles.Success.Render("ok")
			}
		}
		fmt.Fprintln(tw, row)
	}
	_ = tw.Flush()
	return missing
}
