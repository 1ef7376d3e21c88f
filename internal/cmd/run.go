package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/playground"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
	"github.com/felixgeelhaar/hdlplay/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run [action]",
	Short: "Run an action's pipeline and print its log",
	Long: `Run the pipeline of one action against the project and stream the
combined tool log to stdout.

Actions:
  build     Resolve dependencies and build the swim project
  run       Compile to SystemVerilog
  synth     Synthesise for ECP5 with yosys
  simulate  Build a verilator model
  pnr       Place, route and pack an ECP5 bitstream

Without an action an interactive picker is shown.

Examples:
  # Compile the project in the current directory
  hdlplay run run

  # Synthesise the demo project and keep the working tree
  hdlplay run synth --demo --out ./out`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runProject projectFlags
	runOutDir  string
	runTimeout time.Duration
	runNoColor bool
)

func init() {
	runProject.register(runCmd)
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "write the final working tree to this directory")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the pipeline after this long (0 = no limit)")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "print the log without styling")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	action, err := chooseAction(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	out := newLogWriter(cmd.OutOrStdout(), !runNoColor)
	a, err := newApp(ctx, cc, out, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.load(cc.Config.Project, runProject); err != nil {
		return err
	}

	result, err := a.session.Run(ctx, action, nil)
	out.Flush()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, view := range a.session.Views() {
		content, _ := a.session.Product(view)
		fmt.Fprintf(w, "\n%s: %d bytes\n", view, len(content))
	}
	if sim := a.session.Simulation(); sim != nil {
		fmt.Fprintf(w, "simulation: %s\n", sim)
	}
	fmt.Fprintf(w, "\n%s finished in %s\n", action, result.Duration.Round(time.Millisecond))

	if runOutDir != "" {
		if err := tree.WriteDir(result.Tree, runOutDir); err != nil {
			return err
		}
		fmt.Fprintf(w, "working tree written to %s\n", runOutDir)
	}
	return nil
}

// chooseAction returns the action named in args or, with no argument on
// a terminal, the one picked interactively.
func chooseAction(args []string) (playground.Action, error) {
	if len(args) == 1 {
		return playground.Action(args[0]), nil
	}
	if !tui.ShouldPrompt() {
		return "", errors.NewUnknownActionError("(none)", actionNames())
	}
	choices := make([]tui.Choice, 0, len(playground.Actions()))
	for _, a := range playground.Actions() {
		choices = append(choices, tui.Choice{Value: string(a), Description: a.Describe()})
	}
	picked, err := tui.PromptForSelect("Which action?", choices)
	if err != nil {
		return "", err
	}
	return playground.Action(picked), nil
}

func actionNames() []string {
	names := make([]string, 0, len(playground.Actions()))
	for _, a := range playground.Actions() {
		names = append(names, string(a))
	}
	return names
}

// logWriter is the pipeline log sink of 'hdlplay run'. Complete lines are
// styled and written through; a trailing partial line waits for the rest
// or for Flush.
type logWriter struct {
	mu      sync.Mutex
	w       io.Writer
	styled  bool
	styles  tui.Styles
	pending []byte
}

func newLogWriter(w io.Writer, styled bool) *logWriter {
	if styled {
		if f, ok := w.(*os.File); !ok || f != os.Stdout || !tui.IsInteractive() {
			styled = false
		}
	}
	return &logWriter{w: w, styled: styled, styles: tui.DefaultStyles()}
}

func (l *logWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	i := bytes.LastIndexByte(l.pending, '\n')
	if i < 0 {
		return len(p), nil
	}
	if err := l.emit(l.pending[:i+1]); err != nil {
		return 0, err
	}
	l.pending = append(l.pending[:0], l.pending[i+1:]...)
	return len(p), nil
}

// Reset is a no-op: earlier output has already been printed.
func (l *logWriter) Reset() {}

// Flush writes any pending partial line.
func (l *logWriter) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		_ = l.emit(append(l.pending, '\n'))
		l.pending = l.pending[:0]
	}
}

func (l *logWriter) emit(b []byte) error {
	text := string(b)
	if l.styled {
		text = tui.RenderLog(l.styles, text)
	}
	_, err := io.WriteString(l.w, text)
	return err
}
