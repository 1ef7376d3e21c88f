package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/config"
	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/pipeline"
	"github.com/felixgeelhaar/hdlplay/internal/playground"
	"github.com/felixgeelhaar/hdlplay/internal/tui"
)

var playCmd = &cobra.Command{
	Use:   "play [action]",
	Short: "Run an action in the interactive playground view",
	Long: `Run the pipeline of one action in a full-screen view. The log and every
product the pipeline publishes get a tab; when a command fails the view
switches back to the command output. Re-running reads the project files
again and marks the shown products as out of date when they changed; a
build with an unchanged swim.toml reuses the prepared dependencies.

Diagnostic logs go to ~/.hdlplay/play.log while the view is open.

Keys:
  tab / shift+tab   switch view
  r                 re-run the current action
  a                 switch to the next action
  up / down         scroll
  q                 quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

var playProject projectFlags

func init() {
	playProject.register(playCmd)
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if !tui.IsInteractive() {
		return fmt.Errorf("play needs a terminal, use 'hdlplay run <action>' in scripts and CI")
	}

	logFile, err := openPlayLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	cc, err := newCommandContext(cmd, logFile)
	if err != nil {
		return err
	}

	action, err := chooseAction(args)
	if err != nil {
		return err
	}

	model := tui.NewModel("hdlplay")
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	sink := tui.NewSink(program)

	a, err := newApp(cmd.Context(), cc, sink, sink)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.load(cc.Config.Project, playProject); err != nil {
		return err
	}
	a.session.OnProduct(func(view, content string) {
		program.Send(tui.ProductMsg{View: view, Content: content})
	})

	model.Attach(&playController{
		ctx:     cmd.Context(),
		app:     a,
		project: cc.Config.Project,
		flags:   playProject,
		logger:  cc.Logger,
	}, actionNames(), string(action))

	if _, err := program.Run(); err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("playground view failed: %w", err)
	}
	return nil
}

// playController runs the actions the playground view asks for.
type playController struct {
	ctx     context.Context
	app     *app
	project config.ProjectConfig
	flags   projectFlags
	logger  *log.Logger
}

func (c *playController) Reload() (bool, error) {
	before := c.app.session.Manifest()
	if err := c.app.load(c.project, c.flags); err != nil {
		return false, err
	}
	if c.app.session.Manifest() != before {
		c.logger.Info("swim.toml changed, dependencies will be prepared again")
	}
	return c.app.session.ProductsOutOfDate(), nil
}

func (c *playController) Run(action string) tui.RunDoneMsg {
	result, err := c.app.session.Run(c.ctx, playground.Action(action), nil)
	return doneMessage(result, err)
}

func doneMessage(result *pipeline.Result, err error) tui.RunDoneMsg {
	msg := tui.RunDoneMsg{Err: err, Rejected: errors.HasCode(err, errors.ErrCodeAlreadyRunning)}
	if result != nil {
		msg.Duration = result.Duration
		if result.Failed != "" {
			msg.Message = result.Failed + " failed"
		}
	}
	if err != nil && msg.Message == "" {
		msg.Message = errors.MessageOf(err)
	}
	return msg
}

func openPlayLog() (io.WriteCloser, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".hdlplay")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create "+dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "play.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to open play log", err)
	}
	return f, nil
}
