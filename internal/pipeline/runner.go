package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/trace"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
	"github.com/felixgeelhaar/hdlplay/internal/worker"
)

// Executor runs one tool invocation and waits for its outcome.
// *worker.Client implements it.
type Executor interface {
	Run(ctx context.Context, tool string, args []string, files tree.Tree, onChunk worker.ChunkFunc) (tree.Tree, error)
}

// Result summarises a run.
type Result struct {
	RunID string
	// Tree is the working tree after the last successful command.
	Tree tree.Tree
	// Completed counts the commands that succeeded.
	Completed int
	// Failed names the command that stopped the run, if any.
	Failed   string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether every command of the run succeeded.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Runner executes pipelines one at a time.
type Runner struct {
	exec   Executor
	out    LogSink
	views  ViewSwitcher
	logger *log.Logger
	trace  *trace.Recorder

	mu       sync.Mutex
	running  bool
	working  tree.Tree
	derived  io.Closer
	lastByte byte
}

// Option configures a Runner.
type Option func(*Runner)

// WithViews sets the view switcher used on failure.
func WithViews(v ViewSwitcher) Option {
	return func(r *Runner) { r.views = v }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTrace records run events into rec.
func WithTrace(rec *trace.Recorder) Option {
	return func(r *Runner) { r.trace = rec }
}

// NewRunner creates a runner sending commands to exec and writing the
// combined log to out.
func NewRunner(exec Executor, out LogSink, opts ...Option) *Runner {
	r := &Runner{
		exec:     exec,
		out:      out,
		views:    noopViews{},
		lastByte: '\n',
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.OrDefault(r.logger).WithComponent("pipeline")
	return r
}

// Running reports whether a pipeline is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// WorkingTree returns the working tree of the current or last run.
func (r *Runner) WorkingTree() tree.Tree {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.working
}

// Run executes commands in order starting from initial.
//
// A call made while another run is in flight fails with PIPE-001 and has
// no effect. Otherwise the log is reset and the derived resource of the
// previous run released. Each command's streamed output is appended to the
// log as it arrives. The first failing command stops the run: its message
// ends the log, the command output view is shown and the working tree
// keeps the last successful state. onComplete is called only when every
// command succeeded.
func (r *Runner) Run(ctx context.Context, commands []Command, initial tree.Tree, onComplete func(*Result)) (*Result, error) {
	if err := Validate(commands); err != nil {
		return nil, err
	}
	if !r.begin(initial) {
		return nil, errors.NewAlreadyRunningError()
	}
	defer r.end()

	start := time.Now()
	result := &Result{RunID: uuid.NewString(), Tree: initial}
	logger := r.logger.With("run_id", result.RunID)
	logger.Info("pipeline started", "commands", len(commands))
	r.record(trace.NewEvent(trace.EventTypeRunStart, result.RunID).
		WithData("commands", strconv.Itoa(len(commands))).
		WithData("tree_digest", tree.Digest(initial)))

	for _, cmd := range commands {
		out, err := r.runCommand(ctx, result.RunID, cmd, result.Tree)
		if err != nil {
			result.Failed = cmd.Name
			result.Err = err
			r.line(errors.MessageOf(err))
			r.views.ShowView(CommandOutputView)
			logger.WithError(err).Warn("pipeline stopped", "command", cmd.Name)
			break
		}
		result.Tree = out
		result.Completed++
		r.setWorking(out)
		r.line(fmt.Sprintf("[Playground] %s done", cmd.Name))
		r.publish(result.RunID, cmd, out)
	}

	result.Duration = time.Since(start)
	if result.Err != nil {
		r.record(trace.NewEvent(trace.EventTypeRunFail, result.RunID).
			WithCommand(result.Failed).
			WithError(result.Err).
			WithDuration(result.Duration))
		return result, result.Err
	}

	logger.Info("pipeline finished", "duration", result.Duration)
	r.record(trace.NewEvent(trace.EventTypeRunComplete, result.RunID).
		WithData("tree_digest", tree.Digest(result.Tree)).
		WithDuration(result.Duration))
	if onComplete != nil {
		onComplete(result)
	}
	return result, nil
}

func (r *Runner) runCommand(ctx context.Context, runID string, cmd Command, in tree.Tree) (tree.Tree, error) {
	r.line(fmt.Sprintf("[Playground] running %s", cmd.Name))
	r.record(trace.NewEvent(trace.EventTypeCommandStart, runID).WithCommand(cmd.Name).WithData("tool", cmd.Tool))

	start := time.Now()
	out, err := r.exec.Run(ctx, cmd.Tool, cmd.Args, in, func(_ worker.Stream, data []byte) {
		r.write(data)
	})
	if err != nil {
		r.record(trace.NewEvent(trace.EventTypeCommandFail, runID).
			WithCommand(cmd.Name).
			WithError(err).
			WithDuration(time.Since(start)))
		return nil, err
	}
	r.record(trace.NewEvent(trace.EventTypeCommandComplete, runID).
		WithCommand(cmd.Name).
		WithData("tree_digest", tree.Digest(out)).
		WithDuration(time.Since(start)))
	return out, nil
}

// publish extracts the product of cmd from out. Failures are logged and do
// not stop the run.
func (r *Runner) publish(runID string, cmd Command, out tree.Tree) {
	p := cmd.Product
	if p == nil {
		return
	}

	content, err := tree.GetString(out, p.Path)
	if err != nil {
		r.line(fmt.Sprintf("[Playground] %s: %s", cmd.Name, errors.MessageOf(err)))
		r.record(trace.NewEvent(trace.EventTypeProductFail, runID).WithCommand(cmd.Name).WithError(err))
		return
	}

	if p.Sink != nil {
		p.Sink(content)
	}
	r.record(trace.NewEvent(trace.EventTypeProduct, runID).
		WithCommand(cmd.Name).
		WithData("path", p.PathString()).
		WithData("digest", tree.DigestBytes([]byte(content))))

	if p.Derive == nil {
		return
	}
	res, err := p.Derive(content)
	if err != nil {
		r.line(fmt.Sprintf("[Playground] %s: failed to load %s: %s", cmd.Name, p.PathString(), errors.MessageOf(err)))
		r.record(trace.NewEvent(trace.EventTypeProductFail, runID).WithCommand(cmd.Name).WithError(err))
		return
	}
	r.replaceDerived(res)
}

// Close releases the derived resource held by the runner.
func (r *Runner) Close() error {
	return r.replaceDerived(nil)
}

func (r *Runner) begin(initial tree.Tree) bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return false
	}
	r.running = true
	r.working = initial
	r.lastByte = '\n'
	r.mu.Unlock()

	r.out.Reset()
	r.replaceDerived(nil)
	return true
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) setWorking(t tree.Tree) {
	r.mu.Lock()
	r.working = t
	r.mu.Unlock()
}

// replaceDerived closes the held resource and stores next in its place.
func (r *Runner) replaceDerived(next io.Closer) error {
	r.mu.Lock()
	prev := r.derived
	r.derived = next
	r.mu.Unlock()

	if prev == nil {
		return nil
	}
	if err := prev.Close(); err != nil {
		r.logger.WithError(err).Warn("failed to release derived resource")
		return err
	}
	return nil
}

// write appends raw tool output to the log.
func (r *Runner) write(data []byte) {
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	r.lastByte = data[len(data)-1]
	r.mu.Unlock()
	_, _ = r.out.Write(data)
}

// line appends msg as a complete line, starting a new one if tool output
// left the last line open.
func (r *Runner) line(msg string) {
	r.mu.Lock()
	open := r.lastByte != '\n'
	r.lastByte = '\n'
	r.mu.Unlock()

	if open {
		msg = "\n" + msg
	}
	_, _ = io.WriteString(r.out, msg+"\n")
}

func (r *Runner) record(e *trace.Event) {
	if r.trace == nil {
		return
	}
	if err := r.trace.Record(e); err != nil {
		r.logger.WithError(err).Debug("failed to record trace event")
	}
}
