package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/felixgeelhaar/hdlplay/internal/depcache"
	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/tool"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// PanicMessage is reported when a tool panics.
const PanicMessage = "executor failed unexpectedly, see executor log"

// Executor runs tools on behalf of a controller. It owns the tool registry
// and the dependency-resolution cache. Commands run one at a time even when
// several connections share the executor, since tools write into the same
// scratch area and the cache holds a single entry.
type Executor struct {
	runMu    sync.Mutex
	registry *tool.Registry
	cache    *depcache.Cache
	logger   *log.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithCache replaces the dependency-resolution cache.
func WithCache(c *depcache.Cache) ExecutorOption {
	return func(e *Executor) { e.cache = c }
}

// NewExecutor creates an executor dispatching on registry.
func NewExecutor(registry *tool.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		cache:    depcache.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.OrDefault(e.logger).WithComponent("executor")
	return e
}

// Cache returns the dependency-resolution cache.
func (e *Executor) Cache() *depcache.Cache {
	return e.cache
}

// Tools returns the registered tool identifiers.
func (e *Executor) Tools() []string {
	return e.registry.Names()
}

// Serve processes requests from in one at a time, writing responses to
// out, until in is closed or ctx is done.
func (e *Executor) Serve(ctx context.Context, in <-chan Request, out chan<- Response) error {
	send := func(r Response) {
		select {
		case out <- r:
		case <-ctx.Done():
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-in:
			if !ok {
				return nil
			}
			e.Handle(ctx, req, send)
		}
	}
}

// Handle dispatches one request. For a RunCommand, emit receives every
// output chunk as it is written followed by exactly one terminal response.
// LoadPackages produces no response.
func (e *Executor) Handle(ctx context.Context, req Request, emit func(Response)) {
	switch r := req.(type) {
	case LoadPackages:
		e.logger.Debug("ignoring package preload", "packages", r.Names)
	case RunCommand:
		e.runMu.Lock()
		defer e.runMu.Unlock()
		emit(e.run(ctx, r, emit))
	default:
		e.logger.Warn("unsupported request", "type", fmt.Sprintf("%T", req))
		emit(CommandFailure{Message: fmt.Sprintf("unsupported request %T", req)})
	}
}

func (e *Executor) run(ctx context.Context, r RunCommand, emit func(Response)) (resp Response) {
	t, ok := e.registry.Lookup(r.Tool)
	if !ok {
		err := errors.NewUnknownToolError(r.Tool)
		e.logger.WithError(err).Warn("rejecting command")
		return CommandFailure{Message: errors.MessageOf(err)}
	}
	if r.Tool == tool.SwimPrepare {
		t = e.cache.Wrap(t)
	}

	s := &stream{emit: emit}
	defer s.close()
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("tool panicked",
				"tool", r.Tool,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			resp = CommandFailure{Message: PanicMessage}
		}
	}()

	logger := e.logger.With("tool", r.Tool)
	logger.Debug("running tool", "args", r.Args, "files", tree.Count(r.Files))

	out, err := t.Run(ctx, r.Args, tree.Clone(r.Files), tool.IO{
		Stdout: s.writer(false),
		Stderr: s.writer(true),
	})
	if err != nil {
		logger.WithError(err).Info("tool failed")
		return CommandFailure{Message: errors.MessageOf(err)}
	}
	if out == nil {
		out = tree.Tree{}
	}
	logger.Debug("tool finished", "files", tree.Count(out))
	return CommandDone{Tree: out}
}

// stream turns tool writes into chunk responses. Writes made after the
// tool returned are dropped so the terminal response is always last.
type stream struct {
	mu     sync.Mutex
	emit   func(Response)
	closed bool
}

func (s *stream) writer(stderr bool) *chunkWriter {
	return &chunkWriter{s: s, stderr: stderr}
}

func (s *stream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type chunkWriter struct {
	s      *stream
	stderr bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := append([]byte(nil), p...)

	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.closed {
		return len(p), nil
	}
	if w.stderr {
		w.s.emit(StderrChunk{Data: data})
	} else {
		w.s.emit(StdoutChunk{Data: data})
	}
	return len(p), nil
}
