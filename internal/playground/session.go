// Package playground holds the state of one editing session: the source
// and manifest being edited, the action presets that turn them into
// toolchain pipelines, and the products those pipelines publish.
package playground

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/pipeline"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// DemoSource is the source a new session starts with.
const DemoSource = `fn top(a: int<8>, b: int<8>) -> int<9> {
  a + b
}
`

// DemoManifest is the manifest a new session starts with.
const DemoManifest = `name = "playground"
`

// Session is one playground editing session.
type Session struct {
	runner *pipeline.Runner

	mu          sync.Mutex
	source      string
	manifest    string
	constraints string
	products    map[string]string
	outOfDate   bool
	simulation  *Simulation
	onProduct   func(view, content string)
}

// NewSession creates a session with the demo project.
func NewSession(runner *pipeline.Runner) *Session {
	return &Session{
		runner:   runner,
		source:   DemoSource,
		manifest: DemoManifest,
		products: make(map[string]string),
	}
}

// SetSource replaces the source text. Products of earlier runs become out
// of date.
func (s *Session) SetSource(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text != s.source && len(s.products) > 0 {
		s.outOfDate = true
	}
	s.source = text
}

// SetManifest replaces the manifest text.
func (s *Session) SetManifest(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text != s.manifest && len(s.products) > 0 {
		s.outOfDate = true
	}
	s.manifest = text
}

// SetConstraints sets the board constraints used by place and route.
func (s *Session) SetConstraints(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraints = text
}

// Source returns the current source text.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Manifest returns the current manifest text.
func (s *Session) Manifest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

// SeedTree builds the initial working tree from the session text.
func (s *Session) SeedTree() tree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := tree.Tree{
		"src":       tree.Tree{"playground.spade": tree.FileString(s.source)},
		"swim.toml": tree.FileString(s.manifest),
	}
	if s.constraints != "" {
		t["board.lpf"] = tree.FileString(s.constraints)
	}
	return t
}

// Commands returns the pipeline of action a.
func (s *Session) Commands(a Action) ([]pipeline.Command, error) {
	cmds := s.commands(a)
	if cmds == nil {
		known := make([]string, 0, len(Actions()))
		for _, k := range Actions() {
			known = append(known, string(k))
		}
		return nil, errors.NewUnknownActionError(string(a), known)
	}
	return cmds, nil
}

// Run executes action a on the current text. onComplete is called when
// every command succeeded.
func (s *Session) Run(ctx context.Context, a Action, onComplete func(*pipeline.Result)) (*pipeline.Result, error) {
	cmds, err := s.Commands(a)
	if err != nil {
		return nil, err
	}
	if s.runner.Running() {
		return nil, errors.NewAlreadyRunningError()
	}

	s.mu.Lock()
	s.outOfDate = false
	s.mu.Unlock()

	return s.runner.Run(ctx, cmds, s.SeedTree(), onComplete)
}

// OnProduct registers fn to be called with every product as it is
// published.
func (s *Session) OnProduct(fn func(view, content string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProduct = fn
}

// Product returns the latest product shown in view.
func (s *Session) Product(view string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[view]
	return p, ok
}

// Views returns the views that hold a product, sorted.
func (s *Session) Views() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]string, 0, len(s.products))
	for v := range s.products {
		views = append(views, v)
	}
	sort.Strings(views)
	return views
}

// ProductsOutOfDate reports whether the text changed since the products
// were built.
func (s *Session) ProductsOutOfDate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outOfDate
}

// Simulation returns the model of the last simulate run, or nil once it
// has been released.
func (s *Session) Simulation() *Simulation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.simulation == nil || s.simulation.Closed() {
		return nil
	}
	return s.simulation
}

// Close releases the session's derived resources.
func (s *Session) Close() error {
	return s.runner.Close()
}

func (s *Session) product(path []string, view string, derive func(string) (io.Closer, error)) *pipeline.Product {
	return &pipeline.Product{
		Path: path,
		View: view,
		Sink: func(content string) {
			s.mu.Lock()
			s.products[view] = content
			hook := s.onProduct
			s.mu.Unlock()
			if hook != nil {
				hook(view, content)
			}
		},
		Derive: derive,
	}
}

func (s *Session) deriveSimulation(header string) (io.Closer, error) {
	sim, err := ParseModel("top", header)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.simulation = sim
	s.mu.Unlock()
	return sim, nil
}
