package pipeline

import (
	"bytes"
	"io"
	"sync"
)

// CommandOutputView is the view showing the combined log.
const CommandOutputView = "command-output"

// LogSink accumulates the combined output of a run.
type LogSink interface {
	io.Writer
	Reset()
}

// ViewSwitcher changes the view the UI shows.
type ViewSwitcher interface {
	ShowView(name string)
}

// ViewFunc adapts a function to ViewSwitcher.
type ViewFunc func(name string)

// ShowView calls f.
func (f ViewFunc) ShowView(name string) {
	f(name)
}

type noopViews struct{}

func (noopViews) ShowView(string) {}

// Buffer is an in-memory LogSink safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	onChange func()
}

// NewBuffer creates an empty buffer. onChange, if set, is called after
// every write or reset.
func NewBuffer(onChange func()) *Buffer {
	return &Buffer{onChange: onChange}
}

// Write appends p.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	n, err := b.buf.Write(p)
	b.mu.Unlock()
	b.changed()
	return n, err
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
	b.changed()
}

// String returns the accumulated text.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *Buffer) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

// writerSink appends to an io.Writer that cannot be cleared.
type writerSink struct {
	w io.Writer
}

// WriterSink adapts w to a LogSink whose Reset does nothing, for output
// streams such as a terminal.
func WriterSink(w io.Writer) LogSink {
	return writerSink{w: w}
}

func (s writerSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s writerSink) Reset()                      {}
