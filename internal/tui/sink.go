package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards pipeline log output and view switches to a program. It
// implements pipeline.LogSink and pipeline.ViewSwitcher.
type Sink struct {
	to Sender
}

// NewSink creates a sink sending to p.
func NewSink(p Sender) *Sink {
	return &Sink{to: p}
}

// Write sends p as a LogAppendMsg.
func (s *Sink) Write(p []byte) (int, error) {
	s.to.Send(LogAppendMsg{Text: string(p)})
	return len(p), nil
}

// Reset sends a LogResetMsg.
func (s *Sink) Reset() {
	s.to.Send(LogResetMsg{})
}

// ShowView sends a ViewMsg.
func (s *Sink) ShowView(name string) {
	s.to.Send(ViewMsg{Name: name})
}
