package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLogStylesMarkersOnly(t *testing.T) {
	s := DefaultStyles()
	s.Marker = lipgloss.NewStyle().Transform(strings.ToUpper)
	s.Info = lipgloss.NewStyle().Transform(strings.ToLower)

	got := RenderLog(s, "[Playground] running swim\n[INFO] cached\nplain [Playground text\n")
	assert.Equal(t, "[PLAYGROUND] running swim\n[info] cached\nplain [Playground text\n", got)
}

type recorder struct {
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestSink(t *testing.T) {
	rec := &recorder{}
	sink := NewSink(rec)

	n, err := sink.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	sink.Reset()
	sink.ShowView(OutputView)

	assert.Equal(t, []tea.Msg{
		LogAppendMsg{Text: "hello"},
		LogResetMsg{},
		ViewMsg{Name: OutputView},
	}, rec.msgs)
}

func update(m *Model, msgs ...tea.Msg) *Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(*Model)
	}
	return m
}

func TestModelLog(t *testing.T) {
	m := update(NewModel("synth"),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		LogAppendMsg{Text: "[Playground] running yosys\n"},
		LogAppendMsg{Text: "ok\n"},
	)
	assert.Equal(t, "[Playground] running yosys\nok\n", m.Log())
	assert.True(t, m.Running())

	m = update(m, LogResetMsg{})
	assert.Empty(t, m.Log())
}

func TestModelViews(t *testing.T) {
	m := update(NewModel("synth"),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		ProductMsg{View: "verilog-product", Content: "module top;"},
		ProductMsg{View: "hardware-json", Content: "{}"},
	)
	assert.Equal(t, OutputView, m.Active())

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "hardware-json", m.Active())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "verilog-product", m.Active())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, OutputView, m.Active())
	m = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "verilog-product", m.Active())

	m = update(m, ViewMsg{Name: OutputView})
	assert.Equal(t, OutputView, m.Active())
}

func TestModelDone(t *testing.T) {
	m := update(NewModel("run"), RunDoneMsg{Err: errors.New("x"), Message: "manifest invalid"})
	assert.False(t, m.Running())
	assert.Contains(t, m.View(), "manifest invalid")

	m = update(NewModel("run"), RunDoneMsg{Duration: 1500 * time.Millisecond})
	assert.Contains(t, m.View(), "done in 1.5s")
}

func TestModelQuit(t *testing.T) {
	m := NewModel("run")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

type fakeController struct {
	outOfDate bool
	reloadErr error
	busy      bool
	reloads   int
	ran       []string
}

func (c *fakeController) Reload() (bool, error) {
	c.reloads++
	return c.outOfDate, c.reloadErr
}

func (c *fakeController) Run(action string) RunDoneMsg {
	c.ran = append(c.ran, action)
	if c.busy {
		return RunDoneMsg{Rejected: true, Message: "a pipeline is already running"}
	}
	return RunDoneMsg{Duration: time.Second}
}

// drain runs cmd and the commands it batches, returning every message
// except spinner ticks.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, drain(c)...)
		}
		return out
	case spinner.TickMsg:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

func press(m *Model, k string) (*Model, []tea.Msg) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	return next.(*Model), drain(cmd)
}

func TestModelRunsAttachedActionOnInit(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel("hdlplay")
	m.Attach(ctrl, []string{"build", "synth"}, "build")

	m = update(m, drain(m.Init())...)
	assert.Equal(t, []string{"build"}, ctrl.ran)
	assert.False(t, m.Running())
	assert.Contains(t, m.View(), "hdlplay build")
}

func TestModelRerunReloadsProject(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel("hdlplay")
	m.Attach(ctrl, []string{"build", "synth", "pnr"}, "build")
	m = update(m, drain(m.Init())...)

	m, msgs := press(m, "a")
	assert.Empty(t, msgs)
	assert.Equal(t, "synth", m.Action())
	assert.Contains(t, m.View(), "a: switch to pnr")

	ctrl.outOfDate = true
	m, msgs = press(m, "r")
	assert.True(t, m.Running())
	require.Equal(t, []tea.Msg{ReloadedMsg{OutOfDate: true}}, msgs)

	next, cmd := m.Update(msgs[0])
	m = next.(*Model)
	assert.True(t, m.OutOfDate())
	assert.Contains(t, m.View(), "products out of date")

	m = update(m, drain(cmd)...)
	assert.False(t, m.Running())
	assert.False(t, m.OutOfDate())
	assert.NotContains(t, m.View(), "products out of date")
	assert.Equal(t, []string{"build", "synth"}, ctrl.ran)
	assert.Equal(t, 1, ctrl.reloads)
}

func TestModelActionWrapsAround(t *testing.T) {
	m := NewModel("hdlplay")
	m.Attach(&fakeController{}, []string{"build", "synth"}, "synth")

	m, _ = press(m, "a")
	assert.Equal(t, "build", m.Action())
}

func TestModelRerunWhileRunningIsRejected(t *testing.T) {
	ctrl := &fakeController{busy: true}
	m := NewModel("hdlplay")
	m.Attach(ctrl, []string{"build"}, "build")

	m, msgs := press(m, "r")
	assert.Zero(t, ctrl.reloads, "project must not change under a running pipeline")
	require.Len(t, msgs, 1)

	m = update(m, msgs...)
	assert.True(t, m.Running())
	assert.Contains(t, m.View(), "a pipeline is already running")
}

func TestModelReloadFailure(t *testing.T) {
	ctrl := &fakeController{reloadErr: errors.New("src/main.spade not found")}
	m := NewModel("hdlplay")
	m.Attach(ctrl, []string{"build"}, "build")
	m = update(m, RunDoneMsg{})

	m, msgs := press(m, "r")
	m = update(m, msgs...)
	assert.False(t, m.Running())
	assert.Contains(t, m.View(), "src/main.spade not found")
	assert.Empty(t, ctrl.ran)
}

func TestModelRerunKeyNeedsController(t *testing.T) {
	m := update(NewModel("run"), RunDoneMsg{})
	m, msgs := press(m, "r")
	assert.Empty(t, msgs)
	assert.False(t, m.Running())
}
