// Package tui renders a pipeline run in the terminal: the live combined
// log, the products it publishes and the final status.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// OutputView is the view showing the combined log.
const OutputView = "command-output"

// LogAppendMsg appends text to the log
type LogAppendMsg struct {
	Text string
}

// LogResetMsg clears the log
type LogResetMsg struct{}

// ViewMsg switches the active view
type ViewMsg struct {
	Name string
}

// ProductMsg publishes a product into a view
type ProductMsg struct {
	View    string
	Content string
}

// RunDoneMsg reports the end of the run. A rejected run never started
// because another one was still in progress.
type RunDoneMsg struct {
	Err      error
	Message  string
	Duration time.Duration
	Rejected bool
}

// ReloadedMsg reports that the project was read again before a re-run.
type ReloadedMsg struct {
	OutOfDate bool
	Err       error
}

// Controller runs actions on behalf of the model.
type Controller interface {
	// Reload reads the project again and reports whether the products of
	// the previous run no longer match it.
	Reload() (outOfDate bool, err error)
	Run(action string) RunDoneMsg
}

type keyMap struct {
	Quit   key.Binding
	Next   key.Binding
	Prev   key.Binding
	Rerun  key.Binding
	Action key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "right"),
		key.WithHelp("tab", "next view"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "left"),
		key.WithHelp("shift+tab", "previous view"),
	),
	Rerun: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "re-run"),
	),
	Action: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "next action"),
	),
}

// Model is the bubbletea model of a pipeline run.
type Model struct {
	title    string
	log      strings.Builder
	products map[string]string
	active   string

	ctrl    Controller
	actions []string
	action  string

	running   bool
	outOfDate bool
	notice    string
	err       error
	message   string
	duration  time.Duration

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	quitting bool
	styles   Styles
}

// NewModel creates a model for a run titled title.
func NewModel(title string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		title:    title,
		products: make(map[string]string),
		active:   OutputView,
		running:  true,
		spinner:  sp,
		styles:   DefaultStyles(),
	}
}

// Attach lets the model run actions through ctrl. action is run when the
// program starts; the action key cycles through actions.
func (m *Model) Attach(ctrl Controller, actions []string, action string) {
	m.ctrl = ctrl
	m.actions = actions
	m.action = action
}

// Init starts the spinner and, when a controller is attached, the first run
func (m *Model) Init() tea.Cmd {
	if m.ctrl == nil {
		return m.spinner.Tick
	}
	return tea.Batch(m.spinner.Tick, m.run())
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.cycle(1)
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.cycle(-1)
			return m, nil
		case key.Matches(msg, keys.Rerun) && m.ctrl != nil:
			return m, m.rerun()
		case key.Matches(msg, keys.Action) && len(m.actions) > 0:
			m.action = m.nextAction()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LogAppendMsg:
		m.log.WriteString(msg.Text)
		m.refresh()
		return m, nil

	case LogResetMsg:
		m.log.Reset()
		m.refresh()
		return m, nil

	case ViewMsg:
		m.active = msg.Name
		m.refresh()
		return m, nil

	case ProductMsg:
		m.products[msg.View] = msg.Content
		m.refresh()
		return m, nil

	case ReloadedMsg:
		if msg.Err != nil {
			m.running = false
			m.err = msg.Err
			m.message = errors.MessageOf(msg.Err)
			return m, nil
		}
		m.outOfDate = msg.OutOfDate
		return m, m.run()

	case RunDoneMsg:
		if msg.Rejected {
			m.notice = msg.Message
			return m, nil
		}
		m.running = false
		if msg.Err == nil {
			m.outOfDate = false
		}
		m.err = msg.Err
		m.message = msg.Message
		m.duration = msg.Duration
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.heading()))
	b.WriteString("  ")
	b.WriteString(m.status())
	if m.outOfDate {
		b.WriteString("  ")
		b.WriteString(m.styles.Warning.Render("products out of date"))
	}
	if m.notice != "" {
		b.WriteString("  ")
		b.WriteString(m.styles.Warning.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.tabs())
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.content())
	}
	b.WriteString(m.styles.Help.Render(m.help()))
	return b.String()
}

// Action returns the action the next run executes
func (m *Model) Action() string {
	return m.action
}

// OutOfDate reports whether the shown products predate the project files
func (m *Model) OutOfDate() bool {
	return m.outOfDate
}

// Log returns the accumulated log text
func (m *Model) Log() string {
	return m.log.String()
}

// Active returns the active view
func (m *Model) Active() string {
	return m.active
}

// Running reports whether the run is still in progress
func (m *Model) Running() bool {
	return m.running
}

func (m *Model) status() string {
	switch {
	case m.running:
		return m.spinner.View() + m.styles.Status.Render(" running")
	case m.err != nil:
		return m.styles.Error.Render("✗ " + m.message)
	default:
		return m.styles.Success.Render(fmt.Sprintf("✓ done in %s", m.duration.Round(time.Millisecond)))
	}
}

func (m *Model) heading() string {
	if m.action == "" {
		return m.title
	}
	return m.title + " " + m.action
}

func (m *Model) help() string {
	if m.ctrl == nil {
		return "tab: switch view • ↑/↓: scroll • q: quit"
	}
	next := m.action
	if len(m.actions) > 0 {
		next = m.nextAction()
	}
	return fmt.Sprintf("r: re-run • a: switch to %s • tab: switch view • ↑/↓: scroll • q: quit", next)
}

// rerun reloads the project and runs the current action. While a run is in
// progress the request goes straight to the controller, which rejects it.
func (m *Model) rerun() tea.Cmd {
	m.notice = ""
	if m.running {
		return m.run()
	}
	m.running = true
	m.err = nil
	m.message = ""
	ctrl := m.ctrl
	reload := func() tea.Msg {
		stale, err := ctrl.Reload()
		return ReloadedMsg{OutOfDate: stale, Err: err}
	}
	return tea.Batch(m.spinner.Tick, reload)
}

func (m *Model) run() tea.Cmd {
	ctrl, action := m.ctrl, m.action
	return func() tea.Msg {
		return ctrl.Run(action)
	}
}

func (m *Model) nextAction() string {
	for i, a := range m.actions {
		if a == m.action {
			return m.actions[(i+1)%len(m.actions)]
		}
	}
	return m.actions[0]
}

func (m *Model) views() []string {
	views := make([]string, 0, len(m.products)+1)
	for v := range m.products {
		views = append(views, v)
	}
	sort.Strings(views)
	return append([]string{OutputView}, views...)
}

func (m *Model) cycle(step int) {
	views := m.views()
	idx := 0
	for i, v := range views {
		if v == m.active {
			idx = i
		}
	}
	m.active = views[(idx+step+len(views))%len(views)]
	m.refresh()
}

func (m *Model) tabs() string {
	var parts []string
	for _, v := range m.views() {
		if v == m.active {
			parts = append(parts, m.styles.ActiveTab.Render(v))
		} else {
			parts = append(parts, m.styles.Tab.Render(v))
		}
	}
	return strings.Join(parts, " ")
}

func (m *Model) content() string {
	if m.active == OutputView {
		return RenderLog(m.styles, m.log.String())
	}
	return m.products[m.active]
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.content())
	if m.active == OutputView {
		m.viewport.GotoBottom()
	}
}
