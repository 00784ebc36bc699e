// Package tui renders one page's auto-refresh widget in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/page"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
)

// IntervalStep is the change applied by the interval keys.
const IntervalStep = time.Second

const maxDataLines = 20

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	onStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3fb950"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#484f58")).Italic(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
)

var dataStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#30363d")).
	Padding(0, 1)

type activeMsg bool

type intervalMsg time.Duration

type enabledMsg struct {
	enabled bool
	reason  string
}

type dataMsg struct{ snap *poll.Snapshot }

type errMsg struct{ err error }

// Model is the Bubble Tea model of a page widget.
type Model struct {
	ctx  context.Context
	ctl  *page.Controller
	keys KeyMap
	help help.Model

	active   bool
	interval time.Duration
	enabled  bool
	reason   string
	last     *poll.Snapshot
	err      error
	width    int

	attach func() tea.Msg
}

// New creates a model driving ctl.
func New(ctx context.Context, ctl *page.Controller) Model {
	s := ctl.Settings()
	return Model{
		ctx:      ctx,
		ctl:      ctl,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		active:   s.Active,
		interval: s.Interval,
		enabled:  true,
	}
}

func (m Model) Init() tea.Cmd {
	if m.attach == nil {
		return nil
	}
	return m.attach
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case activeMsg:
		m.active = bool(msg)
	case intervalMsg:
		m.interval = time.Duration(msg)
	case enabledMsg:
		m.enabled = msg.enabled
		m.reason = msg.reason
	case dataMsg:
		m.last = msg.snap
		m.err = nil
	case errMsg:
		m.err = msg.err
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		return m, m.apply(!m.active, m.interval)
	case key.Matches(msg, m.keys.IntervalUp):
		return m, m.apply(m.active, m.interval+IntervalStep)
	case key.Matches(msg, m.keys.IntervalDown):
		iv := m.interval - IntervalStep
		if iv < 0 {
			iv = 0
		}
		return m, m.apply(m.active, iv)
	case key.Matches(msg, m.keys.Refresh):
		ctl, ctx := m.ctl, m.ctx
		return m, func() tea.Msg {
			if err := ctl.RefreshNow(ctx); err != nil {
				return errMsg{err}
			}
			return nil
		}
	}
	return m, nil
}

// apply submits the widget values the way the web form does.
func (m Model) apply(active bool, interval time.Duration) tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		if err := ctl.ApplyForm(ctx, active, interval); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("autorefresh · " + m.ctl.Name()))
	b.WriteString("\n\n")

	state := offStyle.Render("[ ] auto refresh")
	if m.active {
		state = onStyle.Render("[x] auto refresh")
	}
	if !m.enabled {
		state = disabledStyle.Render("[-] auto refresh (" + m.reason + ")")
	}
	fmt.Fprintf(&b, "%s   every %s\n", state, formatSeconds(m.interval))

	if m.last != nil {
		fmt.Fprintf(&b, "last refresh %s  request %s\n",
			m.last.FetchedAt.Local().Format("15:04:05"), m.last.RequestID)
		b.WriteString(dataStyle.Render(truncateLines(snapshotText(m.last), maxDataLines)))
		b.WriteString("\n")
	} else {
		b.WriteString(offStyle.Render("no data yet"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%gs", d.Seconds())
}

func snapshotText(s *poll.Snapshot) string {
	if len(s.Data) > 0 {
		return string(s.Data)
	}
	return s.Raw
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n…"
}

// View mirrors a controller onto a running program.
type View struct {
	send func(tea.Msg)
}

// NewView creates a View delivering messages through send.
func NewView(send func(tea.Msg)) *View {
	return &View{send: send}
}

func (v *View) SyncActive(active bool) { v.send(activeMsg(active)) }

func (v *View) SyncInterval(interval time.Duration) { v.send(intervalMsg(interval)) }

func (v *View) SyncActiveEnabled(enabled bool, reason string) {
	v.send(enabledMsg{enabled: enabled, reason: reason})
}

// Program runs the widget of one page.
type Program struct {
	prog *tea.Program

	mu     sync.Mutex
	detach func()
}

// NewProgram creates a program for ctl. The view is attached once the
// program is running.
func NewProgram(ctx context.Context, ctl *page.Controller, opts ...tea.ProgramOption) *Program {
	p := &Program{}
	m := New(ctx, ctl)
	m.attach = func() tea.Msg {
		detach := ctl.Attach(NewView(p.prog.Send))
		p.mu.Lock()
		p.detach = detach
		p.mu.Unlock()
		return nil
	}
	p.prog = tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	return p
}

// Publish shows a fetched snapshot.
func (p *Program) Publish(s *poll.Snapshot) {
	p.prog.Send(dataMsg{snap: s})
}

// Run blocks until the user quits or the context is cancelled.
func (p *Program) Run() error {
	_, err := p.prog.Run()

	p.mu.Lock()
	if p.detach != nil {
		p.detach()
	}
	p.mu.Unlock()

	if err != nil && !isContextDone(err) {
		return err
	}
	return nil
}

func isContextDone(err error) bool {
	return errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled)
}
