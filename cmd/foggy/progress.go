package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dd0wney/cluso-foggy/pkg/sweep"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	runBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 2).
			MarginLeft(2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "stop"),
	),
}

type eventMsg sweep.Event

type finishedMsg struct {
	runs int
	err  error
}

type tickMsg time.Time

// progressModel shows the sweep's overall progress and the latest step of
// each active run.
type progressModel struct {
	total    int
	done     int
	failed   int
	active   map[int]sweep.Event
	order    []int
	bar      progress.Model
	spinner  spinner.Model
	cancel   context.CancelFunc
	stopping bool
	finished bool
	err      error
	start    time.Time
	now      time.Time
}

func newProgressModel(total int, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF"))
	now := time.Now()
	return progressModel{
		total:   total,
		active:  make(map[int]sweep.Event),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		spinner: s,
		cancel:  cancel,
		start:   now,
		now:     now,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) && !m.stopping {
			m.stopping = true
			m.cancel()
		}
		return m, nil

	case eventMsg:
		idx := msg.Run.Index
		if msg.Done {
			if msg.Err != nil {
				m.failed++
			} else {
				m.done++
			}
			delete(m.active, idx)
			m.order = remove(m.order, idx)
			return m, nil
		}
		if _, ok := m.active[idx]; !ok {
			m.order = append(m.order, idx)
		}
		m.active[idx] = sweep.Event(msg)
		return m, nil

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-8, 20), 80)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// fraction counts finished runs plus the partial progress of active ones.
func (m progressModel) fraction() float64 {
	if m.total == 0 {
		return 1
	}
	f := float64(m.done + m.failed)
	for _, ev := range m.active {
		f += ev.Step.Fraction
	}
	return min(f/float64(m.total), 1)
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("foggy march"))
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	fmt.Fprintf(&b, "\n\n  %s %d/%d  %s %d  %s %s\n",
		labelStyle.Render("runs"), m.done, m.total,
		labelStyle.Render("failed"), m.failed,
		labelStyle.Render("elapsed"), m.now.Sub(m.start).Truncate(time.Second))

	if len(m.order) > 0 {
		var lines []string
		for _, idx := range m.order {
			lines = append(lines, runLine(m.spinner.View(), m.active[idx]))
		}
		b.WriteString("\n")
		b.WriteString(runBoxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	switch {
	case m.finished && m.err != nil:
		b.WriteString("\n  " + errorStyle.Render("failed: "+m.err.Error()) + "\n")
	case m.finished:
		b.WriteString("\n  " + successStyle.Render("done") + "\n")
	case m.stopping:
		b.WriteString(helpStyle.Render("stopping..."))
	default:
		b.WriteString(helpStyle.Render(keys.Quit.Help().Key + ": " + keys.Quit.Help().Desc))
	}
	return b.String()
}

func runLine(spin string, ev sweep.Event) string {
	s := ev.Step
	line := fmt.Sprintf("%s run %d  %s  step %d/%d  walkers %d",
		spin, ev.Run.Index, ev.Run.Policy, s.Step+1, s.TimePoints, s.Walkers)
	if s.Rejected > 0 {
		line += fmt.Sprintf("  rejected %d", s.Rejected)
	}
	if s.Backlog > 0 || s.Dropped > 0 {
		line += fmt.Sprintf("  backlog %d  dropped %d", s.Backlog, s.Dropped)
	}
	return line
}

func remove(xs []int, v int) []int {
	for i, x := range xs {
		if x == v {
			return append(xs[:i], xs[i+1:]...)
		}
	}
	return xs
}

// runWithProgress runs the sweep under a progress view drawn on out.
func runWithProgress(ctx context.Context, runner *sweep.Runner, total int, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(total, cancel), tea.WithInput(in), tea.WithOutput(out))
	prev := runner.Progress
	runner.Progress = func(ev sweep.Event) {
		if prev != nil {
			prev(ev)
		}
		p.Send(eventMsg(ev))
	}

	go func() {
		records, err := runner.Run(ctx)
		p.Send(finishedMsg{runs: len(records), err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return fmt.Errorf("progress view: %w", err)
	}
	return final.(progressModel).err
}
