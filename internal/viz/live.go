package viz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/experiment"
	"github.com/san-kum/beatsim/internal/splitting"
)

const (
	canvasWidth     = 60
	canvasHeight    = 12
	historyCapacity = 600
	maxStepsPerTick = 256
	frameInterval   = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model drives an experiment from the Bubble Tea loop, a few steps per
// frame.
type Model struct {
	exp    *experiment.Experiment
	run    *splitting.Run
	total  dynamo.Interval
	canvas *Canvas

	// Plot range of the potential, widened as values are seen.
	lo, hi float64

	stepsPerTick int
	running      bool
	done         bool
	err          error
	theme        int
	showHelp     bool
}

// NewModel starts exp; the first step is taken on the first frame.
func NewModel(ctx context.Context, exp *experiment.Experiment) (Model, error) {
	run, err := exp.Start(ctx)
	if err != nil {
		return Model{}, err
	}
	m := Model{
		exp:          exp,
		run:          run,
		total:        exp.Config().Interval(),
		canvas:       NewCanvas(canvasWidth, canvasHeight),
		lo:           math.Inf(1),
		hi:           math.Inf(-1),
		stepsPerTick: 1,
		running:      true,
	}
	m.widen(exp.Potential())
	return m, nil
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "+", "=":
			m.stepsPerTick = min(maxStepsPerTick, 2*m.stepsPerTick)
		case "-", "_":
			m.stepsPerTick = max(1, m.stepsPerTick/2)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.done {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for i := 0; i < m.stepsPerTick; i++ {
		if !m.run.Next() {
			m.done = true
			m.err = m.run.Err()
			return
		}
	}
	m.widen(m.exp.Potential())
}

func (m *Model) widen(v []float64) {
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			m.lo, m.hi = math.Min(m.lo, x), math.Max(m.hi, x)
		}
	}
}

// Done reports whether the run has ended; Err tells how.
func (m Model) Done() bool { return m.done }
func (m Model) Err() error { return m.err }

func (m Model) status(st styles) string {
	switch {
	case m.err != nil:
		return st.failed.Render("FAILED: " + m.err.Error())
	case m.done:
		return st.done.Render("DONE")
	case !m.running:
		return st.paused.Render("PAUSED")
	}
	return st.running.Render("RUNNING")
}

func (m Model) View() string {
	theme := Themes[m.theme]
	st := theme.styles()
	cfg := m.exp.Config()
	grid := m.exp.Grid()
	v := m.exp.Potential()

	var field string
	if grid.Ny == 1 {
		m.canvas.Profile(v, m.lo, m.hi)
		field = m.canvas.String()
	} else {
		field = Heatmap(v, grid.Nx, grid.Ny, m.lo, m.hi)
	}
	fieldView := st.field.Render(field)

	now := m.run.Interval().T1
	if m.run.StepsTaken() == 0 {
		now = m.total.T0
	}
	progress := (now - m.total.T0) / m.total.Dt()

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(cfg.Name)) + "\n")
	s.WriteString(m.status(st) + "\n\n")
	s.WriteString(ProgressBar(progress, 30) + "\n\n")
	s.WriteString(st.label.Render("Time") + st.value.Render(fmt.Sprintf("%.2f / %.2f ms", now, m.total.T1)) + "\n")
	s.WriteString(st.label.Render("Steps") + st.value.Render(fmt.Sprintf("%d (x%d/frame)", m.run.StepsTaken(), m.stepsPerTick)) + "\n")
	s.WriteString(st.label.Render("Cell") + st.value.Render(cfg.Cell) + "\n")
	s.WriteString(st.label.Render("Theta") + st.value.Render(fmt.Sprintf("%g", cfg.Splitting.Theta)) + "\n")
	s.WriteString(st.label.Render("v range") + st.value.Render(fmt.Sprintf("[%.1f, %.1f]", m.lo, m.hi)) + "\n")

	if res := m.exp.Result(); res != nil && len(res.Traces) > 1 {
		from := max(0, len(res.Traces)-historyCapacity)
		trace := make([]float64, 0, len(res.Traces)-from)
		for _, row := range res.Traces[from:] {
			trace = append(trace, row[0])
		}
		s.WriteString(st.graph.Render(PlotTraces([][]float64{trace}, "v at "+res.Probes[0].Name, 40, 6)) + "\n")

		names := make([]string, 0, len(res.Metrics))
		for k := range res.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			s.WriteString(st.label.Render(truncate(k, 13)) + st.value.Render(fmt.Sprintf("%.4g", res.Metrics[k])) + "\n")
		}
	}
	s.WriteString(st.help.Render("SP:Pause +/-:Speed T:Theme ?:Help Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, fieldView, s.String())
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  + / -    - Double/halve steps/frame ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// RunLive runs the view until the user quits.
func RunLive(ctx context.Context, exp *experiment.Experiment) error {
	m, err := NewModel(ctx, exp)
	if err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
