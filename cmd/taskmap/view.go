package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taskmap/internal/engine"
	"taskmap/internal/types"
	"taskmap/internal/viewport"
)

// World units covered by one terminal cell. Cells are about twice as tall
// as they are wide.
const (
	cellWidth  = 10.0
	cellHeight = 20.0
)

const watchDebounce = 150 * time.Millisecond

var watchTasks bool

var viewCmd = &cobra.Command{
	Use:   "view [tasks-file]",
	Short: "Watch the layout settle in the terminal",
	Long: `Animates the layout in the terminal. With --watch the tasks file is
reloaded whenever it changes and the layout adapts in place.

Keys: space pause, r reheat, f fit all, a focus active task, ? help,
+/- zoom, arrows pan, q quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runViewCmd,
}

func init() {
	viewCmd.Flags().BoolVarP(&watchTasks, "watch", "w", false, "Reload the tasks file when it changes")
}

// termSize is the canvas size reported to the viewport math.
type termSize struct {
	mu         sync.Mutex
	cols, rows int
}

func (s *termSize) set(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols, s.rows = cols, rows
}

func (s *termSize) Dimensions() (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cols <= 0 || s.rows <= 0 {
		return 0, 0, false
	}
	return float64(s.cols) * cellWidth, float64(s.rows) * cellHeight, true
}

type frameMsg time.Time

type tasksChangedMsg struct{}

type tasksLoadedMsg struct {
	tasks []types.Task
	err   error
}

type viewModel struct {
	eng      *engine.Engine
	target   *viewport.StaticTarget
	size     *termSize
	path     string
	interval time.Duration

	width, height int
	fitted        bool
	paused        bool
	status        string
	help          help.Model
}

// --- Key bindings ---

type keyMap struct {
	Quit    key.Binding
	Pause   key.Binding
	Reheat  key.Binding
	Fit     key.Binding
	Focus   key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
	Reheat:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reheat")),
	Fit:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fit all")),
	Focus:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "focus active")),
	ZoomIn:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
	Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "pan left")),
	Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "pan right")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "pan up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "pan down")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Reheat, k.Fit, k.Focus, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Reheat, k.Fit, k.Focus},
		{k.ZoomIn, k.ZoomOut, k.Left, k.Right, k.Up, k.Down},
		{k.Help, k.Quit},
	}
}

func newViewModel(e *engine.Engine, target *viewport.StaticTarget, size *termSize, path string, interval time.Duration) viewModel {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return viewModel{eng: e, target: target, size: size, path: path, interval: interval, help: help.New()}
}

func (m viewModel) Init() tea.Cmd {
	return nextFrame(m.interval)
}

func nextFrame(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func loadTasksCmd(path string) tea.Cmd {
	return func() tea.Msg {
		tasks, err := loadTasks(path)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, keys.Reheat):
			m.eng.Restart()
			m.status = "reheated"
		case key.Matches(msg, keys.Fit):
			m.status = errText(m.eng.FitAll(true))
		case key.Matches(msg, keys.Focus):
			m.status = errText(m.eng.FocusActive(true))
		case key.Matches(msg, keys.ZoomIn):
			m.zoom(1.25)
		case key.Matches(msg, keys.ZoomOut):
			m.zoom(0.8)
		case key.Matches(msg, keys.Left):
			m.pan(-8, 0)
		case key.Matches(msg, keys.Right):
			m.pan(8, 0)
		case key.Matches(msg, keys.Up):
			m.pan(0, -4)
		case key.Matches(msg, keys.Down):
			m.pan(0, 4)
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.size.set(m.width, m.canvasRows())
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.size.set(m.width, m.canvasRows())
		if !m.fitted {
			m.fitted = m.eng.FitAll(false) == nil
		}

	case frameMsg:
		if !m.paused {
			m.eng.Tick()
		}
		m.eng.Camera().Step(time.Time(msg))
		return m, nextFrame(m.interval)

	case tasksChangedMsg:
		return m, loadTasksCmd(m.path)

	case tasksLoadedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			break
		}
		if err := m.eng.SetTasks(msg.tasks, nil); err != nil {
			m.status = firstLine(err.Error())
		} else {
			m.status = fmt.Sprintf("reloaded %d tasks", len(msg.tasks))
		}
	}
	return m, nil
}

func (m *viewModel) zoom(factor float64) {
	v := m.target.Viewport()
	v.Zoom *= factor
	m.eng.Camera().TransitionToViewport(v, 0, viewport.Linear)
}

// pan moves the view by the given number of cells.
func (m *viewModel) pan(cols, rows float64) {
	v := m.target.Viewport()
	v.X += cols * cellWidth / v.Zoom
	v.Y += rows * cellHeight / v.Zoom
	m.eng.Camera().TransitionToViewport(v, 0, viewport.Linear)
}

func (m viewModel) canvasRows() int {
	return max(0, m.height-1-lipgloss.Height(m.footer()))
}

func (m viewModel) footer() string {
	if m.status != "" {
		return dimStyle.Render(firstLine(m.status))
	}
	return m.help.View(keys)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	nodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A6E3A1"))

	pinnedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45475A"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))
)

type cellKind uint8

const (
	cellBlank cellKind = iota
	cellLink
	cellNode
	cellPinned
	cellActive
	cellLabel
)

func (k cellKind) style() lipgloss.Style {
	switch k {
	case cellLink:
		return linkStyle
	case cellNode:
		return nodeStyle
	case cellPinned:
		return pinnedStyle
	case cellActive:
		return activeStyle
	case cellLabel:
		return labelStyle
	default:
		return lipgloss.NewStyle()
	}
}

type canvas struct {
	cols, rows int
	glyphs     [][]rune
	kinds      [][]cellKind
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows, glyphs: make([][]rune, rows), kinds: make([][]cellKind, rows)}
	for r := range c.glyphs {
		c.glyphs[r] = []rune(strings.Repeat(" ", cols))
		c.kinds[r] = make([]cellKind, cols)
	}
	return c
}

func (c *canvas) put(col, row int, g rune, k cellKind, overwrite bool) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return
	}
	if !overwrite && c.kinds[row][col] != cellBlank {
		return
	}
	c.glyphs[row][col] = g
	c.kinds[row][col] = k
}

func (c *canvas) render() string {
	var b strings.Builder
	for r := 0; r < c.rows; r++ {
		start := 0
		for col := 1; col <= c.cols; col++ {
			if col < c.cols && c.kinds[r][col] == c.kinds[r][start] {
				continue
			}
			b.WriteString(c.kinds[r][start].style().Render(string(c.glyphs[r][start:col])))
			start = col
		}
		if r < c.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m viewModel) renderCanvas() string {
	cols, rows := m.width, m.canvasRows()
	if cols <= 0 || rows <= 0 {
		return ""
	}
	c := newCanvas(cols, rows)
	v := m.target.Viewport()
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	project := func(x, y float64) (int, int) {
		col := float64(cols)/2 + (x-v.X)*v.Zoom/cellWidth
		row := float64(rows)/2 + (y-v.Y)*v.Zoom/cellHeight
		return int(math.Floor(col)), int(math.Floor(row))
	}

	nodes := m.eng.Nodes()
	pos := make(map[string][2]int, len(nodes))
	for _, n := range nodes {
		col, row := project(n.X, n.Y)
		pos[n.ID] = [2]int{col, row}
	}

	for _, l := range m.eng.Links() {
		a, okA := pos[l.Source]
		b, okB := pos[l.Target]
		if !okA || !okB {
			continue
		}
		dc, dr := b[0]-a[0], b[1]-a[1]
		steps := max(abs(dc), abs(dr))
		for s := 1; s < steps; s++ {
			t := float64(s) / float64(steps)
			c.put(a[0]+int(math.Round(t*float64(dc))), a[1]+int(math.Round(t*float64(dr))), '·', cellLink, false)
		}
	}

	for _, n := range nodes {
		p := pos[n.ID]
		glyph, kind := '●', cellNode
		switch {
		case n.Active:
			glyph, kind = '◉', cellActive
		case n.Pinned():
			glyph, kind = '◆', cellPinned
		}
		c.put(p[0], p[1], glyph, kind, true)
		for i, r := range []rune(truncate(n.ID, 12)) {
			c.put(p[0]+2+i, p[1], r, cellLabel, false)
		}
	}
	return c.render()
}

func (m viewModel) renderStatusBar() string {
	sim := m.eng.Simulation()
	perfSnap := m.eng.GetPerformanceMetrics()
	state := sim.State().String()
	if m.paused {
		state = "paused"
	}
	stats := fmt.Sprintf("%s  tick %d  alpha %.3f  nodes %d  fps %.0f  throttle %d",
		state, sim.TickCount(), sim.Alpha(), len(m.eng.Nodes()), perfSnap.FPS, perfSnap.ThrottleLevel)
	if active := m.eng.ActiveTask(); active != nil {
		stats += "  active " + activeStyle.Render(active.ID)
	}
	return titleStyle.Render("taskmap") + "  " + stats + "\n" + m.footer()
}

func (m viewModel) View() string {
	if m.width == 0 {
		return "starting..."
	}
	return m.renderCanvas() + "\n" + m.renderStatusBar()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func runViewCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := args[0]
	tasks, err := loadTasks(path)
	if err != nil {
		return err
	}

	size := &termSize{}
	target := viewport.NewStaticTarget(viewport.Viewport{Zoom: 1})
	e, err := engine.New(cfg, engine.WithCamera(target, nil), engine.WithSurface(size))
	if err != nil {
		return err
	}
	defer e.Close()

	m := newViewModel(e, target, size, path, cfg.Performance.FrameBudget())
	if err := e.SetTasks(tasks, nil); err != nil {
		m.status = firstLine(err.Error())
	}
	e.Start()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if watchTasks && path != "-" {
		w, err := newFileWatcher(path, watchDebounce)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		defer w.Close()
		// Feed file changes into the TUI.
		go func() {
			for range w.Changes() {
				p.Send(tasksChangedMsg{})
			}
		}()
	}

	_, err = p.Run()
	return err
}
