package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/hagbeck/containerterminal/pkg/brick"
	"github.com/hagbeck/containerterminal/pkg/control"
	"github.com/hagbeck/containerterminal/pkg/servo"
)

type RunCommand struct {
	Hz       int  `long:"hz" description:"Supervisor frequency (default from config)"`
	Headless bool `long:"headless" description:"Run without the terminal UI"`
}

const (
	headerHeight = 2 // title + blank line
	lcdHeight    = 3
	tableHeight  = 7
	legendHeight = 2 // legend row + blank
	footerHeight = 8 // log box + key help
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Chart series.
const (
	seriesRotation = "S1"
)

var seriesColors = map[string]string{
	seriesRotation:       "201", // magenta
	string(brick.MotorA): "196", // red
	string(brick.MotorB): "46",  // green
	string(brick.MotorC): "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	lcdStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Bold(true).Foreground(lipgloss.Color("10")).Padding(0, 2)
	phaseStyles = map[control.Phase]lipgloss.Style{
		control.PhaseRunning:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		control.PhaseHalted:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		control.PhaseReturningHome: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		control.PhaseShutdown:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
)

// chartPower scales a motor power onto the rotation axis of the chart.
func chartPower(power int, dir brick.Direction) float64 {
	return float64(brick.Signed(power, dir) * brick.RotationStep)
}

type runModel struct {
	ctrl      *control.Controller
	run       *brick.Latch
	chart     *streamlinechart.Model
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N log messages
	state     control.State
	haveState bool
	last      []float64 // previous chart sample, to freeze the chart when idle
	done      bool
	err       error
	quitting  bool
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg control.State
type logMsg string
type doneMsg struct{ err error }

func waitForState(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12
	}
	width = max(40, m.width-borderSize-2)
	height = max(6, m.height-headerHeight-lcdHeight-tableHeight-legendHeight-footerHeight-borderSize)
	return width, height
}

func (m *runModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newRunModel(ctrl *control.Controller, run *brick.Latch) runModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-float64(brick.MaxPower*brick.RotationStep), float64(control.RotationLimit)),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return runModel{
		ctrl:  ctrl,
		run:   run,
		chart: &chart,
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

// sample returns the chart values of a state in series order S1, A, B, C.
func sample(s control.State) []float64 {
	out := []float64{float64(s.Rotation)}
	for _, name := range brick.AllMotors() {
		ms := s.Motors[name]
		out = append(out, chartPower(ms.Power, ms.Direction))
	}
	return out
}

func sameSample(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.run.Press()
			m.addLog("RUN pressed")
			return m, nil
		}
		if m.done {
			return m, nil
		}
		if ev, ok := remoteKeys[key]; ok {
			m.ctrl.Press(ev)
		}

	case stateMsg:
		m.state = control.State(msg)
		m.haveState = true
		if v := sample(m.state); !sameSample(v, m.last) {
			m.chart.PushDataSet(seriesRotation, v[0])
			for i, name := range brick.AllMotors() {
				m.chart.PushDataSet(string(name), v[i+1])
			}
			m.chart.DrawAll()
			m.last = v
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)

	case doneMsg:
		m.done = true
		m.err = msg.err
		if msg.err != nil {
			m.addLog("Stopped: " + msg.err.Error())
		} else {
			m.addLog("Shut down. Press 'q' to quit")
		}
		return m, nil
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Control program stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Container Terminal"))
	sb.WriteString(fmt.Sprintf(" - %d Hz  ", m.ctrl.Hz()))
	phase := m.ctrl.Phase()
	sb.WriteString(phaseStyles[phase].Render(phase.String()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(lcdStyle.Render(fmt.Sprintf("%-5s %5d", m.state.Text, m.state.Number)))
	sb.WriteString("\n")
	sb.WriteString(m.renderTable())
	sb.WriteString("\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(20, m.width-4)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(keyHelp))
	sb.WriteString("\n")

	return sb.String()
}

func (m runModel) renderTable() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	s := m.state
	rows := make([][]string, 0, 3)
	sensorValue := func(name brick.SensorName) string {
		if !m.haveState {
			return "-"
		}
		if name == brick.S1 {
			return fmt.Sprintf("%d", s.Rotation)
		}
		return fmt.Sprintf("%t", s.Touch[name])
	}
	for i, name := range brick.AllMotors() {
		ms := s.Motors[name]
		sensor := brick.AllSensors()[i]
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", ms.Power),
			ms.Direction.String(),
			string(sensor),
			sensorValue(sensor),
			fmt.Sprintf("%t", s.Active[i]),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Motor", "Power", "Direction", "Sensor", "Value", "Active").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 || col == 3 {
				return nameStyle
			}
			return cellStyle
		})
	return t.Render()
}

func renderLegend() string {
	names := []string{seriesRotation}
	for _, name := range brick.AllMotors() {
		names = append(names, string(name))
	}
	var items []string
	for _, name := range names {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		label := name
		if name != seriesRotation {
			label = "motor " + name
		}
		items = append(items, colorStyle.Render("━━")+" "+label)
	}
	return strings.Join(items, "  ")
}

func (c *RunCommand) Execute(args []string) error {
	cfg := loadConfig()
	logger := newLogger(!c.Headless)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	b, err := brick.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.HasLift() {
		if err := servo.Attach(ctx, b, cfg.Lift, logger.Named("lift")); err != nil {
			return err
		}
	}

	run := &brick.Latch{}
	b.Run = brick.AnyButton(b.Run, run)

	ccfg := control.ConfigFrom(cfg.Control)
	if c.Hz > 0 {
		ccfg.Hz = c.Hz
	}
	ctrl := control.New(b, ccfg, logger.Named("control"))
	ctrl.Boot(ctx)

	if c.Headless {
		fmt.Printf("Running %s backend from %s. Press Ctrl+C to return the lift home, twice to stop at once.\n", cfg.Backend, opts.Config)
		return runHeadless(ctx, ctrl, run, sigs)
	}

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	p := tea.NewProgram(newRunModel(ctrl, run), tea.WithAltScreen(), tea.WithContext(ctx))

	var g errgroup.Group
	g.Go(func() error {
		err := ctrl.Run(ctx)
		p.Send(doneMsg{err: ignoreCanceled(err)})
		return ignoreCanceled(err)
	})
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// runHeadless runs ctrl until it shuts down. The first signal presses RUN so
// the lift wagon returns home, a second one stops without waiting for it.
func runHeadless(ctx context.Context, ctrl *control.Controller, run *brick.Latch, sigs <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		pressed := false
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if pressed {
					fmt.Printf("%v again, stopping\n", sig)
					cancel()
					return
				}
				pressed = true
				fmt.Printf("%v, returning lift home\n", sig)
				run.Press()
			}
		}
	}()

	return ignoreCanceled(ctrl.Run(ctx))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
