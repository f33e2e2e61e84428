package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/robot"
	"github.com/gwillem/trackbot/pkg/teleop"
)

const (
	headerHeight = 3 // title, status line, blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // log box height
	maxLogs      = 7 // number of log messages to show
	borderSize   = 2 // chart border

	refreshInterval = 100 * time.Millisecond
)

// Track colors
var trackColors = map[robot.TrackName]string{
	robot.LeftTrack:  "46", // green
	robot.RightTrack: "51", // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	manualStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	autoStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
)

type dashboardModel struct {
	ctrl     *teleop.Controller
	cfg      *config.Config
	chart    *streamlinechart.Model
	state    teleop.State
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type tickMsg time.Time

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboard(ctrl *teleop.Controller, cfg *config.Config) dashboardModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-1, 1),
	)
	for _, name := range robot.AllTracks() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(trackColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return dashboardModel{
		ctrl:  ctrl,
		cfg:   cfg,
		chart: &chart,
		state: ctrl.Snapshot(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		tick(),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		m.state = teleop.State(msg)
		return m, waitForState(m.ctrl)

	case tickMsg:
		// Sample the drive at a fixed rate so the chart scrolls in real time.
		m.state = m.ctrl.Snapshot()
		for _, name := range robot.AllTracks() {
			m.chart.PushDataSet(string(name), m.state.Drive.Speed(name))
		}
		m.chart.DrawAll()
		return m, tick()

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("trackbot"))
	sb.WriteString(statusStyle.Render(fmt.Sprintf(" - searching for %q", m.cfg.Detection.TargetClass)))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Height(maxLogs)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderStatus() string {
	s := m.state
	var parts []string
	if s.Autonomous {
		parts = append(parts, autoStyle.Render("AUTONOMOUS"))
	} else {
		parts = append(parts, manualStyle.Render("MANUAL"))
	}
	parts = append(parts, statusStyle.Render("camera: "+s.Mode.String()))

	if st := s.Search; st != nil {
		id := s.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, statusStyle.Render(fmt.Sprintf("session %s: %s, %d scans, %d cycles", id, st.Phase, st.Scans, st.Cycles)))
		if st.Target != nil {
			parts = append(parts, statusStyle.Render(fmt.Sprintf("target %.2f offset %+.2f", st.Target.Detection.Confidence, st.Offset)))
		}
	}
	return strings.Join(parts, "  ")
}

func (m dashboardModel) renderLegend() string {
	var items []string
	for _, name := range robot.AllTracks() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(trackColors[name])).Bold(true)
		item := colorStyle.Render("━━") + fmt.Sprintf(" %s %+.2f", name, m.state.Drive.Speed(name))
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}
