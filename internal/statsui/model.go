// Package statsui provides the Bubble Tea history interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/stats"
	"github.com/verte-zerg/keystress/internal/store"
)

const (
	tabOverview = iota
	tabSnapshots
	tabCurves
)

const plotHeight = 10

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history UI.
type Model struct {
	store *store.Store
	cfg   model.StatsConfig

	report stats.Report
	errMsg string

	tabs          []string
	activeTab     int
	viewports     []viewport.Model
	snapshotTable table.Model
	tableLayout   tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
}

// NewModel constructs a history UI model.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	m := &Model{
		store: st,
		cfg:   cfg,
		tabs:  []string{"Overview", "Snapshots", "Curves"},
	}
	if m.cfg.CurveWindow < 1 {
		m.cfg.CurveWindow = 1
	}
	m.initInputs()
	m.initSnapshotTable()
	m.initViewports()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.activeTab == tabSnapshots {
			m.snapshotTable.Focus()
		} else {
			m.snapshotTable.Blur()
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow++
			m.renderTabContents()
			return m, nil
		case "-":
			if m.cfg.CurveWindow > 1 {
				m.cfg.CurveWindow--
				m.renderTabContents()
			}
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if m.activeTab == tabSnapshots {
				m.snapshotTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSnapshots {
				m.snapshotTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabSnapshots {
				var cmd tea.Cmd
				m.snapshotTable, cmd = m.snapshotTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Session: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func (m *Model) initSnapshotTable() {
	cols, rows := buildSnapshotTableData(nil)
	m.snapshotTable = table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(1),
	)
	m.snapshotTable.SetStyles(snapshotTableStyles())
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	if m.cfg.SessionID > 0 {
		m.filterInputs[0].SetValue(strconv.FormatInt(m.cfg.SessionID, 10))
	} else {
		m.filterInputs[0].SetValue("")
	}
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.setSnapshotTableSize(m.width, vpHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabSnapshots {
		m.snapshotTable.Focus()
	} else {
		m.snapshotTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	session := "any"
	if m.cfg.SessionID > 0 {
		session = strconv.FormatInt(m.cfg.SessionID, 10)
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Settings: session=%s  since=%s  last=%s  window=%d", session, since, last, m.cfg.CurveWindow)
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q"
	return headerStyle.Render(help)
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: q")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabSnapshots {
		if len(m.report.Snapshots) == 0 {
			return fitLines("No snapshots found.", m.width, height)
		}
		view := tableMutedStyle.Render(m.snapshotTable.View())
		return fitLines(view, m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load history.")
		}
		return
	}
	m.errMsg = ""
	m.report = report
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.applySnapshotTable(width, bodyHeight)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load history.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
	m.viewports[tabCurves].SetContent(renderCurves(m.report, m.cfg.CurveWindow, width))
}

func renderOverview(report stats.Report, width int) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	cards := renderSummaryCards(report)
	if width < 80 {
		return strings.TrimRight(strings.Join(cards, "\n"), "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	var buf bytes.Buffer
	if err := stats.RenderSessionTable(&buf, report.Sessions); err != nil {
		return fmt.Sprintf("Failed to render sessions: %v", err)
	}
	body := lipgloss.JoinVertical(lipgloss.Left, row1, row2, "", buf.String())
	return strings.TrimRight(body, "\n")
}

func renderSummaryCards(report stats.Report) []string {
	var totalSnapshots, totalKeyDowns int
	var meanStressSum, maxStress float64
	for _, s := range report.Sessions {
		totalSnapshots += s.Snapshots
		totalKeyDowns += s.KeyDowns
		meanStressSum += s.MeanStress
		if s.MaxStress > maxStress {
			maxStress = s.MaxStress
		}
	}
	count := float64(len(report.Sessions))
	return []string{
		metricCard("Sessions", fmt.Sprintf("%d", len(report.Sessions))),
		metricCard("Snapshots", fmt.Sprintf("%d", totalSnapshots)),
		metricCard("Key presses", fmt.Sprintf("%d", totalKeyDowns)),
		metricCard("Avg stress", fmt.Sprintf("%.2f", meanStressSum/count)),
		metricCard("Peak stress", fmt.Sprintf("%.2f", maxStress)),
	}
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderCurves(report stats.Report, window, width int) string {
	if len(report.Snapshots) == 0 {
		return "No snapshots found."
	}
	var buf bytes.Buffer
	if err := stats.RenderStressCurves(&buf, report.Snapshots, report.WindowMs, window, width, plotHeight); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildSnapshotTableData(records []model.SnapshotRecord) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Taken", Width: 16},
		{Title: "Session", Width: 7},
		{Title: "Keys", Width: 5},
		{Title: "IKG (ms)", Width: 8},
		{Title: "Mouse", Width: 5},
		{Title: "Dist (px)", Width: 9},
		{Title: "Active", Width: 6},
		{Title: "Stress", Width: 6},
		{Title: "Quality", Width: 8},
	}
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, table.Row{
			rec.TakenAt.Local().Format("01-02 15:04:05"),
			fmt.Sprintf("%d", rec.SessionID),
			fmt.Sprintf("%d", rec.KeyDowns),
			fmt.Sprintf("%.0f", rec.MeanIKGMs),
			fmt.Sprintf("%d", rec.MouseMoves),
			fmt.Sprintf("%.0f", rec.DistancePx),
			fmt.Sprintf("%.0f%%", rec.ActiveSeconds*100),
			fmt.Sprintf("%.2f", rec.StressSmoothed),
			rec.SignalQuality,
		})
	}
	return columns, rows
}

func (m *Model) applySnapshotTable(width, height int) {
	cols, rows := buildSnapshotTableData(m.report.Snapshots)
	m.snapshotTable.SetColumns(cols)
	m.snapshotTable.SetRows(rows)
	m.tableLayout.rowCount = len(rows)
	m.tableLayout.width = 0
	m.tableLayout.height = 0
	m.setSnapshotTableSize(width, height)
}

func (m *Model) setSnapshotTableSize(width, height int) {
	viewportHeight := maxInt(1, height-1)
	if m.tableLayout.width == width && m.tableLayout.height == viewportHeight {
		return
	}
	m.tableLayout.width = width
	m.tableLayout.height = viewportHeight
	m.snapshotTable.SetWidth(width)
	m.snapshotTable.SetHeight(viewportHeight)
}

func snapshotTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	sessionInput := strings.TrimSpace(m.filterInputs[0].Value())
	var sessionID int64
	if sessionInput != "" {
		parsed, err := strconv.ParseInt(sessionInput, 10, 64)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid session id (use 0 or positive integer)")
		}
		sessionID = parsed
	}

	sinceInput := strings.TrimSpace(m.filterInputs[1].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[2].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	windowInput := strings.TrimSpace(m.filterInputs[3].Value())
	window := 1
	if windowInput != "" {
		parsed, err := strconv.Atoi(windowInput)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.StatsConfig{
		SessionID:   sessionID,
		Since:       since,
		Last:        last,
		CurveWindow: window,
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
