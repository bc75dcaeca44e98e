// Package tui provides the Bubble Tea monitor interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/keystress/internal/client"
	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/publish"
	statsPkg "github.com/verte-zerg/keystress/internal/stats"
	"github.com/verte-zerg/keystress/internal/store"
	"github.com/verte-zerg/keystress/internal/tracker"
)

const stressHistoryLimit = 120

type tickMsg time.Time

type predictionMsg struct {
	record model.SnapshotRecord
	pred   *model.Prediction
	err    error
}

// Model implements the Bubble Tea monitor UI.
type Model struct {
	config    model.MonitorConfig
	tracker   *tracker.Tracker
	publisher publish.Publisher
	store     *store.Store
	logger    *zap.Logger

	sessionID int64
	startedAt time.Time

	width  int
	height int

	lastSnapshot  tracker.Snapshot
	lastTakenAt   time.Time
	hasSnapshot   bool
	lastPred      *model.Prediction
	lastErr       error
	stressHistory []float64

	snapshotsSent int
	snapshotsSave int
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5AD47E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3A3A3A")).
			Padding(0, 1)
)

// NewModel constructs a monitor TUI model.
func NewModel(cfg model.MonitorConfig, trk *tracker.Tracker, pub publish.Publisher, st *store.Store, logger *zap.Logger, sessionID int64) *Model {
	return &Model{
		config:    cfg,
		tracker:   trk,
		publisher: pub,
		store:     st,
		logger:    logger,
		sessionID: sessionID,
		startedAt: time.Now(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.snapshotCmd(time.Time(msg)), m.tickCmd())
	case predictionMsg:
		m.handlePrediction(msg)
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "p":
		m.tracker.SetEnabled(!m.tracker.Enabled())
		return m, nil
	}
	m.tracker.OnKeyDown(msg.String(), time.Now().UnixMilli())
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	nowMs := time.Now().UnixMilli()
	x, y := float64(msg.X), float64(msg.Y)
	switch msg.Action {
	case tea.MouseActionMotion:
		m.tracker.OnMouseMove(x, y, nowMs)
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown,
			tea.MouseButtonWheelLeft, tea.MouseButtonWheelRight:
			m.tracker.OnMouseWheel(x, y, nowMs)
		default:
			m.tracker.OnMouseDown(x, y, nowMs)
		}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(time.Duration(m.tracker.IntervalMs())*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// snapshotCmd computes the current window's features, updates the view state
// and returns a command that publishes the snapshot off the UI goroutine.
func (m *Model) snapshotCmd(takenAt time.Time) tea.Cmd {
	nowMs := takenAt.UnixMilli()
	snap := m.tracker.Snapshot(nowMs)
	m.lastSnapshot = snap
	m.lastTakenAt = takenAt
	m.hasSnapshot = true

	record := snapshotRecord(m.sessionID, takenAt, snap)
	req := client.Request{
		UserID:    m.config.User,
		SessionID: m.sessionID,
		T0UnixMs:  nowMs - m.tracker.WindowMs(),
		T1UnixMs:  nowMs,
		Snapshot:  snap,
	}
	publisher := m.publisher
	dryRun := m.config.DryRun
	return func() tea.Msg {
		if dryRun || publisher == nil {
			return predictionMsg{record: record}
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(m.config.TimeoutMs)*time.Millisecond)
		defer cancel()
		pred, err := publisher.Publish(ctx, req)
		return predictionMsg{record: record, pred: pred, err: err}
	}
}

func (m *Model) handlePrediction(msg predictionMsg) {
	m.lastErr = msg.err
	record := msg.record
	if msg.pred != nil {
		m.lastPred = msg.pred
		record.StressProb = msg.pred.StressProb
		record.StressSmoothed = msg.pred.StressSmoothed
		record.SignalQuality = msg.pred.SignalQuality
		m.stressHistory = append(m.stressHistory, msg.pred.StressSmoothed)
		if len(m.stressHistory) > stressHistoryLimit {
			m.stressHistory = m.stressHistory[len(m.stressHistory)-stressHistoryLimit:]
		}
		m.snapshotsSent++
	}
	if msg.err != nil {
		m.logger.Warn("snapshot publish failed", zap.Error(msg.err))
	}
	ctx := context.Background()
	if _, err := m.store.InsertSnapshot(ctx, record); err != nil {
		m.logger.Error("failed to save snapshot", zap.Error(err))
		return
	}
	m.snapshotsSave++
}

// View implements tea.Model.
func (m *Model) View() string {
	header := m.renderHeader()
	cards := lipgloss.JoinHorizontal(lipgloss.Top, m.renderInputCard(), m.renderStressCard())
	footer := footerStyle.Render("p pause · q quit")
	content := lipgloss.JoinVertical(lipgloss.Left, header, cards, footer)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderHeader() string {
	state := runningStyle.Render("recording")
	if !m.tracker.Enabled() {
		state = pausedStyle.Render("paused")
	}
	title := titleStyle.Render("keystress")
	meta := labelStyle.Render(fmt.Sprintf("user %s · session %d · window %ds · %s",
		m.config.User, m.sessionID, m.tracker.WindowMs()/1000, time.Since(m.startedAt).Round(time.Second)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", state, "  ", meta)
}

func (m *Model) renderInputCard() string {
	var lines []string
	if !m.hasSnapshot {
		lines = append(lines, labelStyle.Render("waiting for first window"))
	} else {
		snap := m.lastSnapshot
		lines = append(lines,
			statLine("Keys", fmt.Sprintf("%d down · %d unique", snap.KeyDowns, snap.UniqueKeys)),
			statLine("IKG", fmt.Sprintf("%.0f ms mean · %.0f ms p95", snap.MeanIKGMs, snap.P95IKGMs)),
			statLine("Mouse", fmt.Sprintf("%d moves · %.0f px", snap.MouseMoves, snap.DistancePx)),
			statLine("Speed", fmt.Sprintf("%.0f px/s mean · %.0f px/s max", snap.MeanSpeedPxS, snap.MaxSpeedPxS)),
			statLine("Active", fmt.Sprintf("%.0f%% of window", snap.ActiveSeconds*100)),
		)
	}
	return cardStyle.Render(titleStyle.Render("Input") + "\n" + strings.Join(lines, "\n"))
}

func (m *Model) renderStressCard() string {
	var lines []string
	switch {
	case m.config.DryRun:
		lines = append(lines, labelStyle.Render("dry run, nothing sent"))
	case m.lastPred == nil && m.lastErr == nil:
		lines = append(lines, labelStyle.Render("waiting for backend"))
	default:
		if m.lastPred != nil {
			lines = append(lines,
				statLine("Stress", fmt.Sprintf("%.2f raw · %.2f smoothed", m.lastPred.StressProb, m.lastPred.StressSmoothed)),
				statLine("Quality", m.lastPred.SignalQuality),
			)
			if len(m.stressHistory) > 1 {
				lines = append(lines, statLine("History", statsPkg.Sparkline(m.stressHistory)))
			}
		}
		if m.lastErr != nil {
			lines = append(lines, errorStyle.Render(truncate(m.lastErr.Error(), 48)))
		}
	}
	lines = append(lines, labelStyle.Render(fmt.Sprintf("%d sent · %d saved", m.snapshotsSent, m.snapshotsSave)))
	return cardStyle.Render(titleStyle.Render("Stress") + "\n" + strings.Join(lines, "\n"))
}

func statLine(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-8s", label)) + valueStyle.Render(value)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}

func snapshotRecord(sessionID int64, takenAt time.Time, snap tracker.Snapshot) model.SnapshotRecord {
	return model.SnapshotRecord{
		SessionID:     sessionID,
		TakenAt:       takenAt,
		EventCount:    snap.EventCount,
		KeyDowns:      snap.KeyDowns,
		KeyUps:        snap.KeyUps,
		UniqueKeys:    snap.UniqueKeys,
		MeanDwellMs:   snap.MeanDwellMs,
		MedianDwellMs: snap.MedianDwellMs,
		P95DwellMs:    snap.P95DwellMs,
		MeanIKGMs:     snap.MeanIKGMs,
		MedianIKGMs:   snap.MedianIKGMs,
		P95IKGMs:      snap.P95IKGMs,
		MouseMoves:    snap.MouseMoves,
		MouseClicks:   snap.MouseClicks,
		MouseScrolls:  snap.MouseScrolls,
		DistancePx:    snap.DistancePx,
		MeanSpeedPxS:  snap.MeanSpeedPxS,
		MaxSpeedPxS:   snap.MaxSpeedPxS,
		ActiveSeconds: snap.ActiveSeconds,
	}
}
