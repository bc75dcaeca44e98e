// Package main provides the CLI entrypoint for keystress.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/keystress/internal/client"
	"github.com/verte-zerg/keystress/internal/config"
	"github.com/verte-zerg/keystress/internal/logging"
	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/publish"
	"github.com/verte-zerg/keystress/internal/statsui"
	"github.com/verte-zerg/keystress/internal/store"
	"github.com/verte-zerg/keystress/internal/tracker"
	"github.com/verte-zerg/keystress/internal/tui"
)

const (
	defaultEndpoint    = "http://127.0.0.1:8000/predict"
	defaultTimeoutMs   = int64(4000)
	defaultMQTTTopic   = "keystress/snapshots"
	defaultCurveWindow = 5
)

var (
	monitorUser       string
	monitorWindowMs   int64
	monitorIntervalMs int64
	monitorPaused     bool
	monitorEndpoint   string
	monitorTimeoutMs  int64
	monitorDryRun     bool
	monitorMQTTBroker string
	monitorMQTTTopic  string

	statsSession     int64
	statsSince       string
	statsLast        int
	statsCurveWindow int

	exportSession int64
	exportSince   string
	exportOut     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keystress",
		Short:         "Terminal behavior stress monitor",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runMonitorCmd,
	}

	rootCmd.Flags().StringVar(&monitorUser, "user", "", "user id reported to the backend (default: OS user)")
	rootCmd.Flags().Int64Var(&monitorWindowMs, "window-ms", tracker.DefaultWindowMs, "trailing feature window in ms")
	rootCmd.Flags().Int64Var(&monitorIntervalMs, "interval-ms", tracker.DefaultIntervalMs, "snapshot interval in ms")
	rootCmd.Flags().BoolVar(&monitorPaused, "paused", false, "start with recording paused")
	rootCmd.Flags().StringVar(&monitorEndpoint, "endpoint", defaultEndpoint, "prediction endpoint URL")
	rootCmd.Flags().Int64Var(&monitorTimeoutMs, "timeout-ms", defaultTimeoutMs, "prediction request timeout in ms")
	rootCmd.Flags().BoolVar(&monitorDryRun, "dry-run", false, "record locally without publishing")
	rootCmd.Flags().StringVar(&monitorMQTTBroker, "mqtt-broker", "", "optional MQTT broker URL (tcp://host:port)")
	rootCmd.Flags().StringVar(&monitorMQTTTopic, "mqtt-topic", defaultMQTTTopic, "MQTT topic for snapshots")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())

	return rootCmd
}

func runMonitorCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &monitorUser, fileCfg.Monitor.User)
	applyInt64Config(cmd, "window-ms", &monitorWindowMs, fileCfg.Monitor.WindowMs)
	applyInt64Config(cmd, "interval-ms", &monitorIntervalMs, fileCfg.Monitor.IntervalMs)
	applyBoolConfig(cmd, "paused", &monitorPaused, fileCfg.Monitor.Paused)
	applyStringConfig(cmd, "endpoint", &monitorEndpoint, fileCfg.Backend.Endpoint)
	applyInt64Config(cmd, "timeout-ms", &monitorTimeoutMs, fileCfg.Backend.TimeoutMs)
	applyStringConfig(cmd, "mqtt-broker", &monitorMQTTBroker, fileCfg.MQTT.Broker)
	applyStringConfig(cmd, "mqtt-topic", &monitorMQTTTopic, fileCfg.MQTT.Topic)

	cfg := model.MonitorConfig{
		User:       monitorUser,
		WindowMs:   monitorWindowMs,
		IntervalMs: monitorIntervalMs,
		Paused:     monitorPaused,
		Endpoint:   monitorEndpoint,
		TimeoutMs:  monitorTimeoutMs,
		DryRun:     monitorDryRun,
		MQTTBroker: monitorMQTTBroker,
		MQTTTopic:  monitorMQTTTopic,
	}
	if cfg.User == "" {
		cfg.User = osUser()
	}
	if cfg.MQTTClientID == "" && fileCfg.MQTT.ClientID != nil {
		cfg.MQTTClientID = *fileCfg.MQTT.ClientID
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "keystress-" + cfg.User
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger, logErr := logging.New(config.DefaultLogPath())
	if logErr != nil {
		logErrf("failed to open log file, diagnostics disabled: %v\n", logErr)
	}
	defer func() {
		// Best-effort sync; stderr may be gone already.
		_ = logger.Sync()
	}()

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	pub, err := buildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
	}

	ctx := context.Background()
	sessionID, err := st.StartSession(ctx, model.SessionRecord{
		StartedAt:  time.Now(),
		User:       cfg.User,
		WindowMs:   cfg.WindowMs,
		IntervalMs: cfg.IntervalMs,
		Endpoint:   cfg.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info("session started",
		zap.Int64("session_id", sessionID),
		zap.String("user", cfg.User),
		zap.Int64("window_ms", cfg.WindowMs),
		zap.Int64("interval_ms", cfg.IntervalMs),
	)

	trk := tracker.New(tracker.Config{
		WindowMs:   cfg.WindowMs,
		IntervalMs: cfg.IntervalMs,
		Enabled:    !cfg.Paused,
	})
	uiModel := tui.NewModel(cfg, trk, pub, st, logger, sessionID)
	program := tea.NewProgram(uiModel, tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, runErr := program.Run()

	if err := st.EndSession(ctx, sessionID, time.Now()); err != nil {
		logger.Error("failed to end session", zap.Error(err))
	}
	logger.Info("session ended", zap.Int64("session_id", sessionID))
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func buildPublisher(cfg model.MonitorConfig, logger *zap.Logger) (publish.Publisher, error) {
	if cfg.DryRun {
		return nil, nil
	}
	sinks := publish.Multi{
		publish.NewHTTP(client.New(cfg.Endpoint, time.Duration(cfg.TimeoutMs)*time.Millisecond), logger),
	}
	if cfg.MQTTBroker != "" {
		mq, err := publish.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up mqtt publisher: %w", err)
		}
		sinks = append(sinks, mq)
	}
	return sinks, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse recorded sessions",
		RunE:  runStatsCmd,
	}
	cmd.Flags().Int64Var(&statsSession, "session", 0, "session id filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N snapshots")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	sinceTime, err := parseSince(statsSince)
	if err != nil {
		return err
	}
	cfg := model.StatsConfig{
		SessionID:   statsSession,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	uiModel := statsui.NewModel(st, cfg)
	program := tea.NewProgram(uiModel, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export snapshots as CSV",
		RunE:  runExportCmd,
	}
	cmd.Flags().Int64Var(&exportSession, "session", 0, "session id filter")
	cmd.Flags().StringVar(&exportSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout)")
	return cmd
}

var exportHeader = []string{
	"session_id", "t1_unix_ms",
	"ks_event_count", "ks_keydowns", "ks_keyups", "ks_unique_keys",
	"ks_mean_dwell_ms", "ks_median_dwell_ms", "ks_p95_dwell_ms",
	"ks_mean_ikg_ms", "ks_median_ikg_ms", "ks_p95_ikg_ms",
	"mouse_move_count", "mouse_click_count", "mouse_scroll_count",
	"mouse_total_distance_px", "mouse_mean_speed_px_s", "mouse_max_speed_px_s",
	"active_seconds_fraction",
	"stress_prob", "stress_smoothed", "signal_quality",
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	sinceTime, err := parseSince(exportSince)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	records, err := st.ListSnapshots(context.Background(), model.StatsConfig{
		SessionID: exportSession,
		Since:     sinceTime,
	})
	if err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close output file: %v\n", cerr)
			}
		}()
		out = f
	}
	if err := writeSnapshotCSV(out, records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeSnapshotCSV(out io.Writer, records []model.SnapshotRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.SessionID, 10),
			strconv.FormatInt(rec.TakenAt.UnixMilli(), 10),
			strconv.Itoa(rec.EventCount),
			strconv.Itoa(rec.KeyDowns),
			strconv.Itoa(rec.KeyUps),
			strconv.Itoa(rec.UniqueKeys),
			formatFloat(rec.MeanDwellMs),
			formatFloat(rec.MedianDwellMs),
			formatFloat(rec.P95DwellMs),
			formatFloat(rec.MeanIKGMs),
			formatFloat(rec.MedianIKGMs),
			formatFloat(rec.P95IKGMs),
			strconv.Itoa(rec.MouseMoves),
			strconv.Itoa(rec.MouseClicks),
			strconv.Itoa(rec.MouseScrolls),
			formatFloat(rec.DistancePx),
			formatFloat(rec.MeanSpeedPxS),
			formatFloat(rec.MaxSpeedPxS),
			formatFloat(rec.ActiveSeconds),
			formatFloat(rec.StressProb),
			formatFloat(rec.StressSmoothed),
			rec.SignalQuality,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func osUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keystress configuration
# Uncomment a value to enable it. CLI flags override config values.

[monitor]
# user = ""                # User id reported to the backend (default: OS user)
# window-ms = %d        # Trailing feature window in ms
# interval-ms = %d       # Snapshot interval in ms
# paused = false           # Start with recording paused

[backend]
# endpoint = %q
# timeout-ms = %d        # Prediction request timeout in ms

[mqtt]
# broker = "tcp://127.0.0.1:1883"
# topic = %q
# client-id = ""           # Default: keystress-<user>
`,
		tracker.DefaultWindowMs,
		tracker.DefaultIntervalMs,
		defaultEndpoint,
		defaultTimeoutMs,
		defaultMQTTTopic,
	)
}

func validateConfig(cfg model.MonitorConfig) error {
	if cfg.WindowMs <= 0 {
		return fmt.Errorf("--window-ms must be > 0")
	}
	if cfg.IntervalMs <= 0 {
		return fmt.Errorf("--interval-ms must be > 0")
	}
	if cfg.IntervalMs > cfg.WindowMs {
		return fmt.Errorf("--interval-ms must not exceed --window-ms")
	}
	if cfg.TimeoutMs <= 0 {
		return fmt.Errorf("--timeout-ms must be > 0")
	}
	if !cfg.DryRun && cfg.Endpoint == "" {
		return fmt.Errorf("--endpoint must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
