// Package model defines shared data structures.
package model

import "time"

// MonitorConfig defines monitor settings.
type MonitorConfig struct {
	User       string
	WindowMs   int64
	IntervalMs int64
	Paused     bool

	Endpoint  string
	TimeoutMs int64
	DryRun    bool

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	SessionID   int64
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionRecord captures one monitor run.
type SessionRecord struct {
	ID         int64
	StartedAt  time.Time
	EndedAt    time.Time
	User       string
	WindowMs   int64
	IntervalMs int64
	Endpoint   string
}

// Prediction is the classifier's answer for one snapshot.
type Prediction struct {
	StressProb     float64 `json:"stress_prob"`
	StressSmoothed float64 `json:"stress_smoothed"`
	SignalQuality  string  `json:"signal_quality"`
}

// SnapshotRecord stores one windowed feature vector and, when available,
// the prediction it produced.
type SnapshotRecord struct {
	ID        int64
	SessionID int64
	TakenAt   time.Time

	EventCount    int
	KeyDowns      int
	KeyUps        int
	UniqueKeys    int
	MeanDwellMs   float64
	MedianDwellMs float64
	P95DwellMs    float64
	MeanIKGMs     float64
	MedianIKGMs   float64
	P95IKGMs      float64
	MouseMoves    int
	MouseClicks   int
	MouseScrolls  int
	DistancePx    float64
	MeanSpeedPxS  float64
	MaxSpeedPxS   float64
	ActiveSeconds float64

	StressProb     float64
	StressSmoothed float64
	SignalQuality  string
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID  int64
	StartedAt  time.Time
	EndedAt    time.Time
	WindowMs   int64
	Snapshots  int
	KeyDowns   int
	MouseMoves int
	MeanStress float64
	MaxStress  float64
	MeanActive float64
}
