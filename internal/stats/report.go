// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions  []model.SessionAggregate
	Snapshots []model.SnapshotRecord
	WindowMs  int64
}

// BuildReport loads and prepares data for stats rendering. WindowMs is taken
// from the most recent session so tempo figures use the right denominator.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	snapshots, err := st.ListSnapshots(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	windowMs := int64(10_000)
	if len(sessions) > 0 && sessions[len(sessions)-1].WindowMs > 0 {
		windowMs = sessions[len(sessions)-1].WindowMs
	}
	return Report{
		Sessions:  sessions,
		Snapshots: snapshots,
		WindowMs:  windowMs,
	}, nil
}
