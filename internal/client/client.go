// Package client talks to the stress prediction backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/tracker"
)

// DefaultTimeout bounds one prediction round trip.
const DefaultTimeout = 4 * time.Second

// Request is the JSON payload sent to the prediction endpoint: the windowed
// feature vector plus session metadata, matching the original logger schema.
type Request struct {
	UserID    string `json:"user_id"`
	SessionID int64  `json:"session_id"`
	T0UnixMs  int64  `json:"t0_unix_ms"`
	T1UnixMs  int64  `json:"t1_unix_ms"`
	tracker.Snapshot
}

// Client posts snapshots to a single prediction endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// New constructs a Client. A non-positive timeout falls back to DefaultTimeout.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Predict sends one snapshot and decodes the classifier's answer.
func (c *Client) Predict(ctx context.Context, req Request) (model.Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Prediction{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("prediction request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return model.Prediction{}, fmt.Errorf("prediction endpoint returned %s: %s", resp.Status, bytes.TrimSpace(excerpt))
	}

	var pred model.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return model.Prediction{}, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return pred, nil
}
