// Package publish ships feature snapshots to the configured sinks.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/verte-zerg/keystress/internal/client"
	"github.com/verte-zerg/keystress/internal/model"
)

// Publisher delivers one snapshot. Sinks that cannot answer (fire-and-forget
// transports) return a nil prediction.
type Publisher interface {
	Publish(ctx context.Context, req client.Request) (*model.Prediction, error)
	Close()
}

// HTTP publishes snapshots to the prediction endpoint and returns its answer.
type HTTP struct {
	client *client.Client
	logger *zap.Logger
}

// NewHTTP wraps a prediction client.
func NewHTTP(c *client.Client, logger *zap.Logger) *HTTP {
	return &HTTP{client: c, logger: logger}
}

// Publish implements Publisher.
func (h *HTTP) Publish(ctx context.Context, req client.Request) (*model.Prediction, error) {
	pred, err := h.client.Predict(ctx, req)
	if err != nil {
		h.logger.Warn("prediction request failed",
			zap.String("endpoint", h.client.Endpoint()),
			zap.Error(err),
		)
		return nil, err
	}
	h.logger.Debug("prediction received",
		zap.Float64("stress_prob", pred.StressProb),
		zap.Float64("stress_smoothed", pred.StressSmoothed),
		zap.String("signal_quality", pred.SignalQuality),
	)
	return &pred, nil
}

// Close implements Publisher.
func (h *HTTP) Close() {}

const mqttConnectTimeout = 5 * time.Second

// MQTT publishes snapshots as JSON to a topic, fire and forget.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTT connects to the broker and returns an MQTT publisher.
func NewMQTT(broker, clientID, topic string, logger *zap.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	cl := mqtt.NewClient(opts)
	token := cl.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", broker, err)
	}
	logger.Info("mqtt publisher connected",
		zap.String("broker", broker),
		zap.String("topic", topic),
	)
	return &MQTT{client: cl, topic: topic, logger: logger}, nil
}

// Publish implements Publisher.
func (m *MQTT) Publish(ctx context.Context, req client.Request) (*model.Prediction, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			m.logger.Warn("mqtt publish failed", zap.String("topic", m.topic), zap.Error(err))
			return nil, fmt.Errorf("failed to publish to %s: %w", m.topic, err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

// Close implements Publisher.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

// Multi fans one snapshot out to several sinks. The first prediction wins;
// errors are joined so one failing sink does not hide the others.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, req client.Request) (*model.Prediction, error) {
	var pred *model.Prediction
	var errs []error
	for _, p := range m {
		got, err := p.Publish(ctx, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pred == nil && got != nil {
			pred = got
		}
	}
	return pred, errors.Join(errs...)
}

// Close implements Publisher.
func (m Multi) Close() {
	for _, p := range m {
		p.Close()
	}
}
