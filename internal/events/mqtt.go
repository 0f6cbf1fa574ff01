// internal/events/mqtt.go
package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"greymatter/internal/model"
)

// MQTTConfig describes the broker events are forwarded to.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTForwarder publishes every bus event to <prefix>/<event type>.
type MQTTForwarder struct {
	client mqtt.Client
	config MQTTConfig
	logger *zap.Logger
}

// NewMQTTForwarder connects to the broker.
func NewMQTTForwarder(cfg MQTTConfig, logger *zap.Logger) (*MQTTForwarder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(cfg.Timeout); !ok {
		return nil, fmt.Errorf("MQTT connect timed out after %s", cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", err)
	}

	return newMQTTForwarder(client, cfg, logger), nil
}

func newMQTTForwarder(client mqtt.Client, cfg MQTTConfig, logger *zap.Logger) *MQTTForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTForwarder{
		client: client,
		config: cfg,
		logger: logger.With(zap.String("component", "mqtt"), zap.String("broker", cfg.Broker)),
	}
}

// Topic returns the topic an event type is published on.
func (f *MQTTForwarder) Topic(eventType model.EventType) string {
	return f.config.TopicPrefix + "/" + string(eventType)
}

// Run forwards events from ch until it is closed.
func (f *MQTTForwarder) Run(ch <-chan model.Event) {
	for event := range ch {
		if err := f.Forward(event); err != nil {
			f.logger.Warn("Failed to publish event",
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

// Forward publishes one event and waits for the broker.
func (f *MQTTForwarder) Forward(event model.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	token := f.client.Publish(f.Topic(event.Type), f.config.QoS, false, body)
	if !token.WaitTimeout(f.config.Timeout) {
		return fmt.Errorf("publish timed out after %s", f.config.Timeout)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (f *MQTTForwarder) Close() {
	f.client.Disconnect(250)
}
