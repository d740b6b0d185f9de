package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes events for floor displays and equipment terminals.
type MQTTSink struct {
	client  publisher
	prefix  string
	timeout time.Duration
}

// MQTTOptions configures ConnectMQTT.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Logger      *slog.Logger
}

// ConnectMQTT connects to the broker and returns a sink using that connection.
func ConnectMQTT(opts MQTTOptions) (*MQTTSink, mqtt.Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	broker := opts.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", broker, "client_id", opts.ClientID)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return NewMQTTSink(client, opts.TopicPrefix), client, nil
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client publisher, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: strings.TrimSuffix(prefix, "/"), timeout: 5 * time.Second}
}

func (m *MQTTSink) Name() string { return "mqtt" }

// Topic returns the topic an event is published on.
func (m *MQTTSink) Topic(ev Event) string {
	if ev.Directed() {
		return fmt.Sprintf("%s/members/%s/events", m.prefix, ev.MemberID)
	}
	return fmt.Sprintf("%s/equipment/%s/events", m.prefix, ev.EquipmentID)
}

func (m *MQTTSink) Deliver(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	token := m.client.Publish(m.Topic(ev), 1, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt publish timeout on %s", m.Topic(ev))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish failed: %w", err)
	}
	return nil
}
