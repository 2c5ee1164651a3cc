package sink

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// DefaultFeatureTopic is the topic pattern feature tables are published on.
const DefaultFeatureTopic = "pv/{inverter}/features"

// MQTTConfig holds MQTT client configuration.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// FeatureMessage is the payload published for one pipeline run.
type FeatureMessage struct {
	RunID      string       `json:"run_id"`
	InverterID string       `json:"inverter_id"`
	Columns    []string     `json:"columns"`
	Rows       []FeatureRow `json:"rows"`
}

// FeatureRow is one timestamped row of a FeatureMessage.
type FeatureRow struct {
	Date   time.Time      `json:"date"`
	Values []series.Value `json:"values"`
}

// NewFeatureMessage renders s into a FeatureMessage.
func NewFeatureMessage(runID, inverterID string, s *series.Series) FeatureMessage {
	cols := s.Columns()
	msg := FeatureMessage{
		RunID:      runID,
		InverterID: inverterID,
		Columns:    make([]string, len(cols)),
		Rows:       make([]FeatureRow, s.Len()),
	}
	for j, c := range cols {
		msg.Columns[j] = c.String()
	}
	for i := 0; i < s.Len(); i++ {
		p := s.Row(i)
		msg.Rows[i] = FeatureRow{Date: p.Time.UTC(), Values: p.Values}
	}
	return msg
}

// MQTTPublisher publishes feature tables to a broker.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connection established", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultFeatureTopic
	}
	return &MQTTPublisher{client: client, topic: topic, qos: cfg.QoS, logger: logger}, nil
}

// Publish sends the feature table of one run.
func (p *MQTTPublisher) Publish(runID, inverterID string, s *series.Series) error {
	payload, err := json.Marshal(NewFeatureMessage(runID, inverterID, s))
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	topic := FormatTopic(p.topic, inverterID)
	token := p.client.Publish(topic, p.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish features: %w", token.Error())
	}

	p.logger.Info("published features",
		zap.String("topic", topic),
		zap.String("run_id", runID),
		zap.Int("rows", s.Len()))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// FormatTopic replaces the {inverter} placeholder with the inverter id.
func FormatTopic(pattern, inverterID string) string {
	return strings.ReplaceAll(pattern, "{inverter}", inverterID)
}
