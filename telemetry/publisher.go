package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jaspermayone/wit-robotics-2025/motor"
)

// Publisher pushes telemetry snapshots to an MQTT broker so pit laptops can
// watch the robot without pulling the status page.
type Publisher struct {
	client mqtt.Client
	topic  string
	log    *logrus.Entry
}

// wire format for one published snapshot
type message struct {
	Sample
	Motors    motor.Status `json:"motors"`
	Timestamp int64        `json:"timestamp"`
	Source    string       `json:"source"`
}

// NewPublisher connects to the broker. Auto-reconnect is on; a broker outage
// mid-match only drops telemetry, never control.
func NewPublisher(broker, clientID, topic string) (*Publisher, error) {
	log := logrus.WithField("component", "mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) { log.Info("connected to broker") }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { log.WithError(err).Warn("broker connection lost") }

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to broker %s", broker)
	}
	return &Publisher{client: client, topic: topic, log: log}, nil
}

// Publish sends one snapshot, fire and forget (QoS 0).
func (p *Publisher) Publish(s Sample, st motor.Status) {
	payload, err := json.Marshal(message{
		Sample:    s,
		Motors:    st,
		Timestamp: time.Now().UnixMilli(),
		Source:    "bot",
	})
	if err != nil {
		p.log.WithError(err).Error("marshal telemetry")
		return
	}
	p.client.Publish(p.topic, 0, false, payload)
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
