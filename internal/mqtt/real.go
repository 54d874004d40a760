package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client      paho.Client
	statusTopic string
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker's last-will marks <prefix>/status "offline" if the connection drops.
func NewRealPublisher(broker, clientID, prefix string) (*RealPublisher, error) {
	statusTopic := Topic(prefix, TopicStatus)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(statusTopic, "offline", 1, true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p := &RealPublisher{client: client, statusTopic: statusTopic}
	if err := p.Publish(statusTopic, true, []byte("online")); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return p, nil
}

// Publish sends a message at QoS 0.
func (p *RealPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close marks the status topic offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	// Best effort; the will covers an unclean disconnect.
	token := p.client.Publish(p.statusTopic, 1, true, []byte("offline"))
	token.WaitTimeout(time.Second)
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
