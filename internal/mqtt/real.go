package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/buttons"
)

const (
	defaultBufferSize = 100
	publishTimeout    = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
	// Session is stamped on every payload.
	Session string
	// BufferSize is how many messages are kept while disconnected.
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. It connects in the
// background and keeps retrying; messages published while the connection is
// down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	session string
	now     func() time.Time

	mu           sync.Mutex
	buf          *ringBuffer
	wasConnected bool
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// It does not wait for the connection.
func NewRealPublisher(o Options) *RealPublisher {
	p := newPublisher(o)

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(o.Topics.System, string(willPayload(o.Session)), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(o Options) *RealPublisher {
	size := o.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RealPublisher{
		topics:  o.Topics,
		session: o.Session,
		now:     time.Now,
		buf:     newRingBuffer(size),
	}
}

// Publish sends a button event, QoS 1, not retained.
func (p *RealPublisher) Publish(n buttons.Notification) error {
	payload, err := FormatPayload(n, p.session)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Events, payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event, QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event, p.session)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		n := p.buf.len()
		p.mu.Unlock()
		log.WithFields(log.Fields{"topic": msg.topic, "buffered": n}).Debug("mqtt: not connected, message buffered")
		return nil
	}
	p.mu.Unlock()

	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages and, on a reconnect, announces it.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.buf.drainAll()
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			log.Warnf("mqtt: replay failed: %v", err)
		}
	}

	if p.wasConnected {
		log.WithField("replayed", len(pending)).Info("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}, p.session)
		if err := p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1}); err != nil {
			log.Warnf("mqtt: %v", err)
		}
	} else {
		log.WithField("replayed", len(pending)).Info("mqtt: connected")
	}
	p.wasConnected = true
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	log.Warnf("mqtt: connection lost: %v", err)
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the connection to the broker is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker, waiting up to a second for in-flight
// messages.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
