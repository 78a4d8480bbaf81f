package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mercer/diag-rig/internal/input"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
	outboxCapacity = 64
)

// RealPublisher publishes to an actual MQTT broker. Messages that cannot be
// delivered are held in a fixed-size outbox and flushed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	outbox *outbox
	cmdCh  chan<- string
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is attempted immediately but failure does not prevent startup: the client
// retries in the background and queued messages are flushed once it connects.
func NewRealPublisher(broker string) *RealPublisher {
	p := &RealPublisher{
		outbox: newOutbox(outboxCapacity),
	}

	// Last will: if the connection drops without a clean shutdown, the broker
	// publishes a retained SHUTDOWN marker on our behalf.
	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("diag-rig").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s: %v (retrying in background)", broker, err)
	}

	return p
}

// PublishEvent sends an input event to the MQTT broker.
func (p *RealPublisher) PublishEvent(event input.Event, at time.Time) error {
	payload, err := FormatEventPayload(event, at)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(TopicEvents, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// publish delivers one message, queueing it in the outbox if the broker is
// unreachable or the delivery fails.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		p.outbox.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.outbox.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return fmt.Errorf("publish timeout, queued for retry")
	}
	if err := token.Error(); err != nil {
		p.outbox.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// SubscribeCommands routes text commands from TopicCommand into ch. The send
// is non-blocking: if the channel is full the command is dropped with a log.
// The subscription survives reconnects.
func (p *RealPublisher) SubscribeCommands(ch chan<- string) {
	p.mu.Lock()
	p.cmdCh = ch
	p.mu.Unlock()

	if p.client.IsConnected() {
		p.subscribe()
	}
}

// onConnect runs on every (re)connect: flush the outbox, then restore the
// command subscription.
func (p *RealPublisher) onConnect(client paho.Client) {
	log.Printf("mqtt: connected")

	p.mu.Lock()
	queued := p.outbox.drainAll()
	p.mu.Unlock()

	if len(queued) > 0 {
		log.Printf("mqtt: flushing %d queued messages", len(queued))
		for _, m := range queued {
			token := client.Publish(m.topic, m.qos, m.retained, m.payload)
			token.WaitTimeout(publishTimeout)
		}
	}

	p.subscribe()
}

func (p *RealPublisher) subscribe() {
	p.mu.Lock()
	ch := p.cmdCh
	p.mu.Unlock()
	if ch == nil {
		return
	}

	token := p.client.Subscribe(TopicCommand, 1, func(_ paho.Client, msg paho.Message) {
		select {
		case ch <- string(msg.Payload()):
		default:
			log.Printf("mqtt: command channel full, dropping %q", string(msg.Payload()))
		}
	})
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Printf("mqtt: subscribe %s: %v", TopicCommand, token.Error())
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
