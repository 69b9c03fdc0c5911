package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PI-PropertEase/CalendarService/internal/metrics"
	"github.com/PI-PropertEase/CalendarService/internal/model"
)

// Publisher is the outbound propagator handle.  It is constructed once at
// startup and passed into the services, never a package-level global.  It
// holds a single connection/channel pair guarded by a mutex because AMQP
// channels are not safe for concurrent publishing.
//
// Publication is fire-and-forget from the caller's perspective: errors are
// logged and returned, but callers never roll back a committed state
// transition because of them.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	url     string
	metrics *metrics.Metrics
}

// NewPublisher dials the broker, declares the topic exchange and returns a
// ready-to-use handle.  mx may be nil.
func NewPublisher(url string, mx *metrics.Metrics) (*Publisher, error) {
	p := &Publisher{url: url, metrics: mx}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Broadcast publishes to every wrapper.
func (p *Publisher) Broadcast(ctx context.Context, msgType MessageType, body any) error {
	return p.publish(ctx, BroadcastRoutingKey, msgType, body)
}

// ToChannel publishes to one wrapper's routing address.
func (p *Publisher) ToChannel(ctx context.Context, ch model.Channel, msgType MessageType, body any) error {
	return p.publish(ctx, ChannelRoutingKey(ch), msgType, body)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msgType MessageType, body any) error {
	env, err := NewEnvelope(msgType, body)
	if err != nil {
		log.Printf("publisher: %v", err)
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("publisher: marshal envelope: %v", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, pub); err != nil {
		log.Printf("publisher: publish %s to %s failed: %v; reconnecting", msgType, routingKey, err)
		// One reconnect attempt per failed publish; a broker outage surfaces
		// as a logged error on the caller's side, never as a rollback.
		if rerr := p.connect(); rerr != nil {
			log.Printf("publisher: reconnect failed: %v", rerr)
			return err
		}
		if err := p.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, pub); err != nil {
			log.Printf("publisher: publish retry failed: %v", err)
			return err
		}
	}
	p.metrics.NotificationPublished(string(msgType))
	return nil
}
