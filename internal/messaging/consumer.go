// Package messaging runs the inbound side of the bus: it consumes the
// wrapper queues and hands each decoded message to the reconciler.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/service"
)

// reconnectDelay paces redial attempts after a lost broker connection.
const reconnectDelay = 5 * time.Second

// requeueDelay paces the redelivery of a message whose storage write failed.
// The broker redelivers a requeued message immediately, so without a pause
// here a dead database would be hammered in a tight nack/redeliver loop.
const requeueDelay = 5 * time.Second

// Consumer owns the two inbound queues.  Each queue gets its own channel and
// a sequential delivery loop, so a reservation batch is fully reconciled
// before the next one is decoded.
type Consumer struct {
	url          string
	reconciler   *service.Reconciler
	requeueDelay time.Duration
}

// NewConsumer builds a consumer that dials url and feeds rec.
func NewConsumer(url string, rec *service.Reconciler) *Consumer {
	return &Consumer{url: url, reconciler: rec, requeueDelay: requeueDelay}
}

// Run dials the broker and consumes both queues until ctx is canceled.  A
// dropped connection is redialed with a fixed delay; declared topology is
// durable so messages queued during an outage are delivered afterwards.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if err := c.consumeOnce(ctx); err != nil {
			log.Printf("consumer: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	importCh, err := c.openQueue(conn, queue.ImportQueue, queue.ImportRoutingKey)
	if err != nil {
		return err
	}
	mappingCh, err := c.openQueue(conn, queue.MappingQueue, queue.MappingRoutingKey)
	if err != nil {
		return err
	}

	importDeliveries, err := importCh.Consume(queue.ImportQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.ImportQueue, err)
	}
	mappingDeliveries, err := mappingCh.Consume(queue.MappingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.MappingQueue, err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			return fmt.Errorf("connection lost: %w", err)
		case d, ok := <-importDeliveries:
			if !ok {
				return fmt.Errorf("%s deliveries closed", queue.ImportQueue)
			}
			c.handle(ctx, d)
		case d, ok := <-mappingDeliveries:
			if !ok {
				return fmt.Errorf("%s deliveries closed", queue.MappingQueue)
			}
			c.handle(ctx, d)
		}
	}
}

// openQueue declares one durable queue on its own channel, binds it to the
// topic exchange and limits it to one unacked delivery at a time.
func (c *Consumer) openQueue(conn *amqp.Connection, name, routingKey string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(queue.ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, routingKey, queue.ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", name, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos on %s: %w", name, err)
	}
	return ch, nil
}

// handle decodes one delivery and routes it by message type.  A malformed
// message is acked and dropped (redelivery cannot fix it); a storage failure
// waits out the requeue delay and then nacks with requeue, so the batch is
// retried once the database recovers without spinning against it while it is
// down.  Qos(1) keeps the queue blocked on the waiting delivery.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var env queue.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		log.Printf("consumer: drop malformed envelope: %v", err)
		_ = d.Ack(false)
		return
	}

	err := c.dispatch(ctx, &env)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case isPermanent(err):
		log.Printf("consumer: drop %s %s: %v", env.MessageType, env.ID, err)
		_ = d.Ack(false)
	default:
		log.Printf("consumer: requeue %s %s in %s: %v", env.MessageType, env.ID, c.requeueDelay, err)
		select {
		case <-ctx.Done():
		case <-time.After(c.requeueDelay):
		}
		_ = d.Nack(false, true)
	}
}

func (c *Consumer) dispatch(ctx context.Context, env *queue.Envelope) error {
	switch env.MessageType {
	case queue.TypeReservationImport:
		var body queue.ReservationImportBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return permanentError{fmt.Errorf("decode import body: %w", err)}
		}
		ch, err := model.ParseChannel(body.Service)
		if err != nil {
			return permanentError{err}
		}
		return c.reconciler.ImportBatch(ctx, ch, body.Reservations)

	case queue.TypeConfirmedRequest:
		var body queue.ConfirmedRequestBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return permanentError{fmt.Errorf("decode confirmed request body: %w", err)}
		}
		ch, err := model.ParseChannel(body.Service)
		if err != nil {
			return permanentError{err}
		}
		return c.reconciler.PublishConfirmed(ctx, ch, body.PropertiesIDs)

	case queue.TypePropertyMapping:
		var body queue.PropertyMappingBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return permanentError{fmt.Errorf("decode mapping body: %w", err)}
		}
		if body.Email == "" || body.PropertyID <= 0 {
			return permanentError{fmt.Errorf("invalid mapping %q -> %d", body.Email, body.PropertyID)}
		}
		return c.reconciler.RecordMapping(ctx, body.Email, body.PropertyID)

	default:
		return permanentError{fmt.Errorf("unknown message type %q", env.MessageType)}
	}
}

// permanentError marks a failure no amount of redelivery can repair.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}
